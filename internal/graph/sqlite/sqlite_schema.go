package sqlite

// SQLite schema DDL constants

// schemaVersion is stored in PRAGMA user_version once the statements below
// have been applied.
const schemaVersion = 1

const schemaNodes = `
CREATE TABLE IF NOT EXISTS nodes (
    oid INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT UNIQUE NOT NULL,
    type TEXT NOT NULL,
    created_at TEXT NOT NULL
)`

// value has no declared type so every row keeps the storage class it was
// written with.
const schemaAttrs = `
CREATE TABLE IF NOT EXISTS attrs (
    oid INTEGER NOT NULL REFERENCES nodes(oid) ON DELETE CASCADE,
    key TEXT NOT NULL,
    lang TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL,
    value,
    PRIMARY KEY (oid, key, lang)
)`

const schemaContents = `
CREATE TABLE IF NOT EXISTS contents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    oid INTEGER NOT NULL REFERENCES nodes(oid) ON DELETE CASCADE,
    key TEXT NOT NULL,
    lang TEXT NOT NULL DEFAULT '',
    sha256 TEXT NOT NULL,
    size INTEGER NOT NULL,
    mimetype TEXT NOT NULL,
    mtime TEXT NOT NULL,
    meta TEXT,
    UNIQUE (oid, key, lang)
)`

const schemaTags = `
CREATE TABLE IF NOT EXISTS tags (
    oid INTEGER NOT NULL REFERENCES nodes(oid) ON DELETE CASCADE,
    tagset TEXT NOT NULL,
    tag TEXT NOT NULL,
    PRIMARY KEY (oid, tagset, tag)
)`

const schemaLinks = `
CREATE TABLE IF NOT EXISTS links (
    oid INTEGER NOT NULL REFERENCES nodes(oid) ON DELETE CASCADE,
    key TEXT NOT NULL,
    target INTEGER NOT NULL REFERENCES nodes(oid) ON DELETE CASCADE,
    meta TEXT,
    PRIMARY KEY (oid, key)
)`

// Index definitions
const indexNodesType = `CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type)`
const indexAttrsValue = `CREATE INDEX IF NOT EXISTS idx_attrs_value ON attrs(key, lang, type, value)`
const indexContentsSHA = `CREATE INDEX IF NOT EXISTS idx_contents_sha256 ON contents(sha256)`
const indexTagsTag = `CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tagset, tag)`
const indexLinksTarget = `CREATE INDEX IF NOT EXISTS idx_links_target ON links(target, key)`

// SQLite pragmas, applied to every pooled connection through the DSN
const pragmaWAL = `journal_mode(WAL)`
const pragmaFK = `foreign_keys(1)`
const pragmaBusyTimeout = `busy_timeout(5000)`
const pragmaSynchronous = `synchronous(NORMAL)`

// allSchemaStatements returns all schema DDL in order
func allSchemaStatements() []string {
	return []string{
		schemaNodes,
		schemaAttrs,
		schemaContents,
		schemaTags,
		schemaLinks,
		indexNodesType,
		indexAttrsValue,
		indexContentsSHA,
		indexTagsTag,
		indexLinksTarget,
	}
}

// allPragmas returns all pragma settings
func allPragmas() []string {
	return []string{
		pragmaWAL,
		pragmaFK,
		pragmaBusyTimeout,
		pragmaSynchronous,
	}
}

// dataTables lists the tables cleared by Reset, children first.
func dataTables() []string {
	return []string{"links", "tags", "contents", "attrs", "nodes"}
}
