package neo4j

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/systemshift/nodegraph/internal/graph"
)

// nextID increments a named counter vertex inside the scope transaction.
func nextID(ctx context.Context, c *conn, name string) (int64, error) {
	records, err := c.run(ctx, `
		MERGE (c:GraphCounter {name: $name})
		ON CREATE SET c.next = 0
		SET c.next = c.next + 1
		RETURN c.next AS id
	`, map[string]any{"name": name})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("counter %s returned no value", name)
	}
	return int64Of(records[0], "id"), nil
}

type nodeAccessor struct {
	conn *conn
}

func (a *nodeAccessor) All(ctx context.Context) iter.Seq2[graph.NodeRef, error] {
	return func(yield func(graph.NodeRef, error) bool) {
		records, err := a.conn.run(ctx, `MATCH (n:GraphNode) RETURN n.oid AS oid, n.type AS type ORDER BY n.oid`, nil)
		if err != nil {
			yield(graph.NodeRef{}, fmt.Errorf("listing nodes: %w", err))
			return
		}
		for _, r := range records {
			ref := graph.NodeRef{OID: graph.OID(int64Of(r, "oid")), Type: stringOf(r, "type")}
			if !yield(ref, nil) {
				return
			}
		}
	}
}

func (a *nodeAccessor) List(ctx context.Context, typeName string) iter.Seq2[graph.OID, error] {
	return func(yield func(graph.OID, error) bool) {
		records, err := a.conn.run(ctx,
			`MATCH (n:GraphNode {type: $type}) RETURN n.oid AS oid ORDER BY n.oid`,
			map[string]any{"type": typeName})
		if err != nil {
			yield(0, fmt.Errorf("listing %s nodes: %w", typeName, err))
			return
		}
		for _, r := range records {
			if !yield(graph.OID(int64Of(r, "oid")), nil) {
				return
			}
		}
	}
}

func (a *nodeAccessor) New(ctx context.Context, typeName string) (graph.OID, error) {
	id, err := nextID(ctx, a.conn, "oid")
	if err != nil {
		return 0, fmt.Errorf("allocating oid: %w", err)
	}
	_, err = a.conn.run(ctx, `
		CREATE (n:GraphNode {oid: $oid, uuid: $uuid, type: $type, ctime: $ctime})
	`, map[string]any{
		"oid":   id,
		"uuid":  graph.NewUUID(),
		"type":  typeName,
		"ctime": formatTime(time.Now()),
	})
	if err != nil {
		return 0, fmt.Errorf("creating node: %w", err)
	}
	return graph.OID(id), nil
}

func (a *nodeAccessor) UUIDToOID(ctx context.Context, uuid string) (graph.OID, bool, error) {
	records, err := a.conn.run(ctx, `MATCH (n:GraphNode {uuid: $uuid}) RETURN n.oid AS oid`,
		map[string]any{"uuid": uuid})
	if err != nil || len(records) == 0 {
		return 0, false, err
	}
	return graph.OID(int64Of(records[0], "oid")), true, nil
}

func (a *nodeAccessor) Delete(ctx context.Context, oid graph.OID) error {
	params := map[string]any{"oid": int64(oid)}
	stmts := []string{
		`MATCH (n:GraphNode {oid: $oid}) DETACH DELETE n`,
		`MATCH (a:Attr {oid: $oid}) DELETE a`,
		`MATCH (c:Content {oid: $oid}) DELETE c`,
		`MATCH (t:Tag {oid: $oid}) DELETE t`,
	}
	for _, stmt := range stmts {
		if _, err := a.conn.run(ctx, stmt, params); err != nil {
			return fmt.Errorf("deleting node %d: %w", oid, err)
		}
	}
	return nil
}

// property reads one property of the node vertex.
func (a *nodeAccessor) property(ctx context.Context, oid graph.OID, prop string) (any, error) {
	records, err := a.conn.run(ctx,
		`MATCH (n:GraphNode {oid: $oid}) RETURN n[$prop] AS v`,
		map[string]any{"oid": int64(oid), "prop": prop})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &graph.NotFoundError{OID: oid}
	}
	v, _ := records[0].Get("v")
	return v, nil
}

func (a *nodeAccessor) UUID(ctx context.Context, oid graph.OID) (string, error) {
	v, err := a.property(ctx, oid, "uuid")
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (a *nodeAccessor) Type(ctx context.Context, oid graph.OID) (string, bool, error) {
	v, err := a.property(ctx, oid, "type")
	if graph.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	s, _ := v.(string)
	return s, true, nil
}

func (a *nodeAccessor) CTime(ctx context.Context, oid graph.OID) (time.Time, error) {
	v, err := a.property(ctx, oid, "ctime")
	if err != nil {
		return time.Time{}, err
	}
	s, _ := v.(string)
	return parseTime(s)
}

func (a *nodeAccessor) Attributes(ctx context.Context, oid graph.OID) ([]graph.AttrKey, error) {
	records, err := a.conn.run(ctx,
		`MATCH (a:Attr {oid: $oid}) RETURN a.key AS key, a.lang AS lang ORDER BY a.key, a.lang`,
		map[string]any{"oid": int64(oid)})
	if err != nil {
		return nil, err
	}
	keys := make([]graph.AttrKey, 0, len(records))
	for _, r := range records {
		keys = append(keys, graph.AttrKey{Key: stringOf(r, "key"), Lang: stringOf(r, "lang")})
	}
	return keys, nil
}

func (a *nodeAccessor) Contents(ctx context.Context, oid graph.OID) ([]*graph.Content, error) {
	records, err := a.conn.run(ctx,
		`MATCH (c:Content {oid: $oid}) RETURN c ORDER BY c.key, c.lang`,
		map[string]any{"oid": int64(oid)})
	if err != nil {
		return nil, err
	}
	out := make([]*graph.Content, 0, len(records))
	for _, r := range records {
		c, err := contentOf(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (a *nodeAccessor) Tagsets(ctx context.Context, oid graph.OID) ([]string, error) {
	records, err := a.conn.run(ctx,
		`MATCH (t:Tag {oid: $oid}) RETURN DISTINCT t.tagset AS tagset ORDER BY tagset`,
		map[string]any{"oid": int64(oid)})
	if err != nil {
		return nil, err
	}
	return stringsOf(records, "tagset"), nil
}

func (a *nodeAccessor) Links(ctx context.Context, oid graph.OID) ([]*graph.Link, error) {
	records, err := a.conn.run(ctx, `
		MATCH (:GraphNode {oid: $oid})-[l:LINK]->(t:GraphNode)
		RETURN l.key AS key, t.oid AS target, l.meta AS meta
		ORDER BY key
	`, map[string]any{"oid": int64(oid)})
	if err != nil {
		return nil, err
	}
	out := make([]*graph.Link, 0, len(records))
	for _, r := range records {
		meta, _ := r.Get("meta")
		m, err := decodeMeta(meta)
		if err != nil {
			return nil, err
		}
		out = append(out, &graph.Link{
			Key:    stringOf(r, "key"),
			Target: graph.OID(int64Of(r, "target")),
			Meta:   m,
		})
	}
	return out, nil
}

func stringsOf(records []*neo4j.Record, key string) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, stringOf(r, key))
	}
	return out
}

func oidsOf(records []*neo4j.Record, key string) []graph.OID {
	out := make([]graph.OID, 0, len(records))
	for _, r := range records {
		out = append(out, graph.OID(int64Of(r, key)))
	}
	return out
}

type attrAccessor struct {
	conn      *conn
	key, lang string
}

func (a *attrAccessor) params(oid graph.OID) map[string]any {
	return map[string]any{"oid": int64(oid), "key": a.key, "lang": a.lang}
}

func (a *attrAccessor) Get(ctx context.Context, oid graph.OID, want graph.AttrType) (graph.Value, error) {
	records, err := a.conn.run(ctx,
		`MATCH (a:Attr {oid: $oid, key: $key, lang: $lang}) RETURN a.type AS type, a.value AS value`,
		a.params(oid))
	if err != nil {
		return nil, fmt.Errorf("reading attribute %s: %w", a.key, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	raw, _ := records[0].Get("value")
	return graph.Decode(graph.AttrType(stringOf(records[0], "type")), raw, want)
}

func (a *attrAccessor) Set(ctx context.Context, oid graph.OID, value graph.Value) error {
	typ, raw := graph.Encode(value)
	params := a.params(oid)
	params["type"] = string(typ)
	params["value"] = raw
	_, err := a.conn.run(ctx, `
		MERGE (a:Attr {oid: $oid, key: $key, lang: $lang})
		SET a.type = $type, a.value = $value
	`, params)
	if err != nil {
		return fmt.Errorf("writing attribute %s: %w", a.key, err)
	}
	return nil
}

func (a *attrAccessor) Unset(ctx context.Context, oid graph.OID) error {
	_, err := a.conn.run(ctx, `MATCH (a:Attr {oid: $oid, key: $key, lang: $lang}) DELETE a`, a.params(oid))
	return err
}

func (a *attrAccessor) Has(ctx context.Context, oid graph.OID) (bool, error) {
	records, err := a.conn.run(ctx,
		`MATCH (a:Attr {oid: $oid, key: $key, lang: $lang}) RETURN count(a) AS n`, a.params(oid))
	if err != nil || len(records) == 0 {
		return false, err
	}
	return int64Of(records[0], "n") > 0, nil
}

func (a *attrAccessor) Nodes(ctx context.Context, value graph.Value) ([]graph.OID, error) {
	typ, raw := graph.Encode(value)
	records, err := a.conn.run(ctx, `
		MATCH (a:Attr {key: $key, lang: $lang, type: $type})
		WHERE a.value = $value
		RETURN a.oid AS oid ORDER BY oid
	`, map[string]any{"key": a.key, "lang": a.lang, "type": string(typ), "value": raw})
	if err != nil {
		return nil, err
	}
	return oidsOf(records, "oid"), nil
}

type contentAccessor struct {
	conn      *conn
	key, lang string
}

func (a *contentAccessor) Content(ctx context.Context, oid graph.OID) (*graph.Content, error) {
	records, err := a.conn.run(ctx,
		`MATCH (c:Content {oid: $oid, key: $key, lang: $lang}) RETURN c`,
		map[string]any{"oid": int64(oid), "key": a.key, "lang": a.lang})
	if err != nil {
		return nil, fmt.Errorf("reading content %s: %w", a.key, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return contentOf(records[0])
}

func (a *contentAccessor) Store(ctx context.Context, oid graph.OID, sha256 string, size int64, mimetype string, meta map[string]any) (*graph.Content, error) {
	existing, err := a.Content(ctx, oid)
	if err != nil {
		return nil, err
	}
	var id int64
	if existing != nil {
		id = existing.ID
	} else if id, err = nextID(ctx, a.conn, "content"); err != nil {
		return nil, fmt.Errorf("allocating content id: %w", err)
	}
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return nil, err
	}
	_, err = a.conn.run(ctx, `
		MERGE (c:Content {oid: $oid, key: $key, lang: $lang})
		SET c.id = $id, c.sha256 = $sha256, c.size = $size,
			c.mimetype = $mimetype, c.mtime = $mtime, c.meta = $meta
	`, map[string]any{
		"oid":      int64(oid),
		"key":      a.key,
		"lang":     a.lang,
		"id":       id,
		"sha256":   sha256,
		"size":     size,
		"mimetype": mimetype,
		"mtime":    formatTime(time.Now()),
		"meta":     metaJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("storing content %s: %w", a.key, err)
	}
	return a.Content(ctx, oid)
}

func contentOf(r *neo4j.Record) (*graph.Content, error) {
	v, _ := r.Get("c")
	n, ok := v.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("unexpected content record %T", v)
	}
	str := func(k string) string {
		s, _ := n.Props[k].(string)
		return s
	}
	num := func(k string) int64 {
		i, _ := n.Props[k].(int64)
		return i
	}

	mtime, err := parseTime(str("mtime"))
	if err != nil {
		return nil, err
	}
	meta, err := decodeMeta(n.Props["meta"])
	if err != nil {
		return nil, err
	}
	return &graph.Content{
		ID:       num("id"),
		Key:      str("key"),
		Lang:     str("lang"),
		SHA256:   str("sha256"),
		Size:     num("size"),
		MimeType: str("mimetype"),
		MTime:    mtime,
		Meta:     meta,
	}, nil
}

type tagAccessor struct {
	conn   *conn
	tagset string
}

func (a *tagAccessor) Tag(ctx context.Context, oid graph.OID, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := a.conn.run(ctx, `
		UNWIND $tags AS tag
		MERGE (:Tag {oid: $oid, tagset: $tagset, tag: tag})
	`, map[string]any{"oid": int64(oid), "tagset": a.tagset, "tags": anySlice(tags)})
	if err != nil {
		return fmt.Errorf("tagging %s: %w", a.tagset, err)
	}
	return nil
}

func (a *tagAccessor) Untag(ctx context.Context, oid graph.OID, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := a.conn.run(ctx, `
		MATCH (t:Tag {oid: $oid, tagset: $tagset})
		WHERE t.tag IN $tags
		DELETE t
	`, map[string]any{"oid": int64(oid), "tagset": a.tagset, "tags": anySlice(tags)})
	if err != nil {
		return fmt.Errorf("untagging %s: %w", a.tagset, err)
	}
	return nil
}

func (a *tagAccessor) Tags(ctx context.Context, oid graph.OID) ([]string, error) {
	records, err := a.conn.run(ctx,
		`MATCH (t:Tag {oid: $oid, tagset: $tagset}) RETURN t.tag AS tag`,
		map[string]any{"oid": int64(oid), "tagset": a.tagset})
	if err != nil {
		return nil, err
	}
	tags := stringsOf(records, "tag")
	sort.Strings(tags)
	return tags, nil
}

func (a *tagAccessor) IsTagged(ctx context.Context, oid graph.OID, tags ...string) (bool, error) {
	if len(tags) == 0 {
		return false, nil
	}
	current, err := a.Tags(ctx, oid)
	if err != nil {
		return false, err
	}
	present := make(map[string]bool, len(current))
	for _, t := range current {
		present[t] = true
	}
	for _, t := range tags {
		if !present[t] {
			return false, nil
		}
	}
	return true, nil
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

type linkAccessor struct {
	conn *conn
	key  string
}

func (a *linkAccessor) Link(ctx context.Context, oid graph.OID, target graph.OID, meta map[string]any) error {
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	if err := a.Unlink(ctx, oid); err != nil {
		return err
	}
	records, err := a.conn.run(ctx, `
		MATCH (s:GraphNode {oid: $oid}), (t:GraphNode {oid: $target})
		CREATE (s)-[:LINK {key: $key, meta: $meta}]->(t)
		RETURN t.oid AS target
	`, map[string]any{"oid": int64(oid), "target": int64(target), "key": a.key, "meta": metaJSON})
	if err != nil {
		return fmt.Errorf("linking %d -[%s]-> %d: %w", oid, a.key, target, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("linking %d -[%s]-> %d: %w", oid, a.key, target, &graph.NotFoundError{OID: target})
	}
	return nil
}

func (a *linkAccessor) Unlink(ctx context.Context, oid graph.OID) error {
	_, err := a.conn.run(ctx,
		`MATCH (:GraphNode {oid: $oid})-[l:LINK {key: $key}]->() DELETE l`,
		map[string]any{"oid": int64(oid), "key": a.key})
	return err
}

func (a *linkAccessor) Target(ctx context.Context, oid graph.OID) (graph.OID, bool, error) {
	records, err := a.conn.run(ctx,
		`MATCH (:GraphNode {oid: $oid})-[:LINK {key: $key}]->(t:GraphNode) RETURN t.oid AS target LIMIT 1`,
		map[string]any{"oid": int64(oid), "key": a.key})
	if err != nil || len(records) == 0 {
		return 0, false, err
	}
	return graph.OID(int64Of(records[0], "target")), true, nil
}

func (a *linkAccessor) Sources(ctx context.Context, target graph.OID) ([]graph.OID, error) {
	records, err := a.conn.run(ctx, `
		MATCH (s:GraphNode)-[:LINK {key: $key}]->(:GraphNode {oid: $target})
		RETURN s.oid AS oid ORDER BY oid
	`, map[string]any{"target": int64(target), "key": a.key})
	if err != nil {
		return nil, err
	}
	return oidsOf(records, "oid"), nil
}

func (a *linkAccessor) Has(ctx context.Context, oid graph.OID) (bool, error) {
	_, ok, err := a.Target(ctx, oid)
	return ok, err
}
