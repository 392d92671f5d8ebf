package graph

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
)

// OID is the backend-local identifier of a node.
type OID int64

// Conn is a live backend connection holding one transaction. Its concrete
// type is private to the backend that produced it.
type Conn interface {
	ReadOnly() bool
}

// Backend defines the interface for graph storage backends.
// Both SQLite and Neo4j implement this interface.
type Backend interface {
	// Connect opens a connection and starts its transaction.
	Connect(ctx context.Context, readOnly bool) (Conn, error)
	// Disconnect commits the transaction when errored is false, rolls it
	// back otherwise, and releases the connection in both cases.
	Disconnect(ctx context.Context, conn Conn, errored bool) error

	Nodes(conn Conn) NodeAccessor
	Attr(conn Conn, key, lang string) AttrAccessor
	Content(conn Conn, key, lang string) ContentAccessor
	Tagset(conn Conn, name string) TagAccessor
	Link(conn Conn, key string) LinkAccessor
	Facet(conn Conn, name string) (Facet, error)
}

// Admin is implemented by backends that expose maintenance operations.
type Admin interface {
	SchemaVersion(ctx context.Context) (int, error)
	Migrate(ctx context.Context) error
	Reset(ctx context.Context) error
	Statistics(ctx context.Context) (*Statistics, error)
}

// Statistics summarizes backend contents.
type Statistics struct {
	Nodes    int64            `json:"nodes"`
	Attrs    int64            `json:"attrs"`
	Contents int64            `json:"contents"`
	Tags     int64            `json:"tags"`
	Links    int64            `json:"links"`
	Types    map[string]int64 `json:"types"`
}

// NodeRef pairs an oid with its stored type name.
type NodeRef struct {
	OID  OID
	Type string
}

// AttrKey identifies one attribute slot of a node.
type AttrKey struct {
	Key  string
	Lang string
}

// NodeAccessor is the accessor for the node table itself.
type NodeAccessor interface {
	All(ctx context.Context) iter.Seq2[NodeRef, error]
	List(ctx context.Context, typeName string) iter.Seq2[OID, error]
	New(ctx context.Context, typeName string) (OID, error)
	UUIDToOID(ctx context.Context, uuid string) (OID, bool, error)
	Delete(ctx context.Context, oid OID) error
	UUID(ctx context.Context, oid OID) (string, error)
	// Type returns false when the node does not exist.
	Type(ctx context.Context, oid OID) (string, bool, error)
	CTime(ctx context.Context, oid OID) (time.Time, error)

	// Enumeration helpers used by Node.Snapshot.
	Attributes(ctx context.Context, oid OID) ([]AttrKey, error)
	Contents(ctx context.Context, oid OID) ([]*Content, error)
	Tagsets(ctx context.Context, oid OID) ([]string, error)
	Links(ctx context.Context, oid OID) ([]*Link, error)
}

// AttrAccessor reads and writes one (key, lang) attribute slot.
type AttrAccessor interface {
	// Get returns nil when the attribute is not set. A non-empty want
	// type must match the stored type.
	Get(ctx context.Context, oid OID, want AttrType) (Value, error)
	Set(ctx context.Context, oid OID, value Value) error
	Unset(ctx context.Context, oid OID) error
	Has(ctx context.Context, oid OID) (bool, error)
	// Nodes returns the nodes whose attribute equals value.
	Nodes(ctx context.Context, value Value) ([]OID, error)
}

// ContentAccessor reads and writes one (key, lang) content reference.
type ContentAccessor interface {
	// Content returns nil when nothing is stored.
	Content(ctx context.Context, oid OID) (*Content, error)
	// Store upserts the reference and returns the stored record.
	Store(ctx context.Context, oid OID, sha256 string, size int64, mimetype string, meta map[string]any) (*Content, error)
}

// TagAccessor manages the membership sets of one tagset.
type TagAccessor interface {
	Tag(ctx context.Context, oid OID, tags ...string) error
	Untag(ctx context.Context, oid OID, tags ...string) error
	// Tags returns the current tags, sorted.
	Tags(ctx context.Context, oid OID) ([]string, error)
	// IsTagged reports whether every given tag is present.
	IsTagged(ctx context.Context, oid OID, tags ...string) (bool, error)
}

// LinkAccessor manages the functional edges of one link key.
type LinkAccessor interface {
	Link(ctx context.Context, oid OID, target OID, meta map[string]any) error
	Unlink(ctx context.Context, oid OID) error
	Target(ctx context.Context, oid OID) (OID, bool, error)
	Sources(ctx context.Context, target OID) ([]OID, error)
	Has(ctx context.Context, oid OID) (bool, error)
}

// NewUUID generates a node uuid for backends that do not supply their own.
func NewUUID() string {
	return uuid.NewString()
}

// ToggleTags flips membership of the given tags: tags currently present
// are removed, the others are added.
func ToggleTags(ctx context.Context, acc TagAccessor, oid OID, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	current, err := acc.Tags(ctx, oid)
	if err != nil {
		return err
	}
	present := make(map[string]struct{}, len(current))
	for _, t := range current {
		present[t] = struct{}{}
	}
	var untags []string
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := present[t]; ok {
			untags = append(untags, t)
		}
	}
	if err := acc.Tag(ctx, oid, tags...); err != nil {
		return err
	}
	if len(untags) == 0 {
		return nil
	}
	return acc.Untag(ctx, oid, untags...)
}
