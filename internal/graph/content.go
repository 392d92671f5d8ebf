package graph

import (
	"context"
	"errors"
	"io"
	"time"
)

// Content is a reference to a content-addressed blob attached to a node.
// The bytes live in a BlobStore keyed by SHA256.
type Content struct {
	ID       int64          `json:"id"`
	Key      string         `json:"key"`
	Lang     string         `json:"lang"`
	SHA256   string         `json:"sha256"`
	Size     int64          `json:"size"`
	MimeType string         `json:"mimetype"`
	MTime    time.Time      `json:"mtime"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// BlobWriter stores bytes and returns their sha256 hex digest.
type BlobWriter interface {
	Put(ctx context.Context, data []byte) (string, error)
}

// BlobReader opens stored bytes by digest.
type BlobReader interface {
	Open(ctx context.Context, sha256 string) (io.ReadCloser, error)
}

// BlobStore is the external store holding content bytes.
type BlobStore interface {
	BlobWriter
	BlobReader
}

// Open reads the referenced bytes from store.
func (c *Content) Open(ctx context.Context, store BlobReader) (io.ReadCloser, error) {
	if c == nil {
		return nil, errors.New("nil content reference")
	}
	return store.Open(ctx, c.SHA256)
}

// Link is an outgoing functional edge of a node.
type Link struct {
	Key    string         `json:"key"`
	Target OID            `json:"target"`
	Meta   map[string]any `json:"meta,omitempty"`
}
