// Package blob stores content bytes on the filesystem, keyed by the hex
// sha256 of the uncompressed data.
package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/klauspost/compress/zstd"

	"github.com/systemshift/nodegraph/internal/graph"
)

// ErrNotFound is returned when no blob has the requested digest.
var ErrNotFound = errors.New("blob not found")

var digestRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// FileStore is a graph.BlobStore over a directory. Blobs are fanned out
// by the first two hex characters of their digest.
type FileStore struct {
	dir      string
	compress bool
}

var _ graph.BlobStore = (*FileStore)(nil)

// NewFileStore creates the directory if needed. With compress set, new
// blobs are written zstd-compressed; both forms are readable.
func NewFileStore(dir string, compress bool) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &FileStore{dir: dir, compress: compress}, nil
}

// Dir returns the root directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Digest returns the hex sha256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *FileStore) path(digest string) string {
	return filepath.Join(s.dir, digest[:2], digest)
}

// Put writes data unless a blob with the same digest already exists.
// Uses atomic write (tmp + rename) to avoid partial writes on crash.
func (s *FileStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	digest := Digest(data)
	if ok, err := s.Has(ctx, digest); err != nil || ok {
		return digest, err
	}

	finalPath := s.path(digest)
	payload := data
	if s.compress {
		var err error
		if payload, err = compress(data); err != nil {
			return "", err
		}
		finalPath += ".zst"
	}
	if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
		return "", fmt.Errorf("creating blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(finalPath), digest+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating tmp blob: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing tmp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing tmp blob: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return "", fmt.Errorf("atomic rename: %w", err)
	}
	return digest, nil
}

// Has reports whether a blob is stored, in either form.
func (s *FileStore) Has(_ context.Context, digest string) (bool, error) {
	if !digestRe.MatchString(digest) {
		return false, fmt.Errorf("invalid blob digest %q", digest)
	}
	for _, p := range []string{s.path(digest), s.path(digest) + ".zst"} {
		_, err := os.Stat(p)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
	}
	return false, nil
}

// Open returns a reader over the uncompressed bytes.
func (s *FileStore) Open(_ context.Context, digest string) (io.ReadCloser, error) {
	if !digestRe.MatchString(digest) {
		return nil, fmt.Errorf("invalid blob digest %q", digest)
	}
	f, err := os.Open(s.path(digest))
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	f, err = os.Open(s.path(digest) + ".zst")
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
	}
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &zstdReadCloser{dec: dec, f: f}, nil
}

// Read returns the whole blob.
func (s *FileStore) Read(ctx context.Context, digest string) ([]byte, error) {
	rc, err := s.Open(ctx, digest)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.f.Close()
}

func compress(data []byte) ([]byte, error) {
	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}
	return compressed.Bytes(), nil
}
