package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/systemshift/nodegraph/internal/blob"
	"github.com/systemshift/nodegraph/internal/graph"
	"github.com/systemshift/nodegraph/internal/logger"
)

// maxUpload bounds content bodies accepted by PutContent.
const maxUpload = 64 << 20

// Server holds the HTTP server dependencies
type Server struct {
	store  *graph.Store
	blobs  graph.BlobStore
	logger *slog.Logger
}

// New creates a new API server
func New(store *graph.Store, blobs graph.BlobStore, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{store: store, blobs: blobs, logger: log}
}

// CreateNodeRequest is the request body for creating a node
type CreateNodeRequest struct {
	Type  string              `json:"type"`
	Attrs map[string]any      `json:"attrs"`
	Lang  string              `json:"lang,omitempty"`
	Tags  map[string][]string `json:"tags"`
	Links map[string]int64    `json:"links"`
}

// CreateNodeResponse is the response for creating a node
type CreateNodeResponse struct {
	OID     graph.OID `json:"oid"`
	UUID    string    `json:"uuid"`
	Created time.Time `json:"created"`
}

// CreateNode handles POST /api/nodes
func (s *Server) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		http.Error(w, "type is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var resp CreateNodeResponse
	err := s.store.Update(ctx, func(g *graph.Graph) error {
		h, err := g.New(ctx, graph.TypeName(req.Type))
		if err != nil {
			return err
		}
		n := h.Base()
		for key, raw := range req.Attrs {
			v, err := hostValue(raw)
			if err != nil {
				return fmt.Errorf("attribute %s: %w", key, err)
			}
			if err := n.Set(ctx, key, v, graph.Lang(req.Lang)); err != nil {
				return err
			}
		}
		for tagset, tags := range req.Tags {
			if err := n.Tag(ctx, tagset, tags...); err != nil {
				return err
			}
		}
		for key, target := range req.Links {
			if err := n.Link(ctx, key, graph.OID(target), nil); err != nil {
				return err
			}
		}
		resp.OID = n.OID()
		if resp.UUID, err = n.UUID(ctx); err != nil {
			return err
		}
		resp.Created, err = n.CTime(ctx)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, resp)
}

// hostValue converts a decoded JSON value into an attribute host value.
func hostValue(raw any) (any, error) {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		return v.Float64()
	case bool, nil:
		return nil, fmt.Errorf("%w: unsupported attribute value %v", graph.ErrTypeMismatch, raw)
	}
	return raw, nil
}

// GetNode handles GET /api/nodes/{oid}
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	oid, ok := parseOID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var snap *graph.Snapshot
	err := s.store.View(ctx, func(g *graph.Graph) error {
		h, err := g.Node(ctx, oid, nil)
		if err != nil {
			return err
		}
		snap, err = h.Base().Snapshot(ctx)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, snap)
}

// GetNodeByUUID handles GET /api/uuid/{uuid}
func (s *Server) GetNodeByUUID(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	ctx := r.Context()
	var snap *graph.Snapshot
	err := s.store.View(ctx, func(g *graph.Graph) error {
		h, err := g.NodeByUUID(ctx, uuid)
		if err != nil {
			return err
		}
		snap, err = h.Base().Snapshot(ctx)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, snap)
}

// ListNodes handles GET /api/nodes
// Supports query param ?type=T to restrict to one node type
func (s *Server) ListNodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	typeName := r.URL.Query().Get("type")
	snaps := []*graph.Snapshot{}
	err := s.store.View(ctx, func(g *graph.Graph) error {
		seq := g.All(ctx)
		if typeName != "" {
			seq = g.List(ctx, graph.TypeName(typeName))
		}
		for h, err := range seq {
			if err != nil {
				return err
			}
			snap, err := h.Base().Snapshot(ctx)
			if err != nil {
				return err
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, map[string]any{
		"nodes": snaps,
		"count": len(snaps),
	})
}

// DeleteNode handles DELETE /api/nodes/{oid}
func (s *Server) DeleteNode(w http.ResponseWriter, r *http.Request) {
	oid, ok := parseOID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	err := s.store.Update(ctx, func(g *graph.Graph) error {
		h, err := g.Node(ctx, oid, nil)
		if err != nil {
			return err
		}
		return h.Base().Delete(ctx)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FindNodes handles GET /api/find?key=K&value=V
// The value is matched as an integer when it parses as one, else as text
func (s *Server) FindNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := q.Get("key")
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}
	var value any = q.Get("value")
	if i, err := strconv.ParseInt(q.Get("value"), 10, 64); err == nil {
		value = i
	}

	ctx := r.Context()
	oids := []graph.OID{}
	err := s.store.View(ctx, func(g *graph.Graph) error {
		found, err := g.Find(ctx, key, value, graph.Lang(q.Get("lang")))
		if err != nil {
			return err
		}
		for _, h := range found {
			oids = append(oids, h.Base().OID())
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"nodes": oids, "count": len(oids)})
}

// LinkRequest is the request body for setting a link
type LinkRequest struct {
	Target int64          `json:"target"`
	Meta   map[string]any `json:"meta"`
}

// SetLink handles PUT /api/nodes/{oid}/links/{key}
func (s *Server) SetLink(w http.ResponseWriter, r *http.Request) {
	oid, ok := parseOID(w, r)
	if !ok {
		return
	}
	var req LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	key := chi.URLParam(r, "key")
	ctx := r.Context()
	err := s.store.Update(ctx, func(g *graph.Graph) error {
		h, err := g.Node(ctx, oid, nil)
		if err != nil {
			return err
		}
		target, err := g.Node(ctx, graph.OID(req.Target), nil)
		if err != nil {
			return err
		}
		return h.Base().Link(ctx, key, target, req.Meta)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetLinkSources handles GET /api/nodes/{oid}/sources/{key}
func (s *Server) GetLinkSources(w http.ResponseWriter, r *http.Request) {
	oid, ok := parseOID(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	ctx := r.Context()
	oids := []graph.OID{}
	err := s.store.View(ctx, func(g *graph.Graph) error {
		h, err := g.Node(ctx, oid, nil)
		if err != nil {
			return err
		}
		sources, err := h.Base().LinkSources(ctx, key)
		if err != nil {
			return err
		}
		for _, src := range sources {
			oids = append(oids, src.Base().OID())
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"target":  oid,
		"key":     key,
		"sources": oids,
	})
}

// PutContent handles PUT /api/nodes/{oid}/contents/{key}
// The request body is stored as the blob; ?lang=L selects the language
func (s *Server) PutContent(w http.ResponseWriter, r *http.Request) {
	oid, ok := parseOID(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	mimetype := r.Header.Get("Content-Type")
	if mimetype == "" {
		mimetype = http.DetectContentType(data)
	}

	key := chi.URLParam(r, "key")
	ctx := r.Context()
	var content *graph.Content
	err = s.store.Update(ctx, func(g *graph.Graph) error {
		h, err := g.Node(ctx, oid, nil)
		if err != nil {
			return err
		}
		content, err = h.Base().Store(ctx, s.blobs, key, data, mimetype, nil, graph.Lang(r.URL.Query().Get("lang")))
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, content)
}

// GetContent handles GET /api/nodes/{oid}/contents/{key}
func (s *Server) GetContent(w http.ResponseWriter, r *http.Request) {
	oid, ok := parseOID(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	ctx := r.Context()
	var content *graph.Content
	err := s.store.View(ctx, func(g *graph.Graph) error {
		h, err := g.Node(ctx, oid, nil)
		if err != nil {
			return err
		}
		content, err = h.Base().Content(ctx, key, graph.Lang(r.URL.Query().Get("lang")))
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if content == nil {
		http.Error(w, "no content "+key, http.StatusNotFound)
		return
	}
	rc, err := content.Open(ctx, s.blobs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", content.MimeType)
	w.Header().Set("ETag", `"`+content.SHA256+`"`)
	io.Copy(w, rc)
}

// GetBlob handles GET /api/blobs/{sha256}
func (s *Server) GetBlob(w http.ResponseWriter, r *http.Request) {
	rc, err := s.blobs.Open(r.Context(), chi.URLParam(r, "sha256"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, rc)
}

// GetStats handles GET /api/stats
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	admin, ok := graph.AdminOf(s.store.Backend())
	if !ok {
		http.Error(w, "statistics not supported by backend", http.StatusNotImplemented)
		return
	}
	stats, err := admin.Statistics(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, stats)
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

func parseOID(w http.ResponseWriter, r *http.Request) (graph.OID, bool) {
	oid, err := strconv.ParseInt(chi.URLParam(r, "oid"), 10, 64)
	if err != nil {
		http.Error(w, "invalid oid", http.StatusBadRequest)
		return 0, false
	}
	return graph.OID(oid), true
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes before writing the header so an encoding
// failure still reaches the client as a 500.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encoding response: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

// writeError maps graph errors onto HTTP status codes
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case graph.IsNotFound(err), errors.Is(err, blob.ErrNotFound):
		status = http.StatusNotFound
	case graph.IsTypeMismatch(err), errors.Is(err, graph.ErrUnknownType):
		status = http.StatusBadRequest
	case graph.IsReadOnly(err):
		status = http.StatusForbidden
	case errors.Is(err, graph.ErrNotSupported):
		status = http.StatusNotImplemented
	}
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	http.Error(w, err.Error(), status)
}
