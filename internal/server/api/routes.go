package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/systemshift/nodegraph/internal/logger"
)

// Routes builds the HTTP router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.GetStats)
		r.Get("/find", s.FindNodes)
		r.Get("/uuid/{uuid}", s.GetNodeByUUID)
		r.Get("/blobs/{sha256}", s.GetBlob)

		r.Post("/nodes", s.CreateNode)
		r.Get("/nodes", s.ListNodes)
		r.Get("/nodes/{oid}", s.GetNode)
		r.Delete("/nodes/{oid}", s.DeleteNode)
		r.Put("/nodes/{oid}/links/{key}", s.SetLink)
		r.Get("/nodes/{oid}/sources/{key}", s.GetLinkSources)
		r.Put("/nodes/{oid}/contents/{key}", s.PutContent)
		r.Get("/nodes/{oid}/contents/{key}", s.GetContent)
	})
	return r
}

// requestLogger puts a request-scoped logger into the context and logs
// each completed request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(logger.WithLogger(r.Context(), log)))
		log.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten())
	})
}
