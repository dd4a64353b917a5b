package diagnostics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/blockmgr/blockmanager/internal/logger"
	"github.com/blockmgr/blockmanager/pkg/blockmgr"
)

// NewRouter builds the chi router serving the diagnostics surface:
//
//	GET /healthz     - liveness probe
//	GET /blocks      - listing of every tracked block
//	GET /blocks/{id} - single block status
//	GET /stats       - aggregate tier usage
//
// All routes are unauthenticated and read-only; this is an operator surface,
// not a client-facing API.
func NewRouter(mgr *blockmgr.Manager) http.Handler {
	h := NewHandler(mgr)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", h.Healthz)
	r.Get("/blocks", h.Blocks)
	r.Get("/blocks/{id}", h.BlockByID)
	r.Get("/stats", h.Stats)

	return r
}

func blockIDParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("diagnostics request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
