// Package httptransport is the ops API: read-only ballot and audit
// inspection plus the authenticated moderator override. The community-facing
// surface is the chat gateway; this server exists for operators.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"conclave/internal/platform/middleware"
	"conclave/internal/transport/http/shared"
)

// NewRouter wires the ops endpoints. Cancel requires an operator JWT; the
// read endpoints do not. A non-nil ingest handler mounts the relay's event
// webhook, which carries its own shared-secret check.
func NewRouter(
	ballots *BallotHandler,
	audit *AuditHandler,
	ingest http.Handler,
	validator middleware.JWTValidator,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/ballots", ballots.handleList)
	r.Get("/ballots/{id}", ballots.handleGet)
	r.Get("/audit/events", audit.handleRecent)

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.RequireAuth(validator, logger))
		pr.Post("/ballots/{id}/cancel", ballots.handleCancel)
	})

	if ingest != nil {
		r.Method(http.MethodPost, "/gateway/events", ingest)
	}

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
