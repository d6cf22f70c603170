package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"conclave/internal/securityaudit"
	"conclave/internal/transport/http/shared"
	dErrors "conclave/pkg/domain-errors"
)

const defaultAuditLimit = 50

// AuditStore reads the security trail.
type AuditStore interface {
	ListRecent(ctx context.Context, limit int) ([]securityaudit.Event, error)
}

// AuditHandler serves the security-event inspection endpoint.
type AuditHandler struct {
	store  AuditStore
	logger *slog.Logger
}

func NewAuditHandler(store AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{store: store, logger: logger}
}

func (h *AuditHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	events, err := h.store.ListRecent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit listing failed", "error", err)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "could not list events"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}
