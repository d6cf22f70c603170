package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"conclave/internal/ballot"
	"conclave/internal/platform/middleware"
	"conclave/internal/transport/http/shared"
	"conclave/pkg/domain"
	dErrors "conclave/pkg/domain-errors"
)

// Coordinator is the slice of the vote coordinator the ops API exposes.
type Coordinator interface {
	List() []ballot.Summary
	Get(id domain.BallotID) (ballot.Summary, error)
	Cancel(ctx context.Context, id domain.BallotID, actor domain.MemberID) error
}

// BallotHandler serves the ballot inspection and override endpoints.
type BallotHandler struct {
	coordinator Coordinator
	logger      *slog.Logger
}

func NewBallotHandler(coordinator Coordinator, logger *slog.Logger) *BallotHandler {
	return &BallotHandler{coordinator: coordinator, logger: logger}
}

func (h *BallotHandler) handleList(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"ballots": h.coordinator.List(),
	})
}

func (h *BallotHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseBallotID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	summary, err := h.coordinator.Get(id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summary)
}

// handleCancel is the moderator override. The authenticated operator subject
// is recorded as the canceling actor.
func (h *BallotHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseBallotID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	subject := middleware.GetSubject(ctx)
	if subject == "" {
		h.logger.ErrorContext(ctx, "subject missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	if err := h.coordinator.Cancel(ctx, id, domain.MemberID(subject)); err != nil {
		h.logger.WarnContext(ctx, "ballot cancel rejected",
			"ballot_id", id.String(),
			"operator", subject,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "ballot canceled by operator",
		"ballot_id", id.String(),
		"operator", subject,
	)
	w.WriteHeader(http.StatusNoContent)
}
