// Package ingest receives platform events from the relay as JSON webhooks
// and feeds them to the dispatch loop. One envelope per request; the relay
// retries on 503 so a full buffer sheds load instead of blocking.
package ingest

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"conclave/internal/gateway"
	"conclave/pkg/domain"
)

// Envelope is the wire form of one relay event.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type memberWire struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	IsBot       bool     `json:"is_bot"`
}

type messageWire struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channel_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
}

// Handler decodes envelopes and pushes events onto the buffered channel.
type Handler struct {
	secret string
	events chan gateway.Event
	logger *slog.Logger
}

type Option func(h *Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func New(secret string, buffer int, opts ...Option) *Handler {
	if buffer <= 0 {
		buffer = 256
	}
	h := &Handler{
		secret: secret,
		events: make(chan gateway.Event, buffer),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Events is the channel the dispatch loop consumes.
func (h *Handler) Events() <-chan gateway.Event {
	return h.events
}

// Close releases the channel so a draining dispatch loop terminates.
func (h *Handler) Close() {
	close(h.events)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Gateway-Secret")), []byte(h.secret)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var envelope Envelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		http.Error(w, "malformed envelope", http.StatusBadRequest)
		return
	}

	event, err := decode(envelope)
	if err != nil {
		h.logger.WarnContext(r.Context(), "undecodable event",
			"type", envelope.Type,
			"error", err,
		)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	if event == nil {
		// Unknown event types are acknowledged so the relay does not retry.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	select {
	case h.events <- event:
		w.WriteHeader(http.StatusAccepted)
	default:
		h.logger.WarnContext(r.Context(), "event buffer full, shedding",
			"type", envelope.Type,
		)
		w.WriteHeader(http.StatusServiceUnavailable)
	}
}

func decode(envelope Envelope) (gateway.Event, error) {
	switch envelope.Type {
	case "member_joined":
		var p memberWire
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			return nil, err
		}
		return gateway.MemberJoined{Member: decodeMember(p)}, nil

	case "member_removed":
		var p struct {
			MemberID    string `json:"member_id"`
			DisplayName string `json:"display_name"`
		}
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			return nil, err
		}
		return gateway.MemberRemoved{MemberID: domain.MemberID(p.MemberID), DisplayName: p.DisplayName}, nil

	case "ban_added":
		var p struct {
			MemberID    string `json:"member_id"`
			DisplayName string `json:"display_name"`
		}
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			return nil, err
		}
		return gateway.BanAdded{MemberID: domain.MemberID(p.MemberID), DisplayName: p.DisplayName}, nil

	case "ban_removed":
		var p struct {
			MemberID string `json:"member_id"`
		}
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			return nil, err
		}
		return gateway.BanRemoved{MemberID: domain.MemberID(p.MemberID)}, nil

	case "message_created":
		var p messageWire
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			return nil, err
		}
		return gateway.MessageCreated{Message: gateway.Message{
			ID:         domain.MessageID(p.ID),
			ChannelID:  domain.ChannelID(p.ChannelID),
			AuthorID:   domain.MemberID(p.AuthorID),
			AuthorName: p.AuthorName,
			Content:    p.Content,
			SentAt:     p.SentAt,
		}}, nil

	case "message_deleted":
		var p struct {
			MessageID string `json:"message_id"`
			ChannelID string `json:"channel_id"`
			AuthorID  string `json:"author_id"`
		}
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			return nil, err
		}
		return gateway.MessageDeleted{
			MessageID: domain.MessageID(p.MessageID),
			ChannelID: domain.ChannelID(p.ChannelID),
			AuthorID:  domain.MemberID(p.AuthorID),
		}, nil

	case "messages_bulk_deleted":
		var p struct {
			MessageIDs []string `json:"message_ids"`
			ChannelID  string   `json:"channel_id"`
		}
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			return nil, err
		}
		ids := make([]domain.MessageID, 0, len(p.MessageIDs))
		for _, id := range p.MessageIDs {
			ids = append(ids, domain.MessageID(id))
		}
		return gateway.MessagesBulkDeleted{MessageIDs: ids, ChannelID: domain.ChannelID(p.ChannelID)}, nil

	case "member_roles_updated":
		var p struct {
			MemberID    string   `json:"member_id"`
			DisplayName string   `json:"display_name"`
			Added       []string `json:"added"`
			Removed     []string `json:"removed"`
			Roles       []string `json:"roles"`
		}
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			return nil, err
		}
		return gateway.MemberRolesUpdated{
			MemberID:    domain.MemberID(p.MemberID),
			DisplayName: p.DisplayName,
			Added:       decodeRoles(p.Added),
			Removed:     decodeRoles(p.Removed),
			Roles:       decodeRoles(p.Roles),
		}, nil

	case "interaction_clicked":
		var p struct {
			MessageID string `json:"message_id"`
			ChannelID string `json:"channel_id"`
			MemberID  string `json:"member_id"`
			ButtonID  string `json:"button_id"`
		}
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			return nil, err
		}
		return gateway.InteractionClicked{
			MessageID: domain.MessageID(p.MessageID),
			ChannelID: domain.ChannelID(p.ChannelID),
			MemberID:  domain.MemberID(p.MemberID),
			ButtonID:  p.ButtonID,
		}, nil
	}

	return nil, nil
}

func decodeMember(p memberWire) gateway.Member {
	return gateway.Member{
		ID:          domain.MemberID(p.ID),
		DisplayName: p.DisplayName,
		Roles:       decodeRoles(p.Roles),
		IsBot:       p.IsBot,
	}
}

func decodeRoles(raw []string) []domain.RoleID {
	if len(raw) == 0 {
		return nil
	}
	roles := make([]domain.RoleID, 0, len(raw))
	for _, r := range raw {
		roles = append(roles, domain.RoleID(r))
	}
	return roles
}
