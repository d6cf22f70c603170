package ingest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conclave/internal/gateway"
	"conclave/pkg/domain"
)

const secret = "relay-secret"

func post(t *testing.T, h *Handler, withSecret bool, envelope Envelope) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(envelope)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/gateway/events", bytes.NewReader(body))
	if withSecret {
		req.Header.Set("X-Gateway-Secret", secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestIngest(t *testing.T) {
	t.Run("wrong secret is unauthorized", func(t *testing.T) {
		h := New(secret, 4)
		rec := post(t, h, false, Envelope{Type: "ban_removed", Payload: raw(t, map[string]string{"member_id": "1"})})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, h.Events())
	})

	t.Run("member joined decodes roles", func(t *testing.T) {
		h := New(secret, 4)
		rec := post(t, h, true, Envelope{Type: "member_joined", Payload: raw(t, map[string]any{
			"id": "1", "display_name": "ada", "roles": []string{"10", "11"},
		})})
		require.Equal(t, http.StatusAccepted, rec.Code)

		ev := (<-h.Events()).(gateway.MemberJoined)
		assert.Equal(t, domain.MemberID("1"), ev.Member.ID)
		assert.Equal(t, []domain.RoleID{"10", "11"}, ev.Member.Roles)
	})

	t.Run("message created carries content", func(t *testing.T) {
		h := New(secret, 4)
		rec := post(t, h, true, Envelope{Type: "message_created", Payload: raw(t, map[string]any{
			"id": "900", "channel_id": "600", "author_id": "1", "content": "!vote <@2>",
		})})
		require.Equal(t, http.StatusAccepted, rec.Code)

		ev := (<-h.Events()).(gateway.MessageCreated)
		assert.Equal(t, "!vote <@2>", ev.Message.Content)
		assert.Equal(t, domain.ChannelID("600"), ev.Message.ChannelID)
	})

	t.Run("message deleted carries the author", func(t *testing.T) {
		h := New(secret, 4)
		rec := post(t, h, true, Envelope{Type: "message_deleted", Payload: raw(t, map[string]any{
			"message_id": "900", "channel_id": "600", "author_id": "1",
		})})
		require.Equal(t, http.StatusAccepted, rec.Code)

		ev := (<-h.Events()).(gateway.MessageDeleted)
		assert.Equal(t, domain.MessageID("900"), ev.MessageID)
		assert.Equal(t, domain.MemberID("1"), ev.AuthorID)
	})

	t.Run("roles update keeps the delta", func(t *testing.T) {
		h := New(secret, 4)
		rec := post(t, h, true, Envelope{Type: "member_roles_updated", Payload: raw(t, map[string]any{
			"member_id": "1", "removed": []string{"10"}, "roles": []string{},
		})})
		require.Equal(t, http.StatusAccepted, rec.Code)

		ev := (<-h.Events()).(gateway.MemberRolesUpdated)
		assert.Equal(t, []domain.RoleID{"10"}, ev.Removed)
		assert.Nil(t, ev.Roles)
	})

	t.Run("unknown type acknowledged without event", func(t *testing.T) {
		h := New(secret, 4)
		rec := post(t, h, true, Envelope{Type: "typing_started", Payload: raw(t, map[string]string{})})
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Empty(t, h.Events())
	})

	t.Run("malformed payload rejected", func(t *testing.T) {
		h := New(secret, 4)
		rec := post(t, h, true, Envelope{Type: "ban_added", Payload: json.RawMessage(`"not-an-object"`)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("full buffer sheds with 503", func(t *testing.T) {
		h := New(secret, 1)
		first := post(t, h, true, Envelope{Type: "ban_removed", Payload: raw(t, map[string]string{"member_id": "1"})})
		require.Equal(t, http.StatusAccepted, first.Code)

		second := post(t, h, true, Envelope{Type: "ban_removed", Payload: raw(t, map[string]string{"member_id": "2"})})
		assert.Equal(t, http.StatusServiceUnavailable, second.Code)
	})
}
