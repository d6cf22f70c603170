package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conclave/internal/gateway"
	"conclave/pkg/domain"
	"conclave/pkg/platform/sentinel"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

func newTestClient(t *testing.T, status int, response string) (*Client, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.Method = r.Method
		rec.Path = r.URL.Path
		rec.Query = r.URL.RawQuery
		rec.Auth = r.Header.Get("Authorization")
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	client := New(Config{
		BaseURL: server.URL,
		Token:   "relay-token",
		GuildID: "42",
		Timeout: 5 * time.Second,
	})
	return client, rec
}

func TestSendMessage(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, `{"id":"900"}`)

	id, err := client.SendMessage(context.Background(), "600", gateway.OutboundMessage{
		Content: "hello",
		Buttons: []gateway.Button{{ID: "ballot:yes", Label: "Yes"}},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.MessageID("900"), id)
	assert.Equal(t, http.MethodPost, rec.Method)
	assert.Equal(t, "/guilds/42/channels/600/messages", rec.Path)
	assert.Equal(t, "Bearer relay-token", rec.Auth)
	assert.Equal(t, "hello", rec.Body["content"])
}

func TestRoleMutations(t *testing.T) {
	t.Run("grant", func(t *testing.T) {
		client, rec := newTestClient(t, http.StatusNoContent, "")
		require.NoError(t, client.GrantRole(context.Background(), "1", "10"))
		assert.Equal(t, http.MethodPut, rec.Method)
		assert.Equal(t, "/guilds/42/members/1/roles/10", rec.Path)
	})

	t.Run("revoke", func(t *testing.T) {
		client, rec := newTestClient(t, http.StatusNoContent, "")
		require.NoError(t, client.RevokeRole(context.Background(), "1", "10"))
		assert.Equal(t, http.MethodDelete, rec.Method)
		assert.Equal(t, "/guilds/42/members/1/roles/10", rec.Path)
	})

	t.Run("kick carries the reason", func(t *testing.T) {
		client, rec := newTestClient(t, http.StatusNoContent, "")
		require.NoError(t, client.KickMember(context.Background(), "1", "severe sanction approved"))
		assert.Equal(t, "/guilds/42/members/1", rec.Path)
		assert.Contains(t, rec.Query, "reason=severe+sanction+approved")
	})
}

func TestCreateInvite(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK,
		`{"code":"abc123","channel_id":"600","url":"https://invite.test/abc123","max_uses":1}`)

	invite, err := client.CreateInvite(context.Background(), "600", 1, 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, domain.InviteCode("abc123"), invite.Code)
	assert.Equal(t, 1, invite.MaxUses)
	assert.Equal(t, float64(1), rec.Body["max_uses"])
	assert.Equal(t, float64(86400), rec.Body["ttl_seconds"])
}

func TestListMembers(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK,
		`{"members":[{"id":"1","display_name":"ada","roles":["10"],"is_bot":false}]}`)

	members, err := client.ListMembers(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, domain.MemberID("1"), members[0].ID)
	assert.True(t, members[0].HasRole("10"))
}

func TestAuditLog(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK,
		`{"entries":[{"actor_id":"99","actor_name":"mallory","target_id":"1","action":"member_kick"}]}`)

	entries, err := client.AuditLog(context.Background(), domain.AuditMemberKick, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.MemberID("99"), entries[0].ActorID)
	assert.Equal(t, domain.AuditMemberKick, entries[0].Action)
	assert.Contains(t, rec.Query, "action=member_kick")
	assert.Contains(t, rec.Query, "limit=5")
}

func TestErrorMapping(t *testing.T) {
	t.Run("404 is not found", func(t *testing.T) {
		client, _ := newTestClient(t, http.StatusNotFound, "")
		_, err := client.Member(context.Background(), "404")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("5xx is unavailable", func(t *testing.T) {
		client, _ := newTestClient(t, http.StatusBadGateway, "")
		_, err := client.ListMembers(context.Background())
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("4xx surfaces the relay response", func(t *testing.T) {
		client, _ := newTestClient(t, http.StatusForbidden, `{"error":"missing permission"}`)
		err := client.GrantRole(context.Background(), "1", "10")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing permission")
	})
}
