// Package rest implements the gateway client against the platform relay's
// JSON API. The relay owns the actual chat-platform session; the engine only
// speaks plain authenticated HTTP to it.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"conclave/internal/gateway"
	"conclave/pkg/domain"
	"conclave/pkg/platform/sentinel"
)

// Config holds the relay endpoint settings.
type Config struct {
	BaseURL string
	Token   string
	GuildID string
	Timeout time.Duration
}

// Client talks to the platform relay. It satisfies gateway.Client.
type Client struct {
	base  string
	token string
	guild string
	httpc *http.Client
}

var _ gateway.Client = (*Client)(nil)

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		token: cfg.Token,
		guild: cfg.GuildID,
		httpc: &http.Client{Timeout: timeout},
	}
}

type outboundMessagePayload struct {
	Content string          `json:"content,omitempty"`
	Embed   *embedPayload   `json:"embed,omitempty"`
	Buttons []buttonPayload `json:"buttons,omitempty"`
}

type embedPayload struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Fields      []embedFieldPayload `json:"fields,omitempty"`
	Footer      string              `json:"footer,omitempty"`
}

type embedFieldPayload struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type buttonPayload struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled,omitempty"`
}

type memberPayload struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	IsBot       bool     `json:"is_bot"`
}

type invitePayload struct {
	Code      string    `json:"code"`
	ChannelID string    `json:"channel_id"`
	URL       string    `json:"url"`
	MaxUses   int       `json:"max_uses"`
	ExpiresAt time.Time `json:"expires_at"`
}

type auditEntryPayload struct {
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	TargetID  string    `json:"target_id"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func encodeMessage(msg gateway.OutboundMessage) outboundMessagePayload {
	p := outboundMessagePayload{Content: msg.Content}
	if msg.Embed != nil {
		e := embedPayload{
			Title:       msg.Embed.Title,
			Description: msg.Embed.Description,
			Footer:      msg.Embed.Footer,
		}
		for _, f := range msg.Embed.Fields {
			e.Fields = append(e.Fields, embedFieldPayload{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		p.Embed = &e
	}
	for _, b := range msg.Buttons {
		p.Buttons = append(p.Buttons, buttonPayload{ID: b.ID, Label: b.Label, Disabled: b.Disabled})
	}
	return p
}

func decodeMember(p memberPayload) gateway.Member {
	roles := make([]domain.RoleID, 0, len(p.Roles))
	for _, r := range p.Roles {
		roles = append(roles, domain.RoleID(r))
	}
	return gateway.Member{
		ID:          domain.MemberID(p.ID),
		DisplayName: p.DisplayName,
		Roles:       roles,
		IsBot:       p.IsBot,
	}
}

func (c *Client) SendMessage(ctx context.Context, channel domain.ChannelID, msg gateway.OutboundMessage) (domain.MessageID, error) {
	var out struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/guilds/%s/channels/%s/messages", c.guild, channel)
	if err := c.do(ctx, http.MethodPost, path, encodeMessage(msg), &out); err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return domain.MessageID(out.ID), nil
}

func (c *Client) EditMessage(ctx context.Context, channel domain.ChannelID, message domain.MessageID, msg gateway.OutboundMessage) error {
	path := fmt.Sprintf("/guilds/%s/channels/%s/messages/%s", c.guild, channel, message)
	if err := c.do(ctx, http.MethodPatch, path, encodeMessage(msg), nil); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (c *Client) SendDirectMessage(ctx context.Context, member domain.MemberID, msg gateway.OutboundMessage) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/dm", c.guild, member)
	if err := c.do(ctx, http.MethodPost, path, encodeMessage(msg), nil); err != nil {
		return fmt.Errorf("send direct message: %w", err)
	}
	return nil
}

func (c *Client) GrantRole(ctx context.Context, member domain.MemberID, role domain.RoleID) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", c.guild, member, role)
	if err := c.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

func (c *Client) RevokeRole(ctx context.Context, member domain.MemberID, role domain.RoleID) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", c.guild, member, role)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}

func (c *Client) KickMember(ctx context.Context, member domain.MemberID, reason string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s?reason=%s", c.guild, member, url.QueryEscape(reason))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("kick member: %w", err)
	}
	return nil
}

func (c *Client) UnbanMember(ctx context.Context, member domain.MemberID, reason string) error {
	path := fmt.Sprintf("/guilds/%s/bans/%s?reason=%s", c.guild, member, url.QueryEscape(reason))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("unban member: %w", err)
	}
	return nil
}

func (c *Client) CreateInvite(ctx context.Context, channel domain.ChannelID, maxUses int, ttl time.Duration) (gateway.Invite, error) {
	body := map[string]any{
		"max_uses":    maxUses,
		"ttl_seconds": int(ttl.Seconds()),
	}
	var out invitePayload
	path := fmt.Sprintf("/guilds/%s/channels/%s/invites", c.guild, channel)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return gateway.Invite{}, fmt.Errorf("create invite: %w", err)
	}
	return gateway.Invite{
		Code:      domain.InviteCode(out.Code),
		ChannelID: domain.ChannelID(out.ChannelID),
		URL:       out.URL,
		MaxUses:   out.MaxUses,
		ExpiresAt: out.ExpiresAt,
	}, nil
}

func (c *Client) ListMembers(ctx context.Context) ([]gateway.Member, error) {
	var out struct {
		Members []memberPayload `json:"members"`
	}
	path := fmt.Sprintf("/guilds/%s/members", c.guild)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	members := make([]gateway.Member, 0, len(out.Members))
	for _, m := range out.Members {
		members = append(members, decodeMember(m))
	}
	return members, nil
}

func (c *Client) Member(ctx context.Context, id domain.MemberID) (gateway.Member, error) {
	var out memberPayload
	path := fmt.Sprintf("/guilds/%s/members/%s", c.guild, id)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return gateway.Member{}, fmt.Errorf("member %s: %w", id, err)
	}
	return decodeMember(out), nil
}

func (c *Client) AuditLog(ctx context.Context, action domain.AuditActionKind, limit int) ([]gateway.AuditEntry, error) {
	var out struct {
		Entries []auditEntryPayload `json:"entries"`
	}
	path := fmt.Sprintf("/guilds/%s/audit-log?action=%s&limit=%s",
		c.guild, url.QueryEscape(action.String()), strconv.Itoa(limit))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	entries := make([]gateway.AuditEntry, 0, len(out.Entries))
	for _, e := range out.Entries {
		entries = append(entries, gateway.AuditEntry{
			ActorID:   domain.MemberID(e.ActorID),
			ActorName: e.ActorName,
			TargetID:  domain.MemberID(e.TargetID),
			Action:    domain.AuditActionKind(e.Action),
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt,
		})
	}
	return entries, nil
}

// do runs one relay request. 404 maps to sentinel.ErrNotFound so callers can
// branch without inspecting status codes.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: relay returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay rejected %s %s: %d %s", method, path, resp.StatusCode, string(payload))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
