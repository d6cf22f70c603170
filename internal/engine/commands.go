package engine

import (
	"context"
	"fmt"
	"strings"

	"conclave/internal/gateway"
	"conclave/internal/securityaudit"
	"conclave/internal/snapshot"
	"conclave/pkg/domain"
	dErrors "conclave/pkg/domain-errors"
)

// handleMessage caches the message for the protection engine, then checks
// the governance surfaces: the command prefix and the mass-notification
// trigger. Bot authors get cached but never command.
func (e *Engine) handleMessage(ctx context.Context, msg gateway.Message) {
	if err := e.snapshots.Put(ctx, snapshot.Snapshot{
		MessageID:  msg.ID,
		ChannelID:  msg.ChannelID,
		AuthorID:   msg.AuthorID,
		AuthorName: msg.AuthorName,
		Content:    msg.Content,
		SentAt:     msg.SentAt,
		CachedAt:   e.clock(),
	}); err != nil {
		e.logger.WarnContext(ctx, "snapshot cache failed",
			"message", msg.ID.String(),
			"error", err,
		)
	}
	if e.metrics != nil {
		e.metrics.IncSnapshotCached()
	}

	if author, ok := e.view.Member(msg.AuthorID); ok && author.IsBot {
		return
	}

	if strings.HasPrefix(msg.Content, e.cfg.Prefix) {
		e.handleCommand(ctx, msg)
		return
	}

	if strings.Contains(msg.Content, "@everyone") {
		e.handleMassNotification(ctx, msg)
	}
}

// handleCommand parses and runs one prefixed command. Unknown commands are
// ignored silently; known commands from non-privileged members get a short
// refusal so the author knows the command exists.
func (e *Engine) handleCommand(ctx context.Context, msg gateway.Message) {
	fields := strings.Fields(strings.TrimPrefix(msg.Content, e.cfg.Prefix))
	if len(fields) == 0 {
		return
	}
	name, args := fields[0], fields[1:]

	var run func(ctx context.Context, msg gateway.Message, args []string)
	switch name {
	case "vote":
		run = e.cmdVoteAdmission
	case "vote-kick":
		run = e.cmdVoteKick
	case "vote-cancel":
		run = e.cmdVoteCancel
	case "test-kick":
		run = e.cmdTestKick
	default:
		return
	}

	if !e.view.IsPrivileged(msg.AuthorID) {
		e.reply(ctx, msg, "Only privileged members may use governance commands.")
		return
	}
	run(ctx, msg, args)
}

func (e *Engine) cmdVoteAdmission(ctx context.Context, msg gateway.Message, args []string) {
	subject, ok := mentionedMember(args)
	if !ok {
		e.reply(ctx, msg, fmt.Sprintf("Usage: %svote @member", e.cfg.Prefix))
		return
	}
	_, err := e.governor.Open(ctx, domain.BallotKindAdmission, subject, msg.AuthorID, "admission requested")
	if err != nil {
		e.reply(ctx, msg, dErrors.MessageOf(err))
	}
}

func (e *Engine) cmdVoteKick(ctx context.Context, msg gateway.Message, args []string) {
	subject, ok := mentionedMember(args)
	if !ok {
		e.reply(ctx, msg, fmt.Sprintf("Usage: %svote-kick @member", e.cfg.Prefix))
		return
	}
	_, err := e.governor.Open(ctx, domain.BallotKindManualSanction, subject, msg.AuthorID, "sanction requested")
	if err != nil {
		e.reply(ctx, msg, dErrors.MessageOf(err))
	}
}

func (e *Engine) cmdVoteCancel(ctx context.Context, msg gateway.Message, args []string) {
	subject, ok := mentionedMember(args)
	if !ok {
		e.reply(ctx, msg, fmt.Sprintf("Usage: %svote-cancel @member", e.cfg.Prefix))
		return
	}
	canceled, err := e.governor.CancelBySubject(ctx, subject, msg.AuthorID)
	if err != nil {
		e.reply(ctx, msg, dErrors.MessageOf(err))
		return
	}
	e.reply(ctx, msg, fmt.Sprintf("Canceled %d ballot(s) for %s.", canceled, subject.Mention()))
}

// cmdTestKick is the diagnostic purge: every non-privileged, non-bot member
// is kicked and the victim list goes to the purge channel.
func (e *Engine) cmdTestKick(ctx context.Context, msg gateway.Message, _ []string) {
	victims := e.view.NonPrivilegedMembers()
	if len(victims) == 0 {
		e.reply(ctx, msg, "Nobody to purge.")
		return
	}

	names := make([]string, 0, len(victims))
	for _, v := range victims {
		if err := e.client.KickMember(ctx, v.ID, "diagnostic purge"); err != nil {
			e.logger.ErrorContext(ctx, "purge kick failed",
				"member", v.ID.String(),
				"error", err,
			)
			continue
		}
		names = append(names, v.DisplayName)
		e.logAudit(ctx, securityaudit.Event{
			Kind:        securityaudit.EventMemberPurged,
			Subject:     v.ID,
			SubjectName: v.DisplayName,
			Actor:       msg.AuthorID,
			ActorName:   msg.AuthorName,
		})
	}

	out := gateway.OutboundMessage{
		Content: fmt.Sprintf("Purged %d members: %s", len(names), strings.Join(names, ", ")),
	}
	if _, err := e.client.SendMessage(ctx, e.cfg.PurgeChannel, out); err != nil {
		e.logger.ErrorContext(ctx, "purge report failed", "error", err)
	}
}

// handleMassNotification opens a severe-sanction ballot against a privileged
// member who pinged the whole community. An already-open ballot for the
// member means the abuse is being voted on; the conflict is not an error.
func (e *Engine) handleMassNotification(ctx context.Context, msg gateway.Message) {
	if !e.view.IsPrivileged(msg.AuthorID) {
		return
	}

	// System-triggered: no member initiated this ballot.
	_, err := e.governor.Open(ctx, domain.BallotKindSevereSanction, msg.AuthorID, "", "mass notification abuse")
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			e.logger.DebugContext(ctx, "severe sanction already open",
				"subject", msg.AuthorID.String(),
			)
			return
		}
		e.logger.ErrorContext(ctx, "severe sanction open failed",
			"subject", msg.AuthorID.String(),
			"error", err,
		)
	}
}

func (e *Engine) reply(ctx context.Context, msg gateway.Message, content string) {
	out := gateway.OutboundMessage{Content: content}
	if _, err := e.client.SendMessage(ctx, msg.ChannelID, out); err != nil {
		e.logger.WarnContext(ctx, "command reply failed",
			"channel", msg.ChannelID.String(),
			"error", err,
		)
	}
}

// mentionedMember extracts the first member mention from command arguments.
// Mentions arrive as <@id> or <@!id> tokens.
func mentionedMember(args []string) (domain.MemberID, bool) {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "<@") || !strings.HasSuffix(arg, ">") {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(arg, "<@"), ">")
		raw = strings.TrimPrefix(raw, "!")
		id, err := domain.ParseMemberID(raw)
		if err != nil {
			continue
		}
		return id, true
	}
	return "", false
}
