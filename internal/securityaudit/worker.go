package securityaudit

import (
	"context"
	"log/slog"

	"conclave/internal/gateway"
	"conclave/pkg/domain"
)

// MessageSender is the slice of the gateway client the worker needs.
type MessageSender interface {
	SendMessage(ctx context.Context, channel domain.ChannelID, msg gateway.OutboundMessage) (domain.MessageID, error)
}

// Worker consumes published events and posts a rendering to the moderation
// log channel. With no channel configured the trail is store-only and the
// worker just drains the inbox.
type Worker struct {
	inbox      <-chan Event
	sender     MessageSender
	logChannel domain.ChannelID
	logger     *slog.Logger
}

func NewWorker(inbox <-chan Event, sender MessageSender, logChannel domain.ChannelID, logger *slog.Logger) *Worker {
	return &Worker{
		inbox:      inbox,
		sender:     sender,
		logChannel: logChannel,
		logger:     logger,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	if w.logChannel == "" {
		w.logger.Warn("no log channel configured, security audit is store-only")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if w.logChannel == "" {
				continue
			}
			if _, err := w.sender.SendMessage(ctx, w.logChannel, render(event)); err != nil {
				w.logger.ErrorContext(ctx, "log channel post failed",
					"log_type", "audit",
					"kind", string(event.Kind),
					"error", err,
				)
			}
		}
	}
}

func render(event Event) gateway.OutboundMessage {
	embed := &gateway.Embed{
		Title:  string(event.Kind),
		Footer: event.At.UTC().Format("2006-01-02 15:04:05 UTC"),
	}
	if event.Subject != "" {
		embed.Fields = append(embed.Fields, gateway.EmbedField{
			Name:   "Member",
			Value:  event.SubjectName + " (" + event.Subject.Mention() + ")",
			Inline: true,
		})
	}
	if event.Actor != "" {
		embed.Fields = append(embed.Fields, gateway.EmbedField{
			Name:   "Actor",
			Value:  event.ActorName + " (" + event.Actor.Mention() + ")",
			Inline: true,
		})
	}
	if event.Detail != "" {
		embed.Description = event.Detail
	}
	return gateway.OutboundMessage{Embed: embed}
}
