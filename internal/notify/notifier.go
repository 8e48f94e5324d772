// Package notify provides a multi-channel notification system. Pipeline
// events are dispatched to all registered senders (Telegram, Discord) and can
// be filtered by event type so operators receive only the alerts they care
// about.
package notify

import (
	"context"
	"log/slog"
	"strings"
)

// Event types emitted by the pipeline.
const (
	EventPlanExecuted = "plan_executed"
	EventPlanFailed   = "plan_failed"
	EventBundleFailed = "bundle_failed"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders, filtered by event
// type. Delivery is best-effort: failures are logged, never propagated into
// the pipeline.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in the events slice will be forwarded. If events
// is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Send forwards the message to all senders if the event type is allowed.
func (n *Notifier) Send(ctx context.Context, event, message string) {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return
	}
	n.dispatch(ctx, event, message)
}

// dispatch iterates over all senders. A single sender failure does not
// prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, title, message string) {
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
}

// SendersFromConfig builds the sender list for the configured channels.
func SendersFromConfig(telegramToken, telegramChatID, discordWebhookURL string) []Sender {
	var senders []Sender
	if telegramToken != "" && telegramChatID != "" {
		senders = append(senders, NewTelegramSender(telegramToken, telegramChatID))
	}
	if discordWebhookURL != "" {
		senders = append(senders, NewDiscordSender(discordWebhookURL))
	}
	return senders
}
