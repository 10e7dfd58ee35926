package gateway

import (
	"log/slog"

	"transbot/pkg/bus"
)

// observeEvents logs relay events until the subscription is closed.
func observeEvents(events <-chan bus.Event) {
	log := slog.Default().With("component", "bus.events")
	for event := range events {
		logEvent(log, event)
	}
}

func logEvent(log *slog.Logger, event bus.Event) {
	attrs := []any{
		"event_type", event.Type,
		"request_id", event.RequestID,
		"channel", event.Channel,
		"chat_id", event.ChatID,
		"timestamp", event.At.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
	}
	if len(event.Payload) > 0 {
		attrs = append(attrs, "payload", event.Payload)
	}

	switch event.Type {
	case bus.EventMessageFailed:
		log.Warn("Message event", append(attrs, "error", event.Error)...)
	case bus.EventMessageReplied:
		log.Info("Message event", attrs...)
	default:
		log.Debug("Message event", attrs...)
	}
}
