package channel

import (
	"strings"

	"transbot/pkg/bus"
)

// AllowFromSet normalizes allow_from values into a lookup set. It returns nil
// when nothing usable is configured.
func AllowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// SenderAllowed checks senderID against an allow set.
//
// When no allow list is configured, all senders are accepted.
func SenderAllowed(allowed map[string]struct{}, senderID string) bool {
	if len(allowed) == 0 {
		return true
	}

	_, ok := allowed[strings.TrimSpace(senderID)]
	return ok
}

// Replyable reports whether msg will get a reply from the relay handler.
// Adapters use it to skip typing indicators for filtered messages.
func Replyable(msg bus.InboundMessage) bool {
	return !msg.FromSelf && strings.TrimSpace(msg.Content) != ""
}
