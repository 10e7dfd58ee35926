package bus

// InboundMessage is one chat message delivered by a transport adapter.
type InboundMessage struct {
	Channel   string            `json:"channel"`
	ChatID    string            `json:"chat_id"`
	SenderID  string            `json:"sender_id"`
	MessageID string            `json:"message_id,omitempty"`
	FromSelf  bool              `json:"from_self,omitempty"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
