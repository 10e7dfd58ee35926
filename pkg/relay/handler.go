// Package relay turns one inbound chat message into exactly one reply:
// it detects the message language, translates English text to Japanese and
// echoes everything else with its detected code.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"transbot/pkg/bus"
	"transbot/pkg/channel"

	"github.com/google/uuid"
)

const (
	// GenericErrorReply is the only failure text that ever reaches a chat.
	GenericErrorReply = "An error occurred. Please try again later."

	sourceLanguage = "en"
	targetLanguage = "ja"
)

// LanguageDetector returns a language code for text.
type LanguageDetector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// TextTranslator translates text into targetLang.
type TextTranslator interface {
	Translate(ctx context.Context, text string, targetLang string) (string, error)
}

type Handler struct {
	detector   LanguageDetector
	translator TextTranslator
	commands   *channel.Commands
	bus        *bus.MessageBus
	log        *slog.Logger
}

// Option customizes a Handler.
type Option func(*Handler)

// WithCommands forwards every handled message to commands after the reply.
func WithCommands(commands *channel.Commands) Option {
	return func(h *Handler) {
		h.commands = commands
	}
}

// WithBus publishes message lifecycle events on messageBus.
func WithBus(messageBus *bus.MessageBus) Option {
	return func(h *Handler) {
		h.bus = messageBus
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

func NewHandler(detector LanguageDetector, translator TextTranslator, opts ...Option) (*Handler, error) {
	if detector == nil {
		return nil, errors.New("detector is required")
	}
	if translator == nil {
		return nil, errors.New("translator is required")
	}

	h := &Handler{
		detector:   detector,
		translator: translator,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("component", "relay.handler")

	return h, nil
}

// Handle is a channel.Handler. Messages written by the bot itself and
// messages with no visible text are dropped without a reply. Everything else
// gets exactly one reply through sender and is then offered to the command
// dispatcher. The returned error is non-nil only when even the generic error
// reply could not be delivered.
func (h *Handler) Handle(ctx context.Context, msg bus.InboundMessage, sender channel.Sender) error {
	if sender == nil {
		return errors.New("sender is required")
	}

	text := strings.TrimSpace(msg.Content)
	if msg.FromSelf || text == "" {
		return nil
	}

	requestID := uuid.NewString()
	log := h.log.With("request_id", requestID, "channel", msg.Channel, "chat_id", msg.ChatID)
	log.Debug("Handling message", "sender_id", msg.SenderID, "content_length", len(text))
	h.publish(ctx, bus.Event{Type: bus.EventMessageReceived, Channel: msg.Channel, ChatID: msg.ChatID, RequestID: requestID})

	var replyErr error
	code, translated, stage, err := h.reply(ctx, msg, text, sender)
	if err != nil {
		category := Classify(err)
		log.Error("Failed to handle message", "stage", stage, "category", category, "error", err)
		h.publish(ctx, bus.Event{
			Type:      bus.EventMessageFailed,
			Channel:   msg.Channel,
			ChatID:    msg.ChatID,
			RequestID: requestID,
			Payload: map[string]string{
				bus.PayloadCategory: string(category),
				bus.PayloadStage:    string(stage),
			},
			Error: err.Error(),
		})

		if sendErr := sender.Send(ctx, GenericErrorReply); sendErr != nil {
			replyErr = &DeliveryError{Channel: msg.Channel, Err: sendErr}
			log.Error("Failed to send error reply", "category", CategoryDelivery, "error", sendErr)
		}
	} else {
		log.Info("Replied to message", "detected_language", code, "translated", translated)
		h.publish(ctx, bus.Event{
			Type:      bus.EventMessageReplied,
			Channel:   msg.Channel,
			ChatID:    msg.ChatID,
			RequestID: requestID,
			Payload: map[string]string{
				bus.PayloadDetectedLanguage: code,
				bus.PayloadTranslated:       boolString(translated),
			},
		})
	}

	if ran, err := h.commands.Dispatch(ctx, msg, sender); err != nil {
		log.Error("Command failed", "error", err)
	} else if ran {
		log.Debug("Command dispatched")
	}

	return replyErr
}

// reply runs detection, the optional translation and the single send.
func (h *Handler) reply(ctx context.Context, msg bus.InboundMessage, text string, sender channel.Sender) (string, bool, Stage, error) {
	code, err := h.detector.Detect(ctx, text)
	if err != nil {
		return "", false, StageDetect, err
	}

	var reply string
	translated := strings.ToLower(code) == sourceLanguage
	if translated {
		translation, err := h.translator.Translate(ctx, text, targetLanguage)
		if err != nil {
			return code, false, StageTranslate, err
		}
		reply = "Translation result: " + translation
	} else {
		reply = "The detected language is " + code + ", displaying as is: " + text
	}

	if err := sender.Send(ctx, reply); err != nil {
		return code, translated, StageReply, &DeliveryError{Channel: msg.Channel, Err: err}
	}

	return code, translated, "", nil
}

func (h *Handler) publish(ctx context.Context, event bus.Event) {
	if h.bus == nil {
		return
	}
	h.bus.PublishEvent(ctx, event)
}

func boolString(v bool) string {
	if v {
		return "true"
	}

	return "false"
}
