package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"transbot/pkg/bus"
	"transbot/pkg/channel"
	"transbot/pkg/config"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const typingRefreshInterval = 4 * time.Second

// Adapter bridges Telegram updates into the shared channel handler.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, &config.Error{Field: "channels.telegram.token", Detail: "is required (set TELEGRAM_BOT_TOKEN)"}
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: channel.AllowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in messages and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and hands each text message to handler in
// its own goroutine. It waits for in-flight handlers before returning.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("get telegram bot identity: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started", "bot_username", me.Username)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			inbound, ok := a.inboundMessage(update, me.ID)
			if !ok {
				continue
			}
			a.log.Info("Received message", "chat_id", inbound.ChatID, "sender_id", inbound.SenderID, "content", channel.Preview(inbound.Content))

			chatID := update.Message.Chat.ID
			wg.Add(1)
			go func() {
				defer wg.Done()

				stopTyping := func() {}
				if channel.Replyable(inbound) {
					stopTyping = a.startTypingIndicator(ctx, bot, chatID)
				}
				defer stopTyping()

				if err := handler(ctx, inbound, a.sender(bot, chatID, stopTyping)); err != nil {
					a.log.Error("Failed to process inbound message", "chat_id", inbound.ChatID, "error", err)
				}
			}()
		}
	}
}

// inboundMessage converts a Telegram update into an inbound message. Updates
// without text, without a sender, or from senders outside allow_from are
// skipped.
func (a *Adapter) inboundMessage(update telego.Update, botID int64) (bus.InboundMessage, bool) {
	message := update.Message
	if message == nil || message.Text == "" {
		return bus.InboundMessage{}, false
	}
	if message.From == nil {
		a.log.Debug("Ignoring message without sender")
		return bus.InboundMessage{}, false
	}

	senderID := strconv.FormatInt(message.From.ID, 10)
	if !channel.SenderAllowed(a.allowFrom, senderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
		return bus.InboundMessage{}, false
	}

	return bus.InboundMessage{
		Channel:   channelName,
		SenderID:  senderID,
		ChatID:    strconv.FormatInt(message.Chat.ID, 10),
		MessageID: strconv.Itoa(message.MessageID),
		FromSelf:  message.From.ID == botID,
		Content:   message.Text,
		Metadata: map[string]string{
			"update_id": strconv.Itoa(update.UpdateID),
		},
	}, true
}

func (a *Adapter) sender(bot *telego.Bot, chatID int64, stopTyping func()) channel.Sender {
	return channel.SenderFunc(func(ctx context.Context, text string) error {
		stopTyping()
		a.log.Info("Sending message", "chat_id", chatID, "content", channel.Preview(text))

		if _, err := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}

		return nil
	})
}

// startTypingIndicator sends an initial typing action and refreshes it periodically
// until the returned cancel function is called.
func (a *Adapter) startTypingIndicator(ctx context.Context, bot *telego.Bot, chatID int64) context.CancelFunc {
	typingCtx, cancel := context.WithCancel(ctx)

	sendTyping := func() {
		if err := bot.SendChatAction(typingCtx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil && typingCtx.Err() == nil {
			a.log.Debug("Failed to send typing indicator", "chat_id", chatID, "error", err)
		}
	}

	sendTyping()

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				sendTyping()
			}
		}
	}()

	return cancel
}
