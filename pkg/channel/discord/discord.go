package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"transbot/pkg/bus"
	"transbot/pkg/channel"
	"transbot/pkg/config"

	"github.com/bwmarrin/discordgo"
)

const channelName = "discord"

// Discord shows a typing indicator for about ten seconds per request.
const typingRefreshInterval = 8 * time.Second

const intents = discordgo.IntentGuildMessages | discordgo.IntentDirectMessages | discordgo.IntentMessageContent

// Adapter bridges Discord gateway messages into the shared channel handler.
type Adapter struct {
	cfg       config.DiscordConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
	selfID    atomic.Value
}

// NewAdapter validates Discord configuration and constructs an adapter instance.
func NewAdapter(cfg config.DiscordConfig, log *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, &config.Error{Field: "channels.discord.token", Detail: "is required (set DISCORD_BOT_TOKEN)"}
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: channel.AllowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.discord"),
	}, nil
}

// Name returns the channel identifier used in messages and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run connects to the Discord gateway and serves until ctx is cancelled.
// discordgo dispatches every MessageCreate on its own goroutine; Run waits
// for those handlers before returning.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	session, err := discordgo.New("Bot " + strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize discord session: %w", err)
	}
	session.Identify.Intents = intents

	var wg sync.WaitGroup
	var mu sync.Mutex
	stopped := false

	removeReady := session.AddHandler(func(_ *discordgo.Session, ready *discordgo.Ready) {
		if ready.User != nil {
			a.selfID.Store(ready.User.ID)
			a.log.Info("Discord session ready", "bot_id", ready.User.ID, "bot_username", ready.User.Username)
		}
	})
	defer removeReady()

	removeMessage := session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		wg.Add(1)
		mu.Unlock()
		defer wg.Done()

		inbound, ok := a.inboundMessage(m, a.botID(s))
		if !ok {
			return
		}
		a.log.Info("Received message", "chat_id", inbound.ChatID, "sender_id", inbound.SenderID, "content", channel.Preview(inbound.Content))

		stopTyping := func() {}
		if channel.Replyable(inbound) {
			stopTyping = a.startTypingIndicator(ctx, s, m.ChannelID)
		}
		defer stopTyping()

		if err := handler(ctx, inbound, a.sender(s, m.ChannelID, stopTyping)); err != nil {
			a.log.Error("Failed to process inbound message", "chat_id", inbound.ChatID, "error", err)
		}
	})
	defer removeMessage()

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	a.log.Info("Discord channel started")

	<-ctx.Done()

	mu.Lock()
	stopped = true
	mu.Unlock()
	wg.Wait()

	if err := session.Close(); err != nil {
		a.log.Warn("Failed to close discord session", "error", err)
	}

	return nil
}

func (a *Adapter) botID(s *discordgo.Session) string {
	if id, ok := a.selfID.Load().(string); ok && id != "" {
		return id
	}
	if s != nil && s.State != nil && s.State.User != nil {
		return s.State.User.ID
	}

	return ""
}

// inboundMessage converts a MessageCreate into an inbound message. Messages
// from other bots (when ignore_bots is set) and from senders outside
// allow_from are skipped. The bot's own messages are delivered with FromSelf
// so the handler can drop them.
func (a *Adapter) inboundMessage(m *discordgo.MessageCreate, selfID string) (bus.InboundMessage, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return bus.InboundMessage{}, false
	}

	fromSelf := selfID != "" && m.Author.ID == selfID
	if !fromSelf {
		if m.Author.Bot && a.cfg.IgnoreBots {
			a.log.Debug("Ignoring message from bot", "sender_id", m.Author.ID)
			return bus.InboundMessage{}, false
		}
		if !channel.SenderAllowed(a.allowFrom, m.Author.ID) {
			a.log.Debug("Ignoring message from unauthorized sender", "sender_id", m.Author.ID)
			return bus.InboundMessage{}, false
		}
	}

	metadata := map[string]string{}
	if m.GuildID != "" {
		metadata["guild_id"] = m.GuildID
	}
	if m.Author.Bot {
		metadata["author_bot"] = "true"
	}

	return bus.InboundMessage{
		Channel:   channelName,
		ChatID:    m.ChannelID,
		SenderID:  m.Author.ID,
		MessageID: m.ID,
		FromSelf:  fromSelf,
		Content:   m.Content,
		Metadata:  metadata,
	}, true
}

func (a *Adapter) sender(s *discordgo.Session, channelID string, stopTyping func()) channel.Sender {
	return channel.SenderFunc(func(ctx context.Context, text string) error {
		stopTyping()
		a.log.Info("Sending message", "chat_id", channelID, "content", channel.Preview(text))

		if _, err := s.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}

		return nil
	})
}

// startTypingIndicator triggers typing and refreshes it until the returned
// cancel function is called.
func (a *Adapter) startTypingIndicator(ctx context.Context, s *discordgo.Session, channelID string) context.CancelFunc {
	typingCtx, cancel := context.WithCancel(ctx)

	sendTyping := func() {
		if err := s.ChannelTyping(channelID, discordgo.WithContext(typingCtx)); err != nil && typingCtx.Err() == nil {
			a.log.Debug("Failed to send typing indicator", "chat_id", channelID, "error", err)
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

