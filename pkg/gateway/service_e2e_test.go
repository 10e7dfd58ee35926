package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"transbot/pkg/bus"
	"transbot/pkg/channel"
	"transbot/pkg/config"
	providertypes "transbot/pkg/provider/types"
	"transbot/pkg/relay"

	"github.com/stretchr/testify/require"
)

// scriptedProvider answers detection with a code per input text and
// translation with a fixed Japanese string.
type scriptedProvider struct {
	mu sync.Mutex

	healthErr   error
	healthCalls int
	codes       map[string]string
	translation string
	completeErr error
	requests    []providertypes.Request
}

func (p *scriptedProvider) Health(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthCalls++
	return p.healthErr
}

func (p *scriptedProvider) Complete(_ context.Context, request providertypes.Request) (providertypes.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, request)

	if p.completeErr != nil {
		return providertypes.Result{}, p.completeErr
	}
	if strings.HasPrefix(request.Input, "Translate the following text to ") {
		return providertypes.Result{Text: p.translation}, nil
	}

	for text, code := range p.codes {
		if strings.HasSuffix(request.Input, "\n\n"+text) {
			return providertypes.Result{
				Text:     code + "\n",
				Metadata: providertypes.Metadata{Usage: &providertypes.TokenUsage{InputTokens: 30, OutputTokens: 1, TotalTokens: 31}},
			}, nil
		}
	}

	return providertypes.Result{Text: "xx"}, nil
}

func (p *scriptedProvider) setHealthErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthErr = err
}

func (p *scriptedProvider) snapshot() (int, []providertypes.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	requests := make([]providertypes.Request, len(p.requests))
	copy(requests, p.requests)
	return p.healthCalls, requests
}

type scriptedAdapter struct {
	name    string
	inbound []bus.InboundMessage
	failOn  string

	mu         sync.Mutex
	replies    map[string][]string
	handlerErr []error
	done       chan struct{}
}

func (a *scriptedAdapter) Name() string {
	return a.name
}

func (a *scriptedAdapter) Run(ctx context.Context, handler channel.Handler) error {
	for _, inbound := range a.inbound {
		sender := channel.SenderFunc(func(_ context.Context, text string) error {
			if a.failOn != "" && strings.Contains(text, a.failOn) {
				return errors.New("missing access")
			}
			a.mu.Lock()
			defer a.mu.Unlock()
			a.replies[inbound.MessageID] = append(a.replies[inbound.MessageID], text)
			return nil
		})

		if err := handler(ctx, inbound, sender); err != nil {
			a.mu.Lock()
			a.handlerErr = append(a.handlerErr, err)
			a.mu.Unlock()
		}
	}

	close(a.done)

	<-ctx.Done()
	return nil
}

func (a *scriptedAdapter) snapshot() (map[string][]string, []error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	replies := make(map[string][]string, len(a.replies))
	for id, texts := range a.replies {
		replies[id] = append([]string(nil), texts...)
	}

	return replies, append([]error(nil), a.handlerErr...)
}

func newScriptedAdapter(name string, inbound ...bus.InboundMessage) *scriptedAdapter {
	return &scriptedAdapter{
		name:    name,
		inbound: inbound,
		replies: map[string][]string{},
		done:    make(chan struct{}),
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Gateway = config.GatewayConfig{Host: "127.0.0.1", Port: freeTCPPort(t)}
	return cfg
}

func runService(t *testing.T, ctx context.Context, svc *Service) <-chan error {
	t.Helper()

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(ctx)
	}()
	return errCh
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for adapter scripted messages")
	}
}

func waitRunExit(t *testing.T, errCh <-chan error) error {
	t.Helper()

	select {
	case err := <-errCh:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for service run to exit")
		return nil
	}
}

func TestGatewayServiceRunE2ETranslatesAndEchoes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &scriptedProvider{
		codes:       map[string]string{"Hello, how are you?": "en", "Bonjour": "fr"},
		translation: "こんにちは、お元気ですか？",
	}
	cfg := testConfig(t)

	commands := channel.NewCommands(cfg.Commands.Prefix)
	require.NoError(t, commands.Register("ping", func(ctx context.Context, _ bus.InboundMessage, _ string, sender channel.Sender) error {
		return sender.Send(ctx, "pong")
	}))

	adapter := newScriptedAdapter("discord",
		bus.InboundMessage{Channel: "discord", ChatID: "c1", MessageID: "1", Content: "Hello, how are you?"},
		bus.InboundMessage{Channel: "discord", ChatID: "c1", MessageID: "2", Content: "  Bonjour  "},
		bus.InboundMessage{Channel: "discord", ChatID: "c1", MessageID: "3", Content: "Translation result: x", FromSelf: true},
		bus.InboundMessage{Channel: "discord", ChatID: "c1", MessageID: "4", Content: "   "},
		bus.InboundMessage{Channel: "discord", ChatID: "c1", MessageID: "5", Content: "!ping"},
	)

	svc, err := newService(cfg, provider, []channel.Adapter{adapter}, commands, slog.Default())
	require.NoError(t, err)

	errCh := runService(t, ctx, svc)
	waitDone(t, adapter.done)

	metricsURL := fmt.Sprintf("http://%s:%d/metrics", cfg.Gateway.Host, cfg.Gateway.Port)
	require.Eventually(t, func() bool {
		body := httpBody(metricsURL)
		return strings.Contains(body, `transbot_messages_total{channel="discord",outcome="replied"} 3`) &&
			strings.Contains(body, `transbot_translations_total{channel="discord"} 1`)
	}, 3*time.Second, 25*time.Millisecond)

	cancel()
	require.NoError(t, waitRunExit(t, errCh))

	healthCalls, requests := provider.snapshot()
	require.GreaterOrEqual(t, healthCalls, 1)
	// Filtered messages never reach the model.
	require.Len(t, requests, 4)
	require.Equal(t, "gpt-4o", requests[0].Model)
	require.Equal(t, "You are a language detection assistant.", requests[0].Instructions)
	require.Equal(t, "Translate the following text to ja:\n\nHello, how are you?", requests[1].Input)

	replies, handlerErrs := adapter.snapshot()
	require.Empty(t, handlerErrs)
	require.Equal(t, []string{"Translation result: こんにちは、お元気ですか？"}, replies["1"])
	require.Equal(t, []string{"The detected language is fr, displaying as is: Bonjour"}, replies["2"])
	require.Empty(t, replies["3"])
	require.Empty(t, replies["4"])
	require.Equal(t, []string{"The detected language is xx, displaying as is: !ping", "pong"}, replies["5"])
}

func TestGatewayServiceRunE2EModelFailureSendsGenericReply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &scriptedProvider{completeErr: &providertypes.Error{
		Provider:   "openai",
		Operation:  "complete",
		Kind:       providertypes.KindAuth,
		StatusCode: http.StatusUnauthorized,
		Err:        errors.New("Incorrect API key provided: sk-abc"),
	}}
	cfg := testConfig(t)

	adapter := newScriptedAdapter("telegram",
		bus.InboundMessage{Channel: "telegram", ChatID: "100", MessageID: "1", Content: "Hello"},
	)

	svc, err := newService(cfg, provider, []channel.Adapter{adapter}, nil, slog.Default())
	require.NoError(t, err)

	errCh := runService(t, ctx, svc)
	waitDone(t, adapter.done)

	metricsURL := fmt.Sprintf("http://%s:%d/metrics", cfg.Gateway.Host, cfg.Gateway.Port)
	require.Eventually(t, func() bool {
		return strings.Contains(httpBody(metricsURL), `transbot_failures_total{category="auth",stage="detect"} 1`)
	}, 3*time.Second, 25*time.Millisecond)

	cancel()
	require.NoError(t, waitRunExit(t, errCh))

	replies, handlerErrs := adapter.snapshot()
	require.Empty(t, handlerErrs)
	require.Equal(t, []string{relay.GenericErrorReply}, replies["1"])
}

func TestGatewayServiceRunE2EUndeliverableErrorReply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &scriptedProvider{completeErr: errors.New("upstream exploded")}
	cfg := testConfig(t)

	adapter := newScriptedAdapter("discord",
		bus.InboundMessage{Channel: "discord", ChatID: "c1", MessageID: "1", Content: "Hello"},
	)
	adapter.failOn = relay.GenericErrorReply

	svc, err := newService(cfg, provider, []channel.Adapter{adapter}, nil, slog.Default())
	require.NoError(t, err)

	errCh := runService(t, ctx, svc)
	waitDone(t, adapter.done)
	cancel()
	require.NoError(t, waitRunExit(t, errCh))

	replies, handlerErrs := adapter.snapshot()
	require.Empty(t, replies["1"])
	require.Len(t, handlerErrs, 1)
	require.Equal(t, relay.CategoryDelivery, relay.Classify(handlerErrs[0]))
}

func TestGatewayServiceRunFailsOnStartupHealthCheck(t *testing.T) {
	provider := &scriptedProvider{healthErr: &providertypes.Error{Provider: "openai", Operation: "health", Kind: providertypes.KindAuth, StatusCode: http.StatusUnauthorized, Err: errors.New("bad key")}}
	adapter := newScriptedAdapter("discord")

	svc, err := newService(testConfig(t), provider, []channel.Adapter{adapter}, nil, slog.Default())
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, relay.CategoryAuth, relay.Classify(err))

	select {
	case <-adapter.done:
		t.Fatal("adapter should not start when provider health fails")
	default:
	}
}

func TestGatewayServiceReadyzTransitionsOnProviderHealthRecovery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &scriptedProvider{}
	cfg := testConfig(t)
	adapter := newScriptedAdapter("discord")

	svc, err := newService(cfg, provider, []channel.Adapter{adapter}, nil, slog.Default())
	require.NoError(t, err)

	errCh := runService(t, ctx, svc)

	readyURL := fmt.Sprintf("http://127.0.0.1:%d/readyz", cfg.Gateway.Port)
	require.Equal(t, http.StatusOK, waitHTTPStatus(t, readyURL, 2*time.Second))

	provider.setHealthErr(fmt.Errorf("temporary provider outage"))
	err = svc.checkProviderHealth(context.Background())
	require.Error(t, err)
	require.Equal(t, http.StatusServiceUnavailable, waitHTTPStatus(t, readyURL, 2*time.Second))

	provider.setHealthErr(nil)
	err = svc.checkProviderHealth(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, waitHTTPStatus(t, readyURL, 2*time.Second))

	cancel()
	require.NoError(t, waitRunExit(t, errCh))
}

type failingAdapter struct{}

func (failingAdapter) Name() string {
	return "telegram"
}

func (failingAdapter) Run(context.Context, channel.Handler) error {
	return errors.New("unauthorized token")
}

func TestGatewayServiceRunReturnsAdapterFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := newService(testConfig(t), &scriptedProvider{}, []channel.Adapter{failingAdapter{}}, nil, slog.Default())
	require.NoError(t, err)

	errCh := runService(t, ctx, svc)
	err = waitRunExit(t, errCh)
	require.Error(t, err)
	require.Contains(t, err.Error(), "run telegram channel")
}

func httpBody(url string) string {
	response, err := http.Get(url)
	if err != nil {
		return ""
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return ""
	}
	return string(body)
}

func waitHTTPStatus(t *testing.T, url string, timeout time.Duration) int {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		response, err := http.Get(url)
		if err == nil {
			statusCode := response.StatusCode
			require.NoError(t, response.Body.Close())
			return statusCode
		}

		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s: %v", url, err)
		}

		time.Sleep(25 * time.Millisecond)
	}
}

func freeTCPPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	addr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return addr.Port
}
