package cmd

import (
	"context"
	"errors"
	"testing"

	"transbot/pkg/config"
	"transbot/pkg/relay"

	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	code string
	err  error
}

func (d stubDetector) Detect(context.Context, string) (string, error) {
	return d.code, d.err
}

type stubTranslator struct{}

func (stubTranslator) Translate(_ context.Context, text string, targetLang string) (string, error) {
	return targetLang + ":" + text, nil
}

func newTestRelay(t *testing.T, detector relay.LanguageDetector) *localRelay {
	t.Helper()

	commands, err := builtinCommands("!")
	require.NoError(t, err)

	handler, err := relay.NewHandler(detector, stubTranslator{}, relay.WithCommands(commands))
	require.NoError(t, err)

	return &localRelay{handler: handler}
}

func TestLocalRelayReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		detector stubDetector
		text     string
		want     []string
	}{
		{
			name:     "english is translated",
			detector: stubDetector{code: "en"},
			text:     "  Hello  ",
			want:     []string{"Translation result: ja:Hello"},
		},
		{
			name:     "other languages are echoed",
			detector: stubDetector{code: "fr"},
			text:     "Bonjour",
			want:     []string{"The detected language is fr, displaying as is: Bonjour"},
		},
		{
			name:     "failures get the generic reply",
			detector: stubDetector{err: errors.New("model down")},
			text:     "Hello",
			want:     []string{relay.GenericErrorReply},
		},
		{
			name:     "commands answer after the language reply",
			detector: stubDetector{code: "en"},
			text:     "!ping",
			want:     []string{"Translation result: ja:!ping", "pong"},
		},
		{
			name:     "blank input gets nothing",
			detector: stubDetector{code: "en"},
			text:     "   ",
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			local := newTestRelay(t, tt.detector)
			replies, err := local.Reply(context.Background(), tt.text)
			require.NoError(t, err)
			require.Len(t, replies, len(tt.want))
			for i := range tt.want {
				require.Equal(t, tt.want[i], replies[i])
			}
		})
	}
}

func TestNewLocalRelayRequiresProviderCredentials(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	_, err := newLocalRelay(context.Background(), cfg, nil)

	var cfgErr *config.Error
	require.True(t, errors.As(err, &cfgErr))
}
