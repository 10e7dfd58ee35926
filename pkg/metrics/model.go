package metrics

import (
	"context"
	"time"

	providertypes "transbot/pkg/provider/types"
)

// Completer matches language.Completer.
type Completer interface {
	Complete(ctx context.Context, request providertypes.Request) (providertypes.Result, error)
}

type instrumentedCompleter struct {
	next     Completer
	recorder *Recorder
}

// InstrumentCompleter wraps next so every model call is counted, timed and
// its token usage accumulated.
func (r *Recorder) InstrumentCompleter(next Completer) Completer {
	return &instrumentedCompleter{next: next, recorder: r}
}

func (c *instrumentedCompleter) Complete(ctx context.Context, request providertypes.Request) (providertypes.Result, error) {
	startedAt := time.Now()
	result, err := c.next.Complete(ctx, request)

	status := "success"
	if err != nil {
		status = "error"
	}
	c.recorder.modelRequestsTotal.WithLabelValues(status).Inc()
	c.recorder.modelRequestDuration.WithLabelValues(status).Observe(time.Since(startedAt).Seconds())

	if usage := result.Metadata.Usage; err == nil && usage != nil {
		c.recorder.modelTokensTotal.WithLabelValues("input").Add(float64(usage.InputTokens))
		c.recorder.modelTokensTotal.WithLabelValues("output").Add(float64(usage.OutputTokens))
	}

	return result, err
}
