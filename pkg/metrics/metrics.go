// Package metrics turns relay lifecycle events into Prometheus counters.
package metrics

import (
	"net/http"
	"strings"

	"transbot/pkg/bus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeReplied = "replied"
	OutcomeFailed  = "failed"
)

// Recorder owns a private registry so tests and multiple services never
// collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	messagesTotal     *prometheus.CounterVec
	languagesTotal    *prometheus.CounterVec
	translationsTotal *prometheus.CounterVec
	failuresTotal     *prometheus.CounterVec

	modelRequestsTotal   *prometheus.CounterVec
	modelRequestDuration *prometheus.HistogramVec
	modelTokensTotal     *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		messagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbot_messages_total",
				Help: "Total number of handled chat messages by outcome",
			},
			[]string{"channel", "outcome"},
		),
		languagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbot_detected_languages_total",
				Help: "Total number of detections by returned language code",
			},
			[]string{"language"},
		),
		translationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbot_translations_total",
				Help: "Total number of English messages translated to Japanese",
			},
			[]string{"channel"},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbot_failures_total",
				Help: "Total number of failed messages by error category and stage",
			},
			[]string{"category", "stage"},
		),
		modelRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbot_model_requests_total",
				Help: "Total number of model-service calls by status",
			},
			[]string{"status"},
		),
		modelRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transbot_model_request_duration_seconds",
				Help:    "Duration of model-service calls in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"status"},
		),
		modelTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbot_model_tokens_total",
				Help: "Total number of model tokens reported by the model service",
			},
			[]string{"direction"},
		),
	}
}

// Registry exposes the recorder's registry for scraping and tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the Prometheus exposition format for this recorder.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Record updates counters for one relay event. Other event types are ignored.
func (r *Recorder) Record(event bus.Event) {
	switch event.Type {
	case bus.EventMessageReplied:
		r.messagesTotal.WithLabelValues(event.Channel, OutcomeReplied).Inc()
		r.languagesTotal.WithLabelValues(languageLabel(event.Payload[bus.PayloadDetectedLanguage])).Inc()
		if event.Payload[bus.PayloadTranslated] == "true" {
			r.translationsTotal.WithLabelValues(event.Channel).Inc()
		}
	case bus.EventMessageFailed:
		r.messagesTotal.WithLabelValues(event.Channel, OutcomeFailed).Inc()
		r.failuresTotal.WithLabelValues(event.Payload[bus.PayloadCategory], event.Payload[bus.PayloadStage]).Inc()
	}
}

// Consume records events until the channel is closed. Subscribe before the
// first message is handled so no event is missed.
func (r *Recorder) Consume(events <-chan bus.Event) {
	for event := range events {
		r.Record(event)
	}
}

// languageLabel bounds label cardinality: the model may answer with anything,
// so long or multi-word answers are folded into "other".
func languageLabel(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "unknown"
	}
	if len(code) > 8 || strings.ContainsAny(code, " \t\n") {
		return "other"
	}

	return code
}
