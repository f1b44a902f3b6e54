// Package generator implements the question and suggestion gateways on top
// of an llm.Completer: render the prompt, call the model, extract and
// normalize the JSON it returns.
package generator

import (
	"log/slog"
	"time"

	"github.com/c360studio/rolefit/metrics"
)

// Defaults match the settings the assessment flow was tuned with.
const (
	DefaultTemperature    = 0.7
	DefaultMaxSuggestions = 5
	DefaultTimeout        = 60 * time.Second
)

type options struct {
	temperature    float64
	maxTokens      int
	timeout        time.Duration
	maxSuggestions int
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		temperature:    DefaultTemperature,
		timeout:        DefaultTimeout,
		maxSuggestions: DefaultMaxSuggestions,
		logger:         slog.Default(),
	}
}

// Option configures a generator.
type Option func(*options)

// WithTemperature sets the sampling temperature sent with each call.
func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = t }
}

// WithMaxTokens caps completion length. 0 leaves it to the endpoint.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithTimeout bounds a single generation call. 0 disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMaxSuggestions sets how many suggestions are requested and kept.
func WithMaxSuggestions(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSuggestions = n
		}
	}
}

// WithMetrics records call outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
