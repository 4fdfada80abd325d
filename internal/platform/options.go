package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/inkwell/internal/clock"
	"github.com/aretw0/inkwell/pkg/autosave"
	"github.com/aretw0/inkwell/pkg/core"
)

// options holds the internal configuration for an engine.
type options struct {
	logger  *slog.Logger
	clock   clock.Clock
	backend core.DraftBackend
	network core.Connectivity
	adapter string
	config  map[string]any

	debounce       time.Duration
	retryDelays    []time.Duration
	reconnectDelay time.Duration
	requestTimeout time.Duration
}

// Option defines a functional option for configuring the engine.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter: "memory",
		config:  make(map[string]any),
	}
}

func (o *options) schedulerConfig() autosave.Config {
	return autosave.Config{
		Debounce:       o.debounce,
		RetryDelays:    o.retryDelays,
		ReconnectDelay: o.reconnectDelay,
		RequestTimeout: o.requestTimeout,
		Clock:          o.clock,
		Logger:         o.logger,
	}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock replaces the wall clock, e.g. with clock.NewFake in tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithDebounce sets the quiet period after the last edit before saving.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithRetryDelays sets the backoff ladder. Its length is the retry budget.
func WithRetryDelays(delays ...time.Duration) Option {
	return func(o *options) {
		o.retryDelays = delays
	}
}

// WithReconnectDelay sets the pause between regaining connectivity and the
// save attempt it triggers.
func WithReconnectDelay(d time.Duration) Option {
	return func(o *options) {
		o.reconnectDelay = d
	}
}

// WithRequestTimeout bounds each remote call.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		o.requestTimeout = d
	}
}

// WithBackend injects a draft backend. If provided, the adapter selected by
// WithAdapter is skipped.
func WithBackend(b core.DraftBackend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithAdapter selects the draft backend by name: "memory" (default), "fs",
// "sqlite" or "redis".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithConnectivity sets the reachability source. Defaults to a
// network.Monitor that starts online.
func WithConnectivity(c core.Connectivity) Option {
	return func(o *options) {
		o.network = c
	}
}

// WithQuota bounds the memory backend's stored text in bytes.
func WithQuota(bytes int) Option {
	return func(o *options) {
		o.config["quota"] = bytes
	}
}

// WithDraftTTL expires redis drafts not rewritten within d.
func WithDraftTTL(d time.Duration) Option {
	return func(o *options) {
		o.config["ttl"] = d
	}
}

// WithMustExist requires the fs draft directory to exist already.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}
