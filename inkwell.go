package inkwell

import (
	"log/slog"
	"time"

	"github.com/aretw0/inkwell/internal/clock"
	"github.com/aretw0/inkwell/internal/platform"
	"github.com/aretw0/inkwell/pkg/core"
)

// --- Types ---

// Engine is a public alias for the wired editor and its draft storage.
type Engine = platform.Engine

// Config is a public alias for the on-disk CLI configuration.
type Config = platform.Config

// Clock is a public alias for the time source driving autosave timers.
type Clock = clock.Clock

// --- Configuration ---

// Option defines a functional option for configuring the engine.
type Option = platform.Option

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithClock replaces the wall clock driving debounce and retry timers.
func WithClock(c Clock) Option {
	return platform.WithClock(c)
}

// WithDebounce sets the quiet period after the last edit before saving.
func WithDebounce(d time.Duration) Option {
	return platform.WithDebounce(d)
}

// WithRetryDelays sets the retry backoff ladder.
func WithRetryDelays(delays ...time.Duration) Option {
	return platform.WithRetryDelays(delays...)
}

// WithReconnectDelay sets the pause between reconnecting and saving.
func WithReconnectDelay(d time.Duration) Option {
	return platform.WithReconnectDelay(d)
}

// WithRequestTimeout bounds each remote call.
func WithRequestTimeout(d time.Duration) Option {
	return platform.WithRequestTimeout(d)
}

// WithBackend allows injecting a custom draft backend.
func WithBackend(b core.DraftBackend) Option {
	return platform.WithBackend(b)
}

// WithAdapter selects the draft backend by name.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithConnectivity sets the reachability source.
func WithConnectivity(c core.Connectivity) Option {
	return platform.WithConnectivity(c)
}

// WithQuota bounds the memory backend in bytes.
func WithQuota(bytes int) Option {
	return platform.WithQuota(bytes)
}

// WithDraftTTL expires redis drafts that are not rewritten in time.
func WithDraftTTL(d time.Duration) Option {
	return platform.WithDraftTTL(d)
}

// WithMustExist ensures the fs draft directory already exists.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// --- Factory ---

// New wires an editor controller over remote with drafts stored at uri.
func New(remote core.RemoteStore, uri string, opts ...Option) (*Engine, error) {
	return platform.New(remote, uri, opts...)
}

// OpenBackend opens a draft backend without an editor, e.g. for inspection.
func OpenBackend(uri string, opts ...Option) (core.DraftBackend, error) {
	return platform.OpenBackend(uri, opts...)
}

// CloseBackend releases backend resources when the backend holds any.
func CloseBackend(b core.DraftBackend) error {
	return platform.CloseBackend(b)
}

// --- Config ---

// LoadConfig reads a configuration file and INKWELL_* overrides.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// ErrNoConfig is returned by FindConfig when no configuration file exists.
var ErrNoConfig = platform.ErrNoConfig

// FindConfig looks upwards from startDir for a configuration file.
func FindConfig(startDir string) (string, error) {
	return platform.FindConfig(startDir)
}
