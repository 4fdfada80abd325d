package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/inkwell/pkg/adapters/fs"
	"github.com/aretw0/inkwell/pkg/adapters/redis"
	"github.com/aretw0/inkwell/pkg/adapters/sqlite"
	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/drafts"
)

// OpenBackend opens the draft backend selected by the options.
// The uri argument is adapter-specific: a directory for "fs", a database
// file for "sqlite", a redis:// URL for "redis"; "memory" ignores it.
//
// Backends holding connections implement io.Closer; see CloseBackend.
func OpenBackend(uri string, opts ...Option) (core.DraftBackend, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	// 1. Check for injected backend
	if o.backend != nil {
		return o.backend, nil
	}

	// 2. Initialize based on Adapter
	switch o.adapter {
	case "memory", "":
		quota, _ := o.config["quota"].(int)
		return drafts.NewMemoryBackend(quota), nil
	case "fs":
		return openFS(uri, o)
	case "sqlite":
		if uri == "" {
			return nil, fmt.Errorf("sqlite adapter needs a database path")
		}
		b, err := sqlite.Open(uri)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "redis":
		if uri == "" {
			return nil, fmt.Errorf("redis adapter needs a redis:// url")
		}
		var ropts []redis.Option
		if ttl, ok := o.config["ttl"].(time.Duration); ok && ttl > 0 {
			ropts = append(ropts, redis.WithTTL(ttl))
		}
		b, err := redis.New(uri, ropts...)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

func openFS(dir string, o *options) (core.DraftBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("fs adapter needs a directory")
	}
	mustExist, _ := o.config["must_exist"].(bool)

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := fs.NewDraftBackend(fs.Config{Dir: dir, MustExist: mustExist, Logger: logger})
	if err := b.Initialize(context.Background()); err != nil {
		return nil, err
	}
	return b, nil
}

// CloseBackend releases backend resources when the backend holds any.
func CloseBackend(b core.DraftBackend) error {
	if c, ok := b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
