// Package lifecycle bridges host platform notifications into lifecycle
// sources the engine can consume.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/inkwell/pkg/flush"
)

// Source is a lifecycle.Source that emits flush events.
type Source struct {
	events <-chan flush.Event
	out    chan lifecycle.Event
}

// NewSource creates a Source fed by events.
func NewSource(events <-chan flush.Event) *Source {
	return &Source{
		events: events,
		out:    make(chan lifecycle.Event),
	}
}

func (s *Source) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *Source) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}

var _ lifecycle.Source = (*Source)(nil)
var _ flush.Source = (*Source)(nil)

// SignalEvents maps process termination signals to flush.EventUnload, the
// closest equivalent of a page being discarded. The channel closes when ctx
// is done.
func SignalEvents(ctx context.Context) <-chan flush.Event {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	out := make(chan flush.Event, 1)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer signal.Stop(sigs)
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-sigs:
				select {
				case out <- flush.EventUnload:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return out
}
