package autosave

import (
	"github.com/aretw0/inkwell/internal/clock"
	"github.com/aretw0/inkwell/pkg/core"
)

// phase is the scheduler's state. Exactly one of the concrete types below is
// current at any time; a save can only be in flight in savingPhase, so a
// second concurrent request has nowhere to live.
type phase interface {
	status() core.Status
	// stop cancels any timer owned by the phase.
	stop()
}

// idlePhase waits for edits. outcome records how the last cycle ended.
type idlePhase struct {
	outcome core.Status
}

func (p *idlePhase) status() core.Status { return p.outcome }
func (p *idlePhase) stop()               {}

// debouncingPhase waits for the quiet period after the last edit.
type debouncingPhase struct {
	timer clock.Timer
	shown core.Status
}

func (p *debouncingPhase) status() core.Status { return p.shown }
func (p *debouncingPhase) stop()               { p.timer.Stop() }

// savingPhase owns the single in-flight request.
type savingPhase struct {
	sent   core.Fields
	create bool
	// followUp is set when edits arrive while the request is pending.
	followUp bool
}

func (p *savingPhase) status() core.Status { return core.StatusSaving }
func (p *savingPhase) stop()               {}

// retryingPhase waits for the next rung of the backoff ladder.
type retryingPhase struct {
	attempt int
	timer   clock.Timer
}

func (p *retryingPhase) status() core.Status { return core.StatusRetrying }
func (p *retryingPhase) stop()               { p.timer.Stop() }

// offlinePhase is suspended until reachability returns. timer is set once a
// reconnect attempt has been scheduled.
type offlinePhase struct {
	timer clock.Timer
}

func (p *offlinePhase) status() core.Status { return core.StatusOffline }
func (p *offlinePhase) stop() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
