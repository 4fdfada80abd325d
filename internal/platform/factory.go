package platform

import (
	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/drafts"
	"github.com/aretw0/inkwell/pkg/editor"
	"github.com/aretw0/inkwell/pkg/network"
)

// Engine bundles an editor controller with the parts a host may need to
// drive directly.
type Engine struct {
	Editor  *editor.Controller
	Drafts  *drafts.Store
	Backend core.DraftBackend
	// Network is the default monitor, nil when WithConnectivity was used.
	Network *network.Monitor
}

// New wires an editor over remote.
//
//	eng, err := platform.New(client, "./drafts", platform.WithAdapter("fs"))
//
// The uri argument is passed to OpenBackend.
func New(remote core.RemoteStore, uri string, opts ...Option) (*Engine, error) {
	// 1. Open the draft backend
	backend, err := OpenBackend(uri, opts...)
	if err != nil {
		return nil, err
	}

	// We also need to parse options here to get the logger for wiring
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	eng := &Engine{
		Backend: backend,
		Drafts:  drafts.New(backend, o.logger),
	}

	net := o.network
	if net == nil {
		eng.Network = network.NewMonitor(true)
		net = eng.Network
	}

	eng.Editor = editor.New(remote, eng.Drafts, net, o.schedulerConfig())
	return eng, nil
}

// Close stops the editor and releases the backend.
func (e *Engine) Close() error {
	e.Editor.Close()
	return CloseBackend(e.Backend)
}
