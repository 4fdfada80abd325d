package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/spf13/cobra"

	"github.com/aretw0/inkwell/pkg/adapters/fs"
	lc "github.com/aretw0/inkwell/pkg/adapters/lifecycle"
	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/reconcile"
)

var (
	watchID      string
	watchRecover string
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Autosave a Markdown file edited in another program",
	Long: `Watch mirrors a local Markdown file (with optional frontmatter) into a
note. Every change written by your editor is autosaved; a recovered draft
is resolved with --recover and written back to the file.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]

		var choice reconcile.Choice
		switch watchRecover {
		case "restore":
			choice = reconcile.ChoiceRestore
		case "discard":
			choice = reconcile.ChoiceDiscard
		default:
			fatal("Invalid --recover", fmt.Errorf("%q is neither restore nor discard", watchRecover))
		}

		cfg, err := loadConfig()
		if err != nil {
			fatal("Failed to load config", err)
		}
		eng, err := openEngine(cfg)
		if err != nil {
			fatal("Failed to initialize inkwell", err)
		}
		defer eng.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := &session{ed: eng.Editor, net: eng.Network, out: os.Stdout, id: watchID}
		if err := s.open(ctx); err != nil {
			fatal("Failed to open note", err)
		}
		restored := false
		if _, ok := eng.Editor.Conflict(); ok {
			if err := eng.Editor.Resolve(ctx, choice); err != nil {
				fatal("Failed to resolve draft", err)
			}
			restored = choice == reconcile.ChoiceRestore
		}

		cancelStatus := eng.Editor.Subscribe(func(st core.Status) {
			slog.Info("autosave", "status", st)
		})
		defer cancelStatus()

		changes := make(chan core.Fields, 8)
		var current atomic.Pointer[fs.WatchWorker]

		spec := supervisor.Spec{
			Name: "note-watcher",
			Type: string(worker.TypeGoroutine),
			Factory: func() (worker.Worker, error) {
				w := fs.NewWatchWorker(path, changes, slog.Default())
				current.Store(w)
				return w, nil
			},
			Backoff: supervisor.Backoff{
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     5 * time.Second,
				Multiplier:      2,
				ResetDuration:   time.Minute,
				MaxRestarts:     5,
				MaxDuration:     time.Minute,
			},
			RestartPolicy: supervisor.RestartOnFailure,
		}
		sup := supervisor.New("inkwell-watch", supervisor.StrategyOneForOne, spec)
		if err := sup.Start(ctx); err != nil {
			fatal("Failed to start watcher", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), quitTimeout)
			defer stopCancel()
			_ = sup.Stop(stopCtx)
		}()

		if err := syncFile(ctx, path, &current, eng.Editor, restored); err != nil {
			fatal("Failed to sync file", err)
		}

		signals := lc.SignalEvents(ctx)
		slog.Info("watching", "file", path, "note", watchID)
		for {
			select {
			case _, ok := <-signals:
				if !ok {
					return
				}
				s.leave(ctx)
				return
			case f := <-changes:
				eng.Editor.Apply(f)
			}
		}
	},
}

// syncFile reconciles the file with the editor at startup. A restored draft
// overwrites the file; otherwise an existing file wins and is applied as an
// edit, and a missing one is seeded from the note.
func syncFile(ctx context.Context, path string, current *atomic.Pointer[fs.WatchWorker], ed fieldsEditor, restored bool) error {
	if !restored {
		data, err := os.ReadFile(path)
		if err == nil {
			f, err := fs.DecodeFields(data)
			if err != nil {
				return err
			}
			ed.Apply(f)
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	// The supervisor starts workers asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for current.Load() == nil {
		if time.Now().After(deadline) || ctx.Err() != nil {
			return errors.New("watcher did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return current.Load().Write(ed.Fields())
}

type fieldsEditor interface {
	Fields() core.Fields
	Apply(core.Fields)
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchID, "id", "", "Note to mirror (default: create a new note)")
	watchCmd.Flags().StringVar(&watchRecover, "recover", "restore", "What to do with a recovered draft: restore or discard")
}
