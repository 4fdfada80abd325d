package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/lifecycle"
	"github.com/spf13/cobra"

	lc "github.com/aretw0/inkwell/pkg/adapters/lifecycle"
	"github.com/aretw0/inkwell/pkg/core"
)

var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit a note interactively",
	Long: `Edit opens a line-oriented editor on an existing note, or on a new one
when no id is given. Changes are autosaved in the background; type :help
for the available commands.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
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

		s := &session{ed: eng.Editor, net: eng.Network, out: os.Stdout}
		if len(args) == 1 {
			s.id = args[0]
		}

		cancelStatus := eng.Editor.Subscribe(func(st core.Status) {
			if label := st.Label(); label != "" {
				fmt.Fprintf(os.Stderr, "[%s]\n", label)
			}
		})
		defer cancelStatus()

		_ = s.open(ctx)

		lines := make(chan string)
		lifecycle.Go(ctx, func(ctx context.Context) error {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				select {
				case lines <- scanner.Text():
				case <-ctx.Done():
					return nil
				}
			}
			return scanner.Err()
		})
		signals := lc.SignalEvents(ctx)

		for {
			select {
			case _, ok := <-signals:
				if !ok {
					return
				}
				// A termination signal flushes like a page unload, then exits.
				s.leave(ctx)
				return
			case line, ok := <-lines:
				if !ok {
					s.leave(ctx)
					return
				}
				err := s.exec(ctx, line)
				if errors.Is(err, errQuit) {
					return
				}
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
}
