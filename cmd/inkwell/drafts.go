package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/inkwell"
	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/drafts"
)

var draftsJSON bool

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Inspect locally stored drafts",
	Long:  `Drafts lists, prints and removes the local drafts kept for unsaved notes.`,
}

var draftsListCmd = &cobra.Command{
	Use:   "list [pattern]",
	Short: "List draft keys, optionally filtered by a glob pattern",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pattern := ""
		if len(args) == 1 {
			pattern = args[0]
		}

		withStore(func(ctx context.Context, store *drafts.Store) {
			keys := store.List(ctx, pattern)
			if draftsJSON {
				type entry struct {
					Key     string    `json:"key"`
					Title   string    `json:"title"`
					SavedAt time.Time `json:"saved_at"`
				}
				entries := make([]entry, 0, len(keys))
				for _, k := range keys {
					d, _ := store.Read(ctx, k)
					entries = append(entries, entry{Key: k, Title: d.Title, SavedAt: d.SavedAt})
				}
				encodeJSON(entries)
				return
			}

			for _, k := range keys {
				d, ok := store.Read(ctx, k)
				if !ok {
					continue
				}
				fmt.Printf("%s\t%s\t%s\n", k, core.FormatTimestamp(d.SavedAt), d.Title)
			}
		})
	},
}

var draftsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print a draft",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store *drafts.Store) {
			d, ok := store.Read(ctx, args[0])
			if !ok {
				fmt.Fprintf(os.Stderr, "No draft for %s\n", args[0])
				os.Exit(1)
			}
			if draftsJSON {
				encodeJSON(d)
				return
			}
			fmt.Printf("# %s\n", d.Title)
			fmt.Printf("saved: %s\n\n", core.FormatTimestamp(d.SavedAt))
			fmt.Print(d.Body)
		})
	},
}

var draftsRmCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Delete a draft",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store *drafts.Store) {
			store.Remove(ctx, args[0])
			fmt.Printf("Draft removed: %s\n", args[0])
		})
	},
}

// withStore opens the configured draft backend for the duration of fn.
func withStore(fn func(ctx context.Context, store *drafts.Store)) {
	cfg, err := loadConfig()
	if err != nil {
		fatal("Failed to load config", err)
	}

	backend, err := inkwell.OpenBackend(cfg.Drafts.Path, append(cfg.Options(), inkwell.WithLogger(slog.Default()))...)
	if err != nil {
		fatal("Failed to open draft backend", err)
	}
	defer inkwell.CloseBackend(backend)

	fn(context.Background(), drafts.New(backend, slog.Default()))
}

func encodeJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fatal("Error encoding JSON", err)
	}
}

func init() {
	rootCmd.AddCommand(draftsCmd)
	draftsCmd.AddCommand(draftsListCmd, draftsShowCmd, draftsRmCmd)
	draftsCmd.PersistentFlags().BoolVar(&draftsJSON, "json", false, "Output in JSON format")
}
