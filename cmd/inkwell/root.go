package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/inkwell"
	"github.com/aretw0/inkwell/pkg/adapters/httpapi"
)

var (
	verbose    bool
	configPath string
	apiURL     string
	backend    string
	draftsPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: "A local-first autosave engine for notes",
	Long: `Inkwell keeps every edit in a local draft and saves it to a notes API
in the background, holding changes while offline and recovering drafts
that never made it to the server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: nearest .inkwell.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Notes API base URL")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Draft backend (memory, fs, sqlite, redis)")
	rootCmd.PersistentFlags().StringVar(&draftsPath, "drafts", "", "Draft location for the selected backend")
}

// loadConfig resolves the configuration file and applies flag overrides.
func loadConfig() (inkwell.Config, error) {
	path := configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return inkwell.Config{}, err
		}
		found, err := inkwell.FindConfig(wd)
		if err != nil && !errors.Is(err, inkwell.ErrNoConfig) {
			return inkwell.Config{}, err
		}
		path = found
	}

	cfg, err := inkwell.LoadConfig(path)
	if err != nil {
		return inkwell.Config{}, err
	}
	if apiURL != "" {
		cfg.API.URL = apiURL
	}
	if backend != "" {
		cfg.Drafts.Backend = backend
	}
	if draftsPath != "" {
		cfg.Drafts.Path = draftsPath
	}
	return cfg, cfg.Validate()
}

// openEngine wires the editor against the configured API and draft backend.
func openEngine(cfg inkwell.Config) (*inkwell.Engine, error) {
	var opts []httpapi.Option
	if cfg.API.Token != "" {
		opts = append(opts, httpapi.WithToken(cfg.API.Token))
	}
	opts = append(opts, httpapi.WithLogger(slog.Default()))

	client, err := httpapi.New(cfg.API.URL, opts...)
	if err != nil {
		return nil, err
	}

	return inkwell.New(client, cfg.Drafts.Path,
		append(cfg.Options(), inkwell.WithLogger(slog.Default()))...)
}
