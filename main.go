package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orian/promptlib/config"
	"github.com/orian/promptlib/library"
	"github.com/orian/promptlib/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

var (
	configPath string
	debug      bool

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "promptlib",
	Short: "Browse, filter and curate a library of text prompts",
	Long: `promptlib keeps a collection of prompts grouped by persona, theme and
post type. It can serve the library over a JSON HTTP API or be driven
directly from the command line. The browsing state (filters, page, theme)
and the favorites are persisted between runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		level := cfg.Level()
		if debug {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true, TimeFormat: time.DateTime})
		return nil
	},
}

// serveCmd runs the HTTP API and the optional import watcher.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the library over HTTP",
	Long: `Starts the JSON HTTP API and serves static files from static_dir.

When watch_import is set, the file is re-imported every time it changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStorage opens the backend selected in cfg.
func openStorage(ctx context.Context, cfg *config.Config) (models.Storage, error) {
	switch cfg.Backend {
	case config.BackendDuckDB:
		return NewDuckDBStorage(cfg.DuckDBPath)
	case config.BackendSQLite:
		return NewSQLiteStorage(cfg.SQLitePath)
	case config.BackendClickHouse:
		return NewClickHouseStorage(ctx, cfg.ClickHouse)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// openLibrary opens storage and builds a controller on top of it. The
// caller closes the returned storage.
func openLibrary(ctx context.Context) (*library.Controller, models.Storage, error) {
	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Debug().Str("backend", cfg.Backend).Msg("Storage initialized")

	controller := library.NewController(ctx, storage, storage, library.DefaultSeeds())
	return controller, storage, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, storage, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer storage.Close()

	server := NewServer(controller, storage)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Routes(cfg.StaticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend).Msg("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("Shutting down server")
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.WatchImport != "" {
		watcher := NewImportWatcher(cfg.WatchImport, func(ctx context.Context, path string) {
			n, err := server.ImportFile(ctx, path, models.EventWatchImport)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Watched import failed, library unchanged")
				return
			}
			log.Info().Int("count", n).Str("path", path).Msg("Re-imported watched file")
		})
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	return g.Wait()
}
