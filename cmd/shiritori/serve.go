package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Wundero/shiritori/internal/api"
	"github.com/Wundero/shiritori/internal/config"
	"github.com/Wundero/shiritori/internal/dictionary"
	"github.com/Wundero/shiritori/internal/eventbus"
	"github.com/Wundero/shiritori/internal/gateway"
	"github.com/Wundero/shiritori/internal/rules"
	"github.com/Wundero/shiritori/internal/store"
	"github.com/Wundero/shiritori/internal/turndriver"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the shiritori server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	level := slog.LevelInfo
	if cfg.Verbose || cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	dict := dictionary.New()
	if err := loadStartupDictionary(ctx, dict, cfg); err != nil {
		return fmt.Errorf("load dictionary: %w", err)
	}

	engine := rules.New(st, dict)
	bus := eventbus.New()
	sup := turndriver.NewSupervisor(engine, st, bus, log)
	defer sup.Shutdown()

	if err := sup.Recover(ctx); err != nil {
		log.Error("recover in-flight games", "error", err)
	}

	graceWindow := cfg.GraceWindow
	if cfg.Debug {
		graceWindow = gateway.DebugGraceWindow
	}
	gw := gateway.New(st, engine, bus, graceWindow, log)
	defer gw.Shutdown()

	a := api.New(engine, st, bus, gw, sup, log)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errs:
		return err
	case <-sigCtx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func loadStartupDictionary(ctx context.Context, dict *dictionary.Dictionary, cfg *config.Config) error {
	if cfg.DictionaryPath != "" {
		f, err := os.Open(cfg.DictionaryPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = dict.Load(ctx, cfg.Locale, f)
		return err
	}

	f, err := dictionary.DefaultWordList(cfg.Locale)
	if err != nil {
		return fmt.Errorf("no bundled word list for locale %q and no --dictionary given: %w", cfg.Locale, err)
	}
	defer f.Close()
	_, err = dict.Load(ctx, cfg.Locale, f)
	return err
}
