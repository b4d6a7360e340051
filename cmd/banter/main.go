// Package main is the entry point for the Banter CLI
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banterlabs/banter/internal/chat"
	"github.com/banterlabs/banter/internal/config"
	"github.com/banterlabs/banter/internal/generate"
	"github.com/banterlabs/banter/internal/store"
)

var cfg *config.Config

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	rootCmd := &cobra.Command{
		Use:   "banter",
		Short: "Chat with scripted AI personas, one-to-one or in groups",
		Long: `Banter runs simulated chat sessions with a cast of AI personas. Group
sessions keep talking on their own schedule; one-to-one sessions reply when
you do. Conversations persist locally in SQLite.`,
		Version: "0.1.0",
	}

	rootCmd.AddCommand(
		serveCmd(),
		chatCmd(),
		personasCmd(),
		sessionsCmd(),
		resetCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openManager opens the SQLite store and loads sessions into a manager.
// The returned cleanup flushes pending writes and closes the store.
func openManager(ctx context.Context) (*chat.Manager, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	st, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	mgr := chat.NewManager(st, slog.Default())
	if err := mgr.Load(ctx); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("loading sessions: %w", err)
	}

	cleanup := func() {
		mgr.Flush()
		st.Close()
	}
	return mgr, cleanup, nil
}

// newGenerator picks the text generator from config. Without an API key the
// schedulers fall back to canned phrases, which still exercises the whole
// loop.
func newGenerator() (generate.Generator, error) {
	if cfg.GeminiAPIKey == "" {
		slog.Warn("no Gemini API key set, personas will use fallback phrases")
		return generate.NewScriptedGenerator(), nil
	}
	return generate.NewGeminiClient(generate.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	})
}
