package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/banterlabs/banter/internal/events"
	"github.com/banterlabs/banter/internal/persona"
	"github.com/banterlabs/banter/internal/scheduler"
	"github.com/banterlabs/banter/internal/server"
	"github.com/banterlabs/banter/internal/store"
	"github.com/banterlabs/banter/pkg/types"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat gateway HTTP server",
		Long: `Run the chat gateway HTTP server.

Exposes the persona catalog, session CRUD, and message sending over a JSON
API, plus a websocket event stream at /ws. Group sessions keep generating
messages while they are open.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mgr, cleanup, err := openManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			gen, err := newGenerator()
			if err != nil {
				return err
			}

			bus := events.NewBus()
			defer bus.Close()

			srv := server.New(cfg, mgr, gen, bus, nil, scheduler.Options{})

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case sig := <-sigCh:
				fmt.Printf("\nReceived %v, shutting down...\n", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}
}

func personasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the persona catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			bold := color.New(color.Bold).SprintFunc()
			dim := color.New(color.Faint).SprintFunc()

			for _, p := range persona.Catalog {
				fmt.Printf("%s %s %s\n", p.Avatar, bold(p.Name), dim("("+p.ID+")"))
				fmt.Printf("   %s\n", p.Personality)
			}
			return nil
		},
	}
}

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved chat sessions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cleanup, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			sessions := mgr.Sessions()
			if len(sessions) == 0 {
				fmt.Println("No sessions yet. Start one with: banter chat <persona-id>")
				return nil
			}

			bold := color.New(color.Bold).SprintFunc()
			dim := color.New(color.Faint).SprintFunc()

			for _, sess := range sessions {
				kind := "1:1"
				if sess.IsGroup {
					kind = fmt.Sprintf("group of %d", len(sess.Participants))
				}
				fmt.Printf("%s %s %s %s\n", sess.Avatar, bold(sess.Name), dim("["+kind+"]"), dim(sess.ID))
				if sess.LastMessage != nil {
					stamp := sess.LastMessage.Timestamp
					fmt.Printf("   %s %s\n", types.PreviewText(sess.LastMessage.Text), dim(types.FormatDay(stamp)+" "+types.FormatClock(stamp)))
				}
				if sess.UnreadCount > 0 {
					fmt.Printf("   %s\n", color.GreenString("%d unread", sess.UnreadCount))
				}
			}
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all sessions and messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to wipe %s without --yes", cfg.DBPath)
			}

			st, err := store.OpenSQLite(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer st.Close()

			if err := st.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("resetting database: %w", err)
			}
			fmt.Println("All sessions and messages deleted.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the wipe")
	return cmd
}
