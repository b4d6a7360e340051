package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/banterlabs/banter/internal/chat"
	"github.com/banterlabs/banter/internal/events"
	"github.com/banterlabs/banter/internal/persona"
	"github.com/banterlabs/banter/internal/scheduler"
	"github.com/banterlabs/banter/pkg/types"
)

func chatCmd() *cobra.Command {
	var (
		groupName string
		withIDs   []string
		topic     string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "chat [persona-id]",
		Short: "Chat in the terminal, one-to-one or in a group",
		Long: `Chat in the terminal.

With a persona id, opens (or resumes) a one-to-one session. With --group and
--with, creates a group session that chats on its own; anything you type is
picked up by the participants. Use --session to resume any saved session.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			mgr, cleanup, err := openManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			gen, err := newGenerator()
			if err != nil {
				return err
			}

			sess, err := resolveSession(ctx, mgr, args, sessionID, groupName, withIDs, topic)
			if err != nil {
				return err
			}

			sess, history, err := mgr.Open(ctx, sess.ID)
			if err != nil {
				return err
			}
			defer mgr.Close(sess.ID)

			printHistory(sess, history)

			bus := events.NewBus()
			defer bus.Close()

			sched := scheduler.New(sess, mgr, gen, bus, scheduler.Options{
				Config: scheduler.Config{
					PrimingDelay: cfg.PrimingDelay,
					GroupGapMin:  cfg.GroupGapMin,
					GroupGapMax:  cfg.GroupGapMax,
					TypingMin:    cfg.TypingMin,
					TypingMax:    cfg.TypingMax,
					ReplyMin:     cfg.ReplyMin,
					ReplyMax:     cfg.ReplyMax,
					GroupWindow:  cfg.GroupWindow,
					DirectWindow: cfg.DirectWindow,
				},
			})
			sched.Start()
			defer sched.Stop()

			ch := bus.SubscribeSession("repl", sess.ID)
			defer bus.Unsubscribe(ch)
			go printEvents(ch)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Println("\nLeaving chat...")
				cancel()
				sched.Stop()
				mgr.Close(sess.ID)
				mgr.Flush()
				os.Exit(0)
			}()

			prompt := color.New(color.FgGreen, color.Bold).SprintFunc()
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print(prompt("You: "))
				if !scanner.Scan() {
					break
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				if text == "exit" || text == "quit" {
					break
				}
				if _, err := sched.UserMessage(ctx, text); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&groupName, "group", "", "create a group session with this name")
	cmd.Flags().StringSliceVar(&withIDs, "with", nil, "persona ids for the group (comma separated)")
	cmd.Flags().StringVar(&topic, "topic", "", "conversation topic for the group")
	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session by id")
	return cmd
}

// resolveSession maps the chat command's flags onto an existing or new
// session.
func resolveSession(ctx context.Context, mgr *chat.Manager, args []string, sessionID, groupName string, withIDs []string, topic string) (*types.Session, error) {
	switch {
	case sessionID != "":
		return mgr.Session(sessionID)

	case groupName != "":
		personas := make([]types.Persona, 0, len(withIDs))
		for _, id := range withIDs {
			p, ok := persona.ByID(id)
			if !ok {
				return nil, fmt.Errorf("unknown persona %q (see: banter personas)", id)
			}
			personas = append(personas, p)
		}
		if len(personas) == 0 {
			personas = persona.Random(3)
		}
		return mgr.CreateGroup(ctx, groupName, personas, topic)

	case len(args) == 1:
		p, ok := persona.ByID(args[0])
		if !ok {
			return nil, fmt.Errorf("unknown persona %q (see: banter personas)", args[0])
		}
		sess, _, err := mgr.CreateOneToOne(ctx, p)
		return sess, err

	default:
		return nil, fmt.Errorf("pass a persona id, or --group with --with, or --session")
	}
}

func printHistory(sess *types.Session, history []*types.Message) {
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Printf("%s %s\n", sess.Avatar, bold(sess.Name))
	if sess.IsGroup {
		names := make([]string, 0, len(sess.Participants))
		for _, p := range sess.Participants {
			names = append(names, p.Name)
		}
		fmt.Printf("%s\n", dim("with "+strings.Join(names, ", ")+" · topic: "+sess.Topic))
	}
	fmt.Println(dim("Type a message and press Enter. Type 'exit' to leave."))
	fmt.Println()

	for _, msg := range history {
		printMessage(msg)
	}
}

func printMessage(msg *types.Message) {
	fmt.Println(renderMessage(msg))
}

func renderMessage(msg *types.Message) string {
	stamp := types.FormatClock(msg.Timestamp)
	dim := color.New(color.Faint).SprintFunc()

	if msg.IsUser {
		return fmt.Sprintf("%s %s  %s", color.GreenString("You:"), msg.Text, dim(stamp))
	}
	name := color.New(color.FgCyan, color.Bold).Sprintf("%s %s:", msg.SenderAvatar, msg.SenderName)
	return fmt.Sprintf("%s %s  %s", name, msg.Text, dim(stamp))
}

// printEvents renders the session's bus events as they arrive. The
// subscription is already scoped to one session.
func printEvents(ch chan *events.Event) {
	dim := color.New(color.Faint).SprintFunc()

	for ev := range ch {
		switch ev.Type {
		case events.EventMessageAppended:
			if ev.Message != nil && !ev.Message.IsUser {
				fmt.Println()
				printMessage(ev.Message)
			}
		case events.EventTypingStarted:
			if ev.Typing != nil {
				fmt.Printf("\n%s\n", dim(ev.Typing.Name+" is typing..."))
			}
		}
	}
}
