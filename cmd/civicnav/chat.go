package main

import (
	"bufio"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/civicnav/config"
	"github.com/mohammad-safakhou/civicnav/internal/agent/core"
	srv "github.com/mohammad-safakhou/civicnav/internal/server"
)

func chatCMD(cfgPath *string) *cobra.Command {
	var sessionID string
	var quiet bool
	var chat = &cobra.Command{
		Use:   "chat",
		Short: "Talk to the navigator from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := srv.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s. Type a message, or /quit to leave.\n", sessionID)
			in := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !in.Scan() {
					return in.Err()
				}
				msg := strings.TrimSpace(in.Text())
				switch msg {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				}
				turn := app.Orchestrator.RunTurn(ctx, core.TurnRequest{SessionID: sessionID, Message: msg})
				for ev := range turn.Events() {
					if !quiet {
						printEvent(cmd.ErrOrStderr(), ev)
					}
				}
				printResult(out, turn.Wait())
				if ctx.Err() != nil {
					return nil
				}
			}
		},
	}
	chat.Flags().StringVar(&sessionID, "session", "", "resume an existing session id")
	chat.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide stage progress")
	return chat
}

func printEvent(w io.Writer, ev core.ProgressEvent) {
	switch ev.Type {
	case core.EventStageStarted:
		fmt.Fprintf(w, "  ... %s\n", ev.Message)
	case core.EventStageCompleted:
		fmt.Fprintf(w, "  ok  %s (%s)\n", ev.Stage, ev.Duration.Round(time.Millisecond))
	case core.EventError:
		fmt.Fprintf(w, "  !!  %s: %s\n", ev.ErrorKind, ev.Message)
	}
}

func printResult(w io.Writer, res core.TurnResult) {
	fmt.Fprintf(w, "\n%s\n", res.ReplyText)
	if len(res.NewResources) > 0 {
		fmt.Fprintln(w, "\nResources:")
		for i, r := range res.NewResources {
			line := fmt.Sprintf("  %d. %s", i+1, r.Name)
			if r.Contact != "" {
				line += " | " + r.Contact
			}
			if r.URL != "" {
				line += " | " + r.URL
			}
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintln(w)
}
