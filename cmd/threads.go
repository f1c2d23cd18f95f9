package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/mailtriage/internal/config"
	"github.com/teemow/mailtriage/internal/gmail"
	"github.com/teemow/mailtriage/internal/logging"
)

func newThreadsCmd() *cobra.Command {
	var pause bool

	cmd := &cobra.Command{
		Use:   "threads [label]",
		Short: "Print the messages of every thread under a label",
		Long: `Print "Subject (From)" for each message of every thread under the label.
Without an argument the configured source label is used. Threads that cannot
be read are reported and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var override func(*config.Config)
			if len(args) == 1 {
				override = func(cfg *config.Config) { cfg.Labels.Source = args[0] }
			}

			a, err := newApp(ctx, override, true, "")
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)

			if a.cfg.Labels.Source == "" {
				return errors.New("no label given and labels.source is not set")
			}

			var next *bufio.Reader
			if pause {
				next = bufio.NewReader(cmd.InOrStdin())
			}
			return printThreads(ctx, cmd.OutOrStdout(), next, a.mailbox, a.cfg.Labels.Source, a.logger)
		},
	}

	cmd.Flags().BoolVar(&pause, "pause", false, "Wait for Enter after each thread")

	return cmd
}

func printThreads(ctx context.Context, w io.Writer, next *bufio.Reader, mb *gmail.Mailbox, labelName string, logger *slog.Logger) error {
	label, err := mb.Label(ctx, labelName)
	if err != nil {
		return err
	}

	for thread, err := range mb.Threads(ctx, label) {
		if err != nil {
			var (
				malformed *gmail.MalformedThreadError
				cacheErr  *gmail.CacheWriteError
			)
			switch {
			case errors.As(err, &cacheErr):
				logger.Warn("thread not cached", logging.ThreadID(cacheErr.ThreadID), logging.Err(err))
			case errors.As(err, &malformed):
				logger.Warn("skipping malformed thread", logging.ThreadID(malformed.ThreadID), logging.Err(err))
				continue
			default:
				return err
			}
		}

		for _, m := range thread.Messages {
			fmt.Fprintln(w, m)
		}

		if next != nil {
			fmt.Fprint(w, "Next ... ")
			if _, err := next.ReadString('\n'); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}
	}
	return nil
}
