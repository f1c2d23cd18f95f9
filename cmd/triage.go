package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/mailtriage/internal/config"
	"github.com/teemow/mailtriage/internal/git"
	"github.com/teemow/mailtriage/internal/logging"
	"github.com/teemow/mailtriage/internal/triage"
)

func newTriageCmd() *cobra.Command {
	var (
		sourceLabel string
		doneLabel   string
		gitDir      string
		assumeYes   bool
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Move threads whose patch has landed to the done label",
		Long: `Walk every thread under the source label. For each one the subject is
stripped of leading [...] tags and the git log is searched for a commit with
that title. On a match the thread's messages are shown and, once confirmed,
the thread is moved from the source label to the done label.

Labels and the git directory come from the config file or the environment
(MAILTRIAGE_SOURCE_LABEL, MAILTRIAGE_DONE_LABEL, MAILTRIAGE_GIT_DIR) and can be
overridden with flags.`,
		Example: `  mailtriage triage --source IOB/libcamera --done IOB/libcamera/Done --git-dir ~/src/libcamera/.git
  mailtriage triage --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			override := func(cfg *config.Config) {
				if sourceLabel != "" {
					cfg.Labels.Source = sourceLabel
				}
				if doneLabel != "" {
					cfg.Labels.Done = doneLabel
				}
				if gitDir != "" {
					cfg.GitDir = gitDir
				}
			}
			return runTriage(cmd, override, assumeYes, dryRun)
		},
	}

	cmd.Flags().StringVar(&sourceLabel, "source", "", "Label whose threads are triaged, e.g. IOB/libcamera")
	cmd.Flags().StringVar(&doneLabel, "done", "", "Label that landed threads are moved to, e.g. IOB/libcamera/Done")
	cmd.Flags().StringVar(&gitDir, "git-dir", "", "Git directory searched for landed commits")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Move every landed thread without asking")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report which threads would be moved")

	return cmd
}

func runTriage(cmd *cobra.Command, override func(*config.Config), assumeYes, dryRun bool) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var prompter triage.Prompter
	switch {
	case assumeYes || dryRun:
	case triage.IsInteractive(os.Stdin):
		prompter = triage.NewTerminalPrompter(os.Stdin, cmd.OutOrStdout())
	default:
		return errors.New("stdin is not a terminal; use --yes or --dry-run")
	}

	a, err := newApp(ctx, override, true, triage.AuditSource)
	if err != nil {
		return err
	}
	defer closeApp(ctx, a)

	if err := a.cfg.RequireTriage(); err != nil {
		return err
	}

	driver, err := triage.NewDriver(a.mailbox, triage.Options{
		SourceLabel: a.cfg.Labels.Source,
		DoneLabel:   a.cfg.Labels.Done,
		Matcher:     git.NewRepository(a.cfg.GitDir, logging.NewSlogAdapter(a.logger)),
		Prompter:    prompter,
		Out:         cmd.OutOrStdout(),
		AssumeYes:   assumeYes,
		DryRun:      dryRun,
		Logger:      a.logger,
		Metrics:     a.provider.Metrics(),
		Audit:       a.audit,
	})
	if err != nil {
		return err
	}

	report, err := driver.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("triage interrupted after %d threads: %w", report.Seen, err)
		}
		return err
	}
	return nil
}
