package triage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/teemow/mailtriage/internal/gmail"
	"github.com/teemow/mailtriage/internal/instrumentation"
	"github.com/teemow/mailtriage/internal/logging"
)

// AuditSource tags label changes made by the triage driver.
const AuditSource = "triage"

const banner = "**********************************************"

// Matcher reports whether a commit with the given title has landed.
type Matcher interface {
	HasCommit(ctx context.Context, title string) (bool, error)
}

// Mailbox is the part of a Gmail session the driver works on.
type Mailbox interface {
	Label(ctx context.Context, name string) (gmail.Label, error)
	Threads(ctx context.Context, label gmail.Label) iter.Seq2[*gmail.Thread, error]
}

var _ Mailbox = (*gmail.Mailbox)(nil)

// Options configures a Driver.
type Options struct {
	SourceLabel string
	DoneLabel   string

	Matcher  Matcher
	Prompter Prompter

	// Out receives the operator-facing transcript. Defaults to io.Discard.
	Out io.Writer

	// AssumeYes moves every matched thread without asking.
	AssumeYes bool
	// DryRun reports what would be moved without modifying anything.
	DryRun bool

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
}

// Report summarizes one triage run.
type Report struct {
	Seen      int
	Matched   int
	Declined  int
	Skipped   int
	Moved     []*gmail.Thread
	DryRun    bool
	StartedAt time.Time
	Duration  time.Duration
}

// Driver walks the threads under the source label and offers to move those
// whose patch is in the commit log to the done label.
type Driver struct {
	mb   Mailbox
	opts Options
	out  io.Writer
	log  *slog.Logger
}

// NewDriver creates a driver over mb.
func NewDriver(mb Mailbox, opts Options) (*Driver, error) {
	var missing []string
	if opts.SourceLabel == "" {
		missing = append(missing, "source label")
	}
	if opts.DoneLabel == "" {
		missing = append(missing, "done label")
	}
	if opts.Matcher == nil {
		missing = append(missing, "matcher")
	}
	if opts.Prompter == nil && !opts.AssumeYes && !opts.DryRun {
		missing = append(missing, "prompter")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("triage driver: missing %s", strings.Join(missing, ", "))
	}

	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Driver{
		mb:   mb,
		opts: opts,
		out:  out,
		log:  logging.WithOperation(logger, "triage"),
	}, nil
}

// Run triages every thread under the source label. Malformed threads and
// cache write failures are logged and skipped; any other error aborts the
// run and is returned together with the partial report.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	report := &Report{DryRun: d.opts.DryRun, StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	src, err := d.mb.Label(ctx, d.opts.SourceLabel)
	if err != nil {
		return report, fmt.Errorf("resolving source label: %w", err)
	}
	done, err := d.mb.Label(ctx, d.opts.DoneLabel)
	if err != nil {
		return report, fmt.Errorf("resolving done label: %w", err)
	}

	d.log.Info("triage started",
		logging.Label(src.Name),
		slog.String("done_label", done.Name),
		slog.Bool("dry_run", d.opts.DryRun))

	for thread, err := range d.mb.Threads(ctx, src) {
		if err != nil {
			if !d.skippable(ctx, thread, err, report) {
				return report, err
			}
			if thread == nil {
				continue
			}
		}

		report.Seen++
		if err := d.triage(ctx, thread, src, done, report); err != nil {
			return report, err
		}
	}

	d.printMoved(report)
	d.log.Info("triage finished",
		slog.Int("seen", report.Seen),
		slog.Int("matched", report.Matched),
		slog.Int("moved", len(report.Moved)),
		slog.Int("skipped", report.Skipped))
	return report, nil
}

// skippable logs err and reports whether the run may go on. A thread that
// came back with a cache write error is still usable.
func (d *Driver) skippable(ctx context.Context, thread *gmail.Thread, err error, report *Report) bool {
	var (
		malformed *gmail.MalformedThreadError
		cacheErr  *gmail.CacheWriteError
	)
	switch {
	case errors.As(err, &cacheErr):
		d.log.Warn("thread not cached", logging.ThreadID(cacheErr.ThreadID), logging.Err(err))
		if thread == nil {
			report.Skipped++
			d.opts.Metrics.RecordTriageOutcome(ctx, instrumentation.OutcomeSkipped)
		}
		return true
	case errors.As(err, &malformed):
		d.log.Warn("skipping malformed thread", logging.ThreadID(malformed.ThreadID), logging.Err(err))
		report.Skipped++
		d.opts.Metrics.RecordTriageOutcome(ctx, instrumentation.OutcomeSkipped)
		return true
	default:
		return false
	}
}

func (d *Driver) triage(ctx context.Context, thread *gmail.Thread, src, done gmail.Label, report *Report) error {
	subject := NormalizeSubject(thread.Subject())
	fmt.Fprintln(d.out, thread.Subject())

	if strings.TrimSpace(subject) == "" {
		d.opts.Metrics.RecordTriageOutcome(ctx, instrumentation.OutcomeUnmatched)
		return nil
	}

	landed, err := d.opts.Matcher.HasCommit(ctx, subject)
	if err != nil {
		return fmt.Errorf("checking commit log for %q: %w", subject, err)
	}
	if !landed {
		d.opts.Metrics.RecordTriageOutcome(ctx, instrumentation.OutcomeUnmatched)
		return nil
	}

	report.Matched++
	fmt.Fprintln(d.out, banner)
	fmt.Fprintf(d.out, "    thread: %s: %q is in the log\n", thread.ID, subject)
	fmt.Fprintln(d.out, banner)
	for _, m := range thread.Messages {
		fmt.Fprintln(d.out, m)
	}
	fmt.Fprintln(d.out)

	confirmed := d.opts.AssumeYes || d.opts.DryRun
	if !confirmed {
		confirmed, err = d.opts.Prompter.Confirm("Mark as done?", true)
		if err != nil {
			return fmt.Errorf("confirming thread %s: %w", thread.ID, err)
		}
	}
	if !confirmed {
		report.Declined++
		d.opts.Metrics.RecordTriageOutcome(ctx, instrumentation.OutcomeDeclined)
		return nil
	}

	if d.opts.DryRun {
		fmt.Fprintln(d.out, " Would be done with that one (dry run) ")
		d.opts.Audit.LogLabelChange((&instrumentation.LabelChange{
			ThreadID: thread.ID,
			Subject:  thread.Subject(),
			Removed:  []string{src.ID},
			Added:    []string{done.ID},
			Source:   AuditSource,
			DryRun:   true,
		}).WithSpanContext(ctx).Complete(nil))
		report.Moved = append(report.Moved, thread)
		d.opts.Metrics.RecordTriageOutcome(ctx, instrumentation.OutcomeSkipped)
		return nil
	}

	if _, err := thread.Modify(ctx, []gmail.Label{src}, []gmail.Label{done}); err != nil {
		var cacheErr *gmail.CacheWriteError
		if !errors.As(err, &cacheErr) {
			return fmt.Errorf("moving thread %s: %w", thread.ID, err)
		}
		d.log.Warn("cached thread not invalidated", logging.ThreadID(thread.ID), logging.Err(err))
	}

	fmt.Fprintln(d.out, " Done with that one ")
	report.Moved = append(report.Moved, thread)
	d.opts.Metrics.RecordTriageOutcome(ctx, instrumentation.OutcomeMoved)
	return nil
}

func (d *Driver) printMoved(report *Report) {
	if report.DryRun {
		fmt.Fprintln(d.out, "The following threads would be moved:")
	} else {
		fmt.Fprintln(d.out, "The following threads were moved:")
	}
	for _, t := range report.Moved {
		fmt.Fprintf(d.out, "  %s %s\n", t.ID, t)
	}
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(ctx context.Context, title string) (bool, error)

// HasCommit calls f.
func (f MatcherFunc) HasCommit(ctx context.Context, title string) (bool, error) {
	return f(ctx, title)
}
