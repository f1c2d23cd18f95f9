package gmail

import (
	"context"
	"iter"
	"log/slog"

	"github.com/teemow/mailtriage/internal/cache"
	"github.com/teemow/mailtriage/internal/instrumentation"
)

// MailboxOptions configures a Mailbox.
type MailboxOptions struct {
	// PageSize is the maxResults of thread listings; 0 keeps the server default.
	PageSize int64
	Policy   CachePolicy
	Logger   *slog.Logger
	Metrics  *instrumentation.Metrics
	Audit    *instrumentation.AuditLogger
	// AuditSource tags audit records of label changes made through this mailbox.
	AuditSource string
}

// Mailbox is one session against a Gmail account. It owns the label
// directory, the thread enumerator and the hydrator, all sharing the same
// service handle and cache.
type Mailbox struct {
	svc        Service
	directory  *LabelDirectory
	enumerator *Enumerator
	hydrator   *Hydrator
}

// NewMailbox creates a session over svc and store.
func NewMailbox(svc Service, store cache.Store, opts MailboxOptions) *Mailbox {
	return &Mailbox{
		svc:        svc,
		directory:  NewLabelDirectory(svc, opts.Logger),
		enumerator: NewEnumerator(svc, opts.PageSize),
		hydrator: NewHydrator(svc, store, HydratorOptions{
			Policy:      opts.Policy,
			Logger:      opts.Logger,
			Metrics:     opts.Metrics,
			Audit:       opts.Audit,
			AuditSource: opts.AuditSource,
		}),
	}
}

// Directory returns the session's label directory.
func (m *Mailbox) Directory() *LabelDirectory {
	return m.directory
}

// Enumerator returns the session's thread enumerator.
func (m *Mailbox) Enumerator() *Enumerator {
	return m.enumerator
}

// Hydrator returns the session's hydrator.
func (m *Mailbox) Hydrator() *Hydrator {
	return m.hydrator
}

// Labels returns all labels keyed by name.
func (m *Mailbox) Labels(ctx context.Context) (map[string]Label, error) {
	return m.directory.Labels(ctx)
}

// Label resolves a label name.
func (m *Mailbox) Label(ctx context.Context, name string) (Label, error) {
	return m.directory.Label(ctx, name)
}

// Thread hydrates a single thread by id.
func (m *Mailbox) Thread(ctx context.Context, id string) (*Thread, error) {
	return m.hydrator.Hydrate(ctx, ThreadStub{ID: id})
}

// Threads yields the hydrated threads under label in listing order.
//
// A thread that fails to hydrate is yielded with its error and the sequence
// continues; the thread is non-nil only for a *CacheWriteError. A listing
// error is yielded with a nil thread and ends the sequence.
func (m *Mailbox) Threads(ctx context.Context, label Label) iter.Seq2[*Thread, error] {
	return func(yield func(*Thread, error) bool) {
		for stub, err := range m.enumerator.Threads(ctx, label) {
			if err != nil {
				yield(nil, err)
				return
			}
			t, err := m.hydrator.Hydrate(ctx, stub)
			if t == nil && err == nil {
				continue
			}
			if !yield(t, err) {
				return
			}
		}
	}
}
