package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailtriage/internal/cache"
	"github.com/teemow/mailtriage/internal/instrumentation"
	"github.com/teemow/mailtriage/internal/logging"
)

// CachePolicy decides how cached payloads relate to later remote changes.
type CachePolicy string

const (
	// PolicySnapshot keeps the first payload seen for a thread forever. Label
	// changes made through Modify are not reflected locally.
	PolicySnapshot CachePolicy = "snapshot"

	// PolicyRevalidate refetches a cached thread whose history id differs
	// from the listing, and drops the cache entry after a successful Modify.
	PolicyRevalidate CachePolicy = "revalidate"
)

// ParseCachePolicy validates a policy name. Empty means PolicyRevalidate.
func ParseCachePolicy(s string) (CachePolicy, error) {
	switch CachePolicy(s) {
	case "", PolicyRevalidate:
		return PolicyRevalidate, nil
	case PolicySnapshot:
		return PolicySnapshot, nil
	default:
		return "", fmt.Errorf("unknown cache policy %q", s)
	}
}

// MessageHeaders is one message of a thread. Header names keep the case
// they were received with.
type MessageHeaders struct {
	ID       string
	Headers  map[string]string
	LabelIDs []string
	Subject  string
	From     string
}

func (m *MessageHeaders) String() string {
	return fmt.Sprintf("%s (%s)", m.Subject, m.From)
}

// Thread is a hydrated Gmail thread.
type Thread struct {
	ID        string
	HistoryID string
	Snippet   string
	// Raw is the payload the thread was built from.
	Raw      json.RawMessage
	Messages []*MessageHeaders

	h *Hydrator
}

// Subject is the subject of the first message, as sent. List prefixes such
// as "[PATCH v2]" are left in place.
func (t *Thread) Subject() string {
	return t.Messages[0].Subject
}

func (t *Thread) String() string {
	return t.Messages[0].String()
}

// Labels returns the sorted union of the label ids of all messages.
func (t *Thread) Labels() []string {
	set := map[string]struct{}{}
	for _, m := range t.Messages {
		for _, id := range m.LabelIDs {
			set[id] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// HasLabel reports whether any message carries the label id.
func (t *Thread) HasLabel(id string) bool {
	for _, m := range t.Messages {
		if slices.Contains(m.LabelIDs, id) {
			return true
		}
	}
	return false
}

// Modify removes and adds labels in one remote call. With PolicyRevalidate
// the in-memory label view is updated and the cache entry dropped on
// success; if dropping the entry fails the response is returned together
// with a *CacheWriteError.
func (t *Thread) Modify(ctx context.Context, remove, add []Label) (*gmail.Thread, error) {
	if t.h == nil {
		return nil, fmt.Errorf("thread %s was not hydrated", t.ID)
	}
	return t.h.modify(ctx, t, labelIDs(remove), labelIDs(add))
}

// AddLabel adds a single label.
func (t *Thread) AddLabel(ctx context.Context, l Label) (*gmail.Thread, error) {
	return t.Modify(ctx, nil, []Label{l})
}

// RemoveLabel removes a single label.
func (t *Thread) RemoveLabel(ctx context.Context, l Label) (*gmail.Thread, error) {
	return t.Modify(ctx, []Label{l}, nil)
}

func labelIDs(labels []Label) []string {
	ids := make([]string, 0, len(labels))
	for _, l := range labels {
		ids = append(ids, l.ID)
	}
	return ids
}

// applyLabels updates the in-memory label ids of every message.
func (t *Thread) applyLabels(removeIDs, addIDs []string) {
	for _, m := range t.Messages {
		kept := make([]string, 0, len(m.LabelIDs)+len(addIDs))
		for _, id := range m.LabelIDs {
			if !slices.Contains(removeIDs, id) {
				kept = append(kept, id)
			}
		}
		for _, id := range addIDs {
			if !slices.Contains(kept, id) {
				kept = append(kept, id)
			}
		}
		m.LabelIDs = kept
	}
}

// ParseThread builds a Thread from a thread payload as returned by the
// Gmail API. Every message must carry a Subject and a From header.
func ParseThread(raw json.RawMessage) (*Thread, error) {
	var api gmail.Thread
	if err := json.Unmarshal(raw, &api); err != nil {
		return nil, fmt.Errorf("decoding thread payload: %w", err)
	}
	return fromAPI(&api, raw)
}

func fromAPI(api *gmail.Thread, raw json.RawMessage) (*Thread, error) {
	t := &Thread{
		ID:        api.Id,
		HistoryID: formatHistoryID(api.HistoryId),
		Snippet:   api.Snippet,
		Raw:       raw,
	}

	if len(api.Messages) == 0 {
		return nil, &MalformedThreadError{ThreadID: api.Id, Reason: "thread has no messages"}
	}

	for _, msg := range api.Messages {
		if msg == nil || msg.Payload == nil {
			return nil, &MalformedThreadError{ThreadID: api.Id, Reason: "message without payload"}
		}

		m := &MessageHeaders{
			ID:       msg.Id,
			Headers:  make(map[string]string, len(msg.Payload.Headers)),
			LabelIDs: slices.Clone(msg.LabelIds),
		}
		for _, h := range msg.Payload.Headers {
			m.Headers[h.Name] = h.Value
		}

		var ok bool
		if m.Subject, ok = m.Headers["Subject"]; !ok {
			return nil, &MalformedThreadError{ThreadID: api.Id, MessageID: msg.Id, Reason: "missing Subject header"}
		}
		if m.From, ok = m.Headers["From"]; !ok {
			return nil, &MalformedThreadError{ThreadID: api.Id, MessageID: msg.Id, Reason: "missing From header"}
		}

		t.Messages = append(t.Messages, m)
	}

	return t, nil
}

// HydratorOptions configures a Hydrator.
type HydratorOptions struct {
	Policy      CachePolicy
	Logger      *slog.Logger
	Metrics     *instrumentation.Metrics
	Audit       *instrumentation.AuditLogger
	AuditSource string
}

// Hydrator turns thread stubs into Threads through a read-through cache.
type Hydrator struct {
	svc   Service
	store cache.Store

	policy      CachePolicy
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	audit       *instrumentation.AuditLogger
	auditSource string
}

// NewHydrator creates a Hydrator reading through store.
func NewHydrator(svc Service, store cache.Store, opts HydratorOptions) *Hydrator {
	if opts.Policy == "" {
		opts.Policy = PolicyRevalidate
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hydrator{
		svc:         svc,
		store:       store,
		policy:      opts.Policy,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		audit:       opts.Audit,
		auditSource: opts.AuditSource,
	}
}

// Policy returns the cache policy in use.
func (h *Hydrator) Policy() CachePolicy {
	return h.policy
}

// Hydrate resolves stub into a Thread. A cached payload is used without a
// remote call unless the policy is PolicyRevalidate and the stub carries a
// different history id. On a miss the thread is fetched with metadata
// detail and written to the cache before it is parsed. A cached payload
// that fails header checks yields its *MalformedThreadError without a
// remote call.
//
// If the fetched payload cannot be cached, the thread is still returned,
// together with a *CacheWriteError.
func (h *Hydrator) Hydrate(ctx context.Context, stub ThreadStub) (*Thread, error) {
	if t, ok, err := h.fromCache(ctx, stub); ok {
		return t, err
	}

	api, err := h.svc.GetThread(ctx, stub.ID, FormatMetadata)
	if err != nil {
		return nil, err
	}
	raw, err := api.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding thread %s: %w", stub.ID, err)
	}

	var cacheErr error
	if err := h.store.Put(ctx, stub.ID, raw); err != nil {
		h.metrics.RecordCacheWrite(ctx, instrumentation.StatusError)
		cacheErr = &CacheWriteError{ThreadID: stub.ID, Err: err}
	} else {
		h.metrics.RecordCacheWrite(ctx, instrumentation.StatusSuccess)
	}

	t, err := fromAPI(api, raw)
	if err != nil {
		return nil, err
	}
	t.h = h
	return t, cacheErr
}

// fromCache returns the cached thread when it may be used as is. ok
// reports a usable entry; a cached payload that decodes but fails header
// checks is still a hit and yields its *MalformedThreadError.
func (h *Hydrator) fromCache(ctx context.Context, stub ThreadStub) (*Thread, bool, error) {
	entry, ok, err := h.store.Get(ctx, stub.ID)
	if err != nil {
		h.logger.Warn("thread cache read failed, fetching remotely",
			logging.ThreadID(stub.ID), logging.Err(err))
		h.metrics.RecordCacheLookup(ctx, instrumentation.CacheMiss)
		return nil, false, nil
	}
	if !ok {
		h.metrics.RecordCacheLookup(ctx, instrumentation.CacheMiss)
		return nil, false, nil
	}

	var api gmail.Thread
	if err := json.Unmarshal(entry.Payload, &api); err != nil {
		h.logger.Warn("cached thread payload unreadable, fetching remotely",
			logging.ThreadID(stub.ID), logging.Err(err))
		h.metrics.RecordCacheLookup(ctx, instrumentation.CacheStale)
		return nil, false, nil
	}

	cached := formatHistoryID(api.HistoryId)
	if h.policy == PolicyRevalidate && stub.HistoryID != "" && stub.HistoryID != cached {
		h.logger.Debug("cached thread is stale",
			logging.ThreadID(stub.ID),
			slog.String("cached_history_id", cached),
			slog.String("history_id", stub.HistoryID))
		h.metrics.RecordCacheLookup(ctx, instrumentation.CacheStale)
		return nil, false, nil
	}

	h.metrics.RecordCacheLookup(ctx, instrumentation.CacheHit)
	t, err := fromAPI(&api, entry.Payload)
	if err != nil {
		return nil, true, err
	}
	t.h = h
	return t, true, nil
}

func (h *Hydrator) modify(ctx context.Context, t *Thread, removeIDs, addIDs []string) (*gmail.Thread, error) {
	start := time.Now()
	change := (&instrumentation.LabelChange{
		ThreadID: t.ID,
		Subject:  t.Subject(),
		Removed:  removeIDs,
		Added:    addIDs,
		Source:   h.auditSource,
	}).WithSpanContext(ctx)

	res, err := h.svc.ModifyThreadLabels(ctx, t.ID, removeIDs, addIDs)
	change.Duration = time.Since(start)
	h.audit.LogLabelChange(change.Complete(err))
	if err != nil {
		return nil, err
	}

	if h.policy != PolicyRevalidate {
		return res, nil
	}

	t.applyLabels(removeIDs, addIDs)
	if err := h.store.Delete(ctx, t.ID); err != nil {
		return res, &CacheWriteError{ThreadID: t.ID, Err: err}
	}
	return res, nil
}
