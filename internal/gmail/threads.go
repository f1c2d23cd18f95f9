package gmail

import (
	"context"
	"errors"
	"iter"
	"strconv"
)

// ErrPagerDone is returned by Pager.Next once the listing is exhausted.
var ErrPagerDone = errors.New("gmail: no more pages")

// ThreadStub is a thread as it appears in a listing, before hydration.
type ThreadStub struct {
	ID        string
	Snippet   string
	HistoryID string
}

// Page is one response of a thread listing.
type Page struct {
	Stubs              []ThreadStub
	ResultSizeEstimate int64
	NextPageToken      string
}

// Pager walks the thread listing of one label a page at a time.
type Pager struct {
	svc        Service
	labelID    string
	maxResults int64

	token string
	done  bool
}

// Done reports whether the last page has been returned.
func (p *Pager) Done() bool {
	return p.done
}

// Next fetches the next page. A failed call leaves the pager where it was,
// so calling Next again retries the same page.
func (p *Pager) Next(ctx context.Context) (Page, error) {
	if p.done {
		return Page{}, ErrPagerDone
	}

	res, err := p.svc.ListThreads(ctx, p.labelID, p.token, p.maxResults)
	if err != nil {
		return Page{}, err
	}

	page := Page{
		Stubs:              make([]ThreadStub, 0, len(res.Threads)),
		ResultSizeEstimate: res.ResultSizeEstimate,
		NextPageToken:      res.NextPageToken,
	}
	for _, t := range res.Threads {
		if t == nil {
			continue
		}
		page.Stubs = append(page.Stubs, ThreadStub{
			ID:        t.Id,
			Snippet:   t.Snippet,
			HistoryID: formatHistoryID(t.HistoryId),
		})
	}

	p.token = res.NextPageToken
	p.done = res.NextPageToken == ""
	return page, nil
}

// Enumerator lists the threads carrying a label.
type Enumerator struct {
	svc      Service
	pageSize int64
}

// NewEnumerator creates an Enumerator. pageSize <= 0 uses the server default.
func NewEnumerator(svc Service, pageSize int64) *Enumerator {
	return &Enumerator{svc: svc, pageSize: pageSize}
}

// Pages returns a fresh pager for label.
func (e *Enumerator) Pages(label Label) *Pager {
	return &Pager{svc: e.svc, labelID: label.ID, maxResults: e.pageSize}
}

// Threads yields the stubs under label lazily, in listing order. Pages are
// fetched only as the caller advances. A listing error is yielded once and
// ends the sequence; stubs already yielded stay valid. Each call of the
// returned sequence starts a new listing.
func (e *Enumerator) Threads(ctx context.Context, label Label) iter.Seq2[ThreadStub, error] {
	return func(yield func(ThreadStub, error) bool) {
		pager := e.Pages(label)
		for !pager.Done() {
			page, err := pager.Next(ctx)
			if err != nil {
				yield(ThreadStub{}, err)
				return
			}
			for _, stub := range page.Stubs {
				if !yield(stub, nil) {
					return
				}
			}
		}
	}
}

// ForeachThread calls fn for every stub under label and stops at the first
// error from the listing or from fn.
func (e *Enumerator) ForeachThread(ctx context.Context, label Label, fn func(ThreadStub) error) error {
	for stub, err := range e.Threads(ctx, label) {
		if err != nil {
			return err
		}
		if err := fn(stub); err != nil {
			return err
		}
	}
	return nil
}

func formatHistoryID(id uint64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(id, 10)
}
