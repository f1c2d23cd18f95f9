package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailtriage/internal/cache"
)

type modifyCall struct {
	ThreadID  string
	RemoveIDs []string
	AddIDs    []string
}

type listCall struct {
	LabelID    string
	PageToken  string
	MaxResults int64
}

// fakeService scripts Gmail responses. Pages of a label are addressed by
// tokens "p1", "p2", ...; the first page has no token.
type fakeService struct {
	mu sync.Mutex

	labels    []*gmail.Label
	labelsErr error

	pages   map[string][][]*gmail.Thread
	listErr map[string]map[int]error

	threads   map[string]*gmail.Thread
	getErr    map[string]error
	modifyErr error

	listLabelsCalls int
	listCalls       []listCall
	getCalls        []string
	modifyCalls     []modifyCall
}

func newFakeService() *fakeService {
	return &fakeService{
		pages:   map[string][][]*gmail.Thread{},
		listErr: map[string]map[int]error{},
		threads: map[string]*gmail.Thread{},
		getErr:  map[string]error{},
	}
}

func (f *fakeService) ListLabels(context.Context) ([]*gmail.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listLabelsCalls++
	if f.labelsErr != nil {
		return nil, f.labelsErr
	}
	return f.labels, nil
}

func (f *fakeService) ListThreads(_ context.Context, labelID, pageToken string, maxResults int64) (*gmail.ListThreadsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, listCall{LabelID: labelID, PageToken: pageToken, MaxResults: maxResults})

	idx := 0
	if pageToken != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(pageToken, "p"))
		if err != nil {
			return nil, fmt.Errorf("bad page token %q", pageToken)
		}
		idx = n
	}
	if err := f.listErr[labelID][idx]; err != nil {
		return nil, err
	}

	pages := f.pages[labelID]
	res := &gmail.ListThreadsResponse{}
	if idx < len(pages) {
		res.Threads = pages[idx]
		res.ResultSizeEstimate = int64(len(pages[idx]))
	}
	if idx+1 < len(pages) {
		res.NextPageToken = "p" + strconv.Itoa(idx+1)
	}
	return res, nil
}

func (f *fakeService) GetThread(_ context.Context, id, format string) (*gmail.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls = append(f.getCalls, id+"/"+format)
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	t, ok := f.threads[id]
	if !ok {
		return nil, &RemoteServiceError{Op: "get_thread", ID: id, StatusCode: 404, Err: errors.New("not found")}
	}
	return t, nil
}

func (f *fakeService) ModifyThreadLabels(_ context.Context, id string, removeIDs, addIDs []string) (*gmail.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modifyCalls = append(f.modifyCalls, modifyCall{ThreadID: id, RemoveIDs: removeIDs, AddIDs: addIDs})
	if f.modifyErr != nil {
		return nil, f.modifyErr
	}
	return &gmail.Thread{Id: id}, nil
}

// addPages registers full threads and lists their stubs under labelID,
// split into pages.
func (f *fakeService) addPages(labelID string, pages ...[]*gmail.Thread) {
	for _, page := range pages {
		stubs := make([]*gmail.Thread, 0, len(page))
		for _, t := range page {
			f.threads[t.Id] = t
			stubs = append(stubs, &gmail.Thread{Id: t.Id, HistoryId: t.HistoryId, Snippet: t.Snippet})
		}
		f.pages[labelID] = append(f.pages[labelID], stubs)
	}
}

func apiMessage(id, subject, from string, labelIDs ...string) *gmail.Message {
	return &gmail.Message{
		Id:       id,
		LabelIds: labelIDs,
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: subject},
				{Name: "From", Value: from},
			},
		},
	}
}

func apiThread(id string, historyID uint64, msgs ...*gmail.Message) *gmail.Thread {
	return &gmail.Thread{Id: id, HistoryId: historyID, Messages: msgs}
}

func rawThread(t *testing.T, api *gmail.Thread) json.RawMessage {
	t.Helper()
	raw, err := api.MarshalJSON()
	require.NoError(t, err)
	return raw
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSQLiteStore(t *testing.T) cache.Store {
	t.Helper()
	s, err := cache.OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// countingStore records store traffic and can fail writes.
type countingStore struct {
	cache.Store
	puts, deletes int
	putErr        error
	deleteErr     error
}

func (s *countingStore) Put(ctx context.Context, id string, payload json.RawMessage) error {
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	return s.Store.Put(ctx, id, payload)
}

func (s *countingStore) Delete(ctx context.Context, id string) error {
	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Store.Delete(ctx, id)
}
