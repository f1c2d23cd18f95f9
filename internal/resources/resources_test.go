package resources

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailtriage/internal/cache"
	"github.com/teemow/mailtriage/internal/gmail"
	"github.com/teemow/mailtriage/internal/server"
)

type labelsOnly struct{}

func (labelsOnly) ListLabels(context.Context) ([]*gmailapi.Label, error) {
	return []*gmailapi.Label{
		{Id: "L2", Name: "IOB/libcamera/Done"},
		{Id: "L1", Name: "IOB/libcamera"},
	}, nil
}
func (labelsOnly) ListThreads(context.Context, string, string, int64) (*gmailapi.ListThreadsResponse, error) {
	return &gmailapi.ListThreadsResponse{}, nil
}
func (labelsOnly) GetThread(context.Context, string, string) (*gmailapi.Thread, error) {
	return nil, errors.New("not found")
}
func (labelsOnly) ModifyThreadLabels(context.Context, string, []string, []string) (*gmailapi.Thread, error) {
	return nil, errors.New("read only")
}

func newServerContext(t *testing.T, withStore bool) *server.ServerContext {
	t.Helper()
	deps := server.Deps{}
	if withStore {
		store, err := cache.OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		require.NoError(t, store.Put(context.Background(), "T1", []byte(`{"id":"T1"}`)))
		deps.Store = store
	}
	deps.Mailbox = gmail.NewMailbox(labelsOnly{}, deps.Store, gmail.MailboxOptions{})
	sc, err := server.NewServerContext(context.Background(), deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func readRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{Params: mcp.ReadResourceParams{URI: uri}}
}

func text(t *testing.T, contents []mcp.ResourceContents) string {
	t.Helper()
	require.Len(t, contents, 1)
	tc, ok := contents[0].(*mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", tc.MIMEType)
	return tc.Text
}

func TestLabelsResource(t *testing.T) {
	sc := newServerContext(t, false)

	contents, err := handleLabels(context.Background(), readRequest(LabelsURI), sc)
	require.NoError(t, err)

	var got struct {
		Count  int          `json:"count"`
		Labels []labelEntry `json:"labels"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, contents)), &got))
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, []labelEntry{
		{ID: "L1", Name: "IOB/libcamera"},
		{ID: "L2", Name: "IOB/libcamera/Done"},
	}, got.Labels)
}

func TestCacheStatsResource(t *testing.T) {
	sc := newServerContext(t, true)

	contents, err := handleCacheStats(context.Background(), readRequest(CacheStatsURI), sc)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, contents)), &got))
	assert.Equal(t, "sqlite", got["backend"])
	assert.Equal(t, float64(1), got["entries"])
	assert.Contains(t, got, "oldest")
}

func TestCacheStatsResource_NoStore(t *testing.T) {
	sc := newServerContext(t, false)

	_, err := handleCacheStats(context.Background(), readRequest(CacheStatsURI), sc)
	assert.Error(t, err)
}

func TestResources_AfterShutdown(t *testing.T) {
	sc := newServerContext(t, false)
	require.NoError(t, sc.Shutdown())

	_, err := handleLabels(context.Background(), readRequest(LabelsURI), sc)
	assert.ErrorIs(t, err, server.ErrShutdown)
}
