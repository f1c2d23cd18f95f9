package gmail

import (
	"context"

	gmail "google.golang.org/api/gmail/v1"
)

// Detail levels accepted by Service.GetThread.
const (
	FormatMetadata = "metadata"
	FormatMinimal  = "minimal"
	FormatFull     = "full"
)

// Service is the narrow Gmail surface the triage core needs. Client is the
// production implementation; tests substitute a fake.
type Service interface {
	ListLabels(ctx context.Context) ([]*gmail.Label, error)
	ListThreads(ctx context.Context, labelID, pageToken string, maxResults int64) (*gmail.ListThreadsResponse, error)
	GetThread(ctx context.Context, id, format string) (*gmail.Thread, error)
	// ModifyThreadLabels applies both lists in one request.
	ModifyThreadLabels(ctx context.Context, id string, removeIDs, addIDs []string) (*gmail.Thread, error)
}
