package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailtriage/internal/server"
)

// Resource URIs.
const (
	LabelsURI     = "triage://labels"
	CacheStatsURI = "triage://cache/stats"
)

const mimeJSON = "application/json"

// RegisterTriageResources registers the label and cache resources.
func RegisterTriageResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	labelsResource := mcp.NewResource(
		LabelsURI,
		"Gmail Labels",
		mcp.WithResourceDescription("All labels of the account with their ids, sorted by name"),
		mcp.WithMIMEType(mimeJSON),
	)
	s.AddResource(labelsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleLabels(ctx, request, sc)
	})

	statsResource := mcp.NewResource(
		CacheStatsURI,
		"Thread Cache Statistics",
		mcp.WithResourceDescription("Backend, location, entry count and age range of the local thread cache"),
		mcp.WithMIMEType(mimeJSON),
	)
	s.AddResource(statsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleCacheStats(ctx, request, sc)
	})

	return nil
}

type labelEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func handleLabels(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	mb, err := sc.Mailbox()
	if err != nil {
		return nil, err
	}
	labels, err := mb.Labels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}

	entries := make([]labelEntry, 0, len(labels))
	for _, l := range labels {
		entries = append(entries, labelEntry{ID: l.ID, Name: l.Name})
	}
	slices.SortFunc(entries, func(a, b labelEntry) int {
		return strings.Compare(a.Name, b.Name)
	})

	return jsonContents(request.Params.URI, map[string]any{
		"count":  len(entries),
		"labels": entries,
	})
}

func handleCacheStats(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	store := sc.Store()
	if store == nil {
		return nil, fmt.Errorf("no thread cache configured")
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}

	data := map[string]any{
		"backend": stats.Backend,
		"path":    stats.Path,
		"entries": stats.Entries,
		"bytes":   stats.Bytes,
	}
	if !stats.Oldest.IsZero() {
		data["oldest"] = stats.Oldest.UTC().Format(time.RFC3339)
		data["newest"] = stats.Newest.UTC().Format(time.RFC3339)
	}
	return jsonContents(request.Params.URI, data)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}
	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: mimeJSON,
			Text:     string(jsonData),
		},
	}, nil
}
