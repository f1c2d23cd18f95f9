package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailtriage/internal/cache"
	"github.com/teemow/mailtriage/internal/gmail"
	"github.com/teemow/mailtriage/internal/server"
	"github.com/teemow/mailtriage/internal/tools/triage_tools"
)

type fakeService struct {
	threads []*gmailapi.Thread
}

func (f *fakeService) ListLabels(context.Context) ([]*gmailapi.Label, error) {
	return []*gmailapi.Label{
		{Id: "L2", Name: "IOB/libcamera/Done"},
		{Id: "L1", Name: "IOB/libcamera"},
		{Id: "INBOX", Name: "INBOX"},
	}, nil
}

func (f *fakeService) ListThreads(_ context.Context, labelID, _ string, _ int64) (*gmailapi.ListThreadsResponse, error) {
	res := &gmailapi.ListThreadsResponse{}
	if labelID != "L1" {
		return res, nil
	}
	for _, t := range f.threads {
		res.Threads = append(res.Threads, &gmailapi.Thread{Id: t.Id, HistoryId: t.HistoryId})
	}
	return res, nil
}

func (f *fakeService) GetThread(_ context.Context, id, _ string) (*gmailapi.Thread, error) {
	for _, t := range f.threads {
		if t.Id == id {
			return t, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeService) ModifyThreadLabels(context.Context, string, []string, []string) (*gmailapi.Thread, error) {
	return nil, errors.New("read only")
}

func apiThread(id string, subjects ...string) *gmailapi.Thread {
	t := &gmailapi.Thread{Id: id, HistoryId: 1}
	for i, s := range subjects {
		t.Messages = append(t.Messages, &gmailapi.Message{
			Id: id + "-" + string(rune('a'+i)),
			Payload: &gmailapi.MessagePart{Headers: []*gmailapi.MessagePartHeader{
				{Name: "Subject", Value: s},
				{Name: "From", Value: "dev@example.org"},
			}},
		})
	}
	return t
}

func newMailbox(t *testing.T, svc gmail.Service) *gmail.Mailbox {
	t.Helper()
	store, err := cache.OpenSQLite(t.TempDir() + "/cache.db")
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return gmail.NewMailbox(svc, store, gmail.MailboxOptions{Logger: discardLogger()})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPrintLabels(t *testing.T) {
	mb := newMailbox(t, &fakeService{})
	ctx := context.Background()

	tests := []struct {
		name    string
		label   string
		idsOnly bool
		want    string
		wantErr bool
	}{
		{
			name: "all labels sorted by name",
			want: "INBOX : (INBOX)\nIOB/libcamera : (L1)\nIOB/libcamera/Done : (L2)\n",
		},
		{
			name:    "all ids",
			idsOnly: true,
			want:    "INBOX\nL1\nL2\n",
		},
		{
			name:  "single label",
			label: "IOB/libcamera",
			want:  "Name: IOB/libcamera - ID: L1\n",
		},
		{
			name:    "single id",
			label:   "IOB/libcamera/Done",
			idsOnly: true,
			want:    "L2\n",
		},
		{
			name:    "unknown label",
			label:   "IOB/nope",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := printLabels(ctx, &out, mb.Directory(), tt.label, tt.idsOnly)
			if tt.wantErr {
				var unknown *gmail.UnknownLabelError
				if !errors.As(err, &unknown) {
					t.Fatalf("expected UnknownLabelError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.String() != tt.want {
				t.Errorf("got %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestPrintThreads(t *testing.T) {
	svc := &fakeService{threads: []*gmailapi.Thread{
		apiThread("T1", "[PATCH 0/2] series", "Re: [PATCH 0/2] series"),
		{Id: "T2", HistoryId: 1},
		apiThread("T3", "[RFC] idea"),
	}}
	mb := newMailbox(t, svc)

	var out bytes.Buffer
	err := printThreads(context.Background(), &out, nil, mb, "IOB/libcamera", discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "[PATCH 0/2] series (dev@example.org)\n" +
		"Re: [PATCH 0/2] series (dev@example.org)\n" +
		"[RFC] idea (dev@example.org)\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
}

func TestPrintThreads_Pause(t *testing.T) {
	svc := &fakeService{threads: []*gmailapi.Thread{
		apiThread("T1", "one"),
		apiThread("T2", "two"),
	}}
	mb := newMailbox(t, svc)

	// Input ends after the first thread, which stops the listing.
	next := bufio.NewReader(strings.NewReader("\n"))
	var out bytes.Buffer
	if err := printThreads(context.Background(), &out, next, mb, "IOB/libcamera", discardLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "one (dev@example.org)\nNext ... two (dev@example.org)\nNext ... "
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
}

func TestPrintCacheStats(t *testing.T) {
	var out bytes.Buffer
	printCacheStats(&out, cache.Stats{Backend: "sqlite", Path: "/tmp/cache.db"})
	if strings.Contains(out.String(), "Oldest") {
		t.Errorf("empty cache should not print age range: %q", out.String())
	}

	out.Reset()
	now := time.Now()
	printCacheStats(&out, cache.Stats{Backend: "pebble", Path: "/tmp/cache", Entries: 2, Bytes: 10, Oldest: now, Newest: now})
	for _, want := range []string{"Backend: pebble", "Threads: 2", "Bytes:   10", "Oldest:", "Newest:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in output %q", want, out.String())
		}
	}
}

func TestGetCategoryFromToolName(t *testing.T) {
	tests := map[string]string{
		triage_tools.ToolListLabels:   "Triage Tools",
		triage_tools.ToolModifyLabels: "Triage Tools",
		"unknown":                     "Other",
	}
	for name, want := range tests {
		if got := getCategoryFromToolName(name); got != want {
			t.Errorf("getCategoryFromToolName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestGenerateToolsMarkdown(t *testing.T) {
	tool := mcp.NewTool("triage_get_thread",
		mcp.WithDescription("Get one thread"),
		mcp.WithString("threadId", mcp.Required(), mcp.Description("The ID of the thread")),
	)

	md := generateToolsMarkdown([]mcp.Tool{tool})
	for _, want := range []string{
		"# MCP Tools Reference",
		"- [Triage Tools](#triage-tools)",
		"### triage_get_thread",
		"- `threadId` (required): The ID of the thread",
		"triage_modify_labels",
		"triage://labels",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in markdown:\n%s", want, md)
		}
	}
}

func TestRegisterAll(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), server.Deps{
		Mailbox: newMailbox(t, &fakeService{}),
	})
	if err != nil {
		t.Fatalf("failed to create server context: %v", err)
	}
	defer func() { _ = sc.Shutdown() }()

	s := mcpserver.NewMCPServer("test", "0.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)
	if err := registerAll(s, sc, true); err != nil {
		t.Fatalf("registerAll failed: %v", err)
	}

	tools := s.ListTools()
	if len(tools) != 4 {
		t.Errorf("expected 4 read-only tools, got %d", len(tools))
	}
	for _, st := range tools {
		if st.Tool.Name == triage_tools.ToolModifyLabels {
			t.Errorf("%s must not be registered in read-only mode", triage_tools.ToolModifyLabels)
		}
	}
}
