package triage_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailtriage/internal/gmail"
	"github.com/teemow/mailtriage/internal/server"
	"github.com/teemow/mailtriage/internal/tools/batch"
	"github.com/teemow/mailtriage/internal/tools/common"
	"github.com/teemow/mailtriage/internal/triage"
)

// Tool names.
const (
	ToolListLabels   = "triage_list_labels"
	ToolListThreads  = "triage_list_threads"
	ToolGetThread    = "triage_get_thread"
	ToolCheckLanded  = "triage_check_landed"
	ToolModifyLabels = "triage_modify_labels"
)

const defaultMaxThreads = 25

// RegisterTriageTools registers the triage tools with the MCP server.
// triage_modify_labels is only registered when readOnly is false.
func RegisterTriageTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listLabelsTool := mcp.NewTool(ToolListLabels,
		mcp.WithDescription("List Gmail labels as 'name : (id)', sorted by name"),
		mcp.WithString("prefix",
			mcp.Description("Only list labels whose name starts with this prefix (e.g. 'IOB/')"),
		),
	)
	s.AddTool(listLabelsTool, common.InstrumentedToolHandler(ToolListLabels, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListLabels(ctx, request, sc)
		}))

	listThreadsTool := mcp.NewTool(ToolListThreads,
		mcp.WithDescription("List the threads under a label with the subject and sender of each message"),
		mcp.WithString("label",
			mcp.Required(),
			mcp.Description("Label name, e.g. 'IOB/libcamera'"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description(fmt.Sprintf("Maximum number of threads to return (default: %d)", defaultMaxThreads)),
		),
	)
	s.AddTool(listThreadsTool, common.InstrumentedToolHandler(ToolListThreads, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListThreads(ctx, request, sc)
		}))

	getThreadTool := mcp.NewTool(ToolGetThread,
		mcp.WithDescription("Get one thread: its messages, their headers and label ids"),
		mcp.WithString("threadId",
			mcp.Required(),
			mcp.Description("The ID of the thread"),
		),
	)
	s.AddTool(getThreadTool, common.InstrumentedToolHandler(ToolGetThread, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetThread(ctx, request, sc)
		}))

	checkLandedTool := mcp.NewTool(ToolCheckLanded,
		mcp.WithDescription("Check whether the patch discussed in a thread has a matching commit in the git log. "+
			"Leading [PATCH]-style tags are stripped from the subject before matching."),
		mcp.WithString("threadId",
			mcp.Description("Thread whose subject is checked"),
		),
		mcp.WithString("subject",
			mcp.Description("Subject to check instead of a thread"),
		),
	)
	s.AddTool(checkLandedTool, common.InstrumentedToolHandler(ToolCheckLanded, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckLanded(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	modifyLabelsTool := mcp.NewTool(ToolModifyLabels,
		mcp.WithDescription("Remove and add labels on one or more threads in a single request per thread"),
		mcp.WithString("threadIds",
			mcp.Required(),
			mcp.Description("Thread ID (string) or array of thread IDs"),
		),
		mcp.WithString("removeLabels",
			mcp.Description("Label name or array of label names to remove"),
		),
		mcp.WithString("addLabels",
			mcp.Description("Label name or array of label names to add"),
		),
	)
	s.AddTool(modifyLabelsTool, common.InstrumentedToolHandler(ToolModifyLabels, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleModifyLabels(ctx, request, sc)
		}))

	return nil
}

type messageSummary struct {
	ID       string   `json:"id"`
	Subject  string   `json:"subject"`
	From     string   `json:"from"`
	LabelIDs []string `json:"labelIds,omitempty"`
}

type threadSummary struct {
	ID                string           `json:"id"`
	HistoryID         string           `json:"historyId,omitempty"`
	Subject           string           `json:"subject,omitempty"`
	NormalizedSubject string           `json:"normalizedSubject,omitempty"`
	LabelIDs          []string         `json:"labelIds,omitempty"`
	Messages          []messageSummary `json:"messages,omitempty"`
	Error             string           `json:"error,omitempty"`
}

func summarize(t *gmail.Thread) threadSummary {
	s := threadSummary{
		ID:                t.ID,
		HistoryID:         t.HistoryID,
		Subject:           t.Subject(),
		NormalizedSubject: triage.NormalizeSubject(t.Subject()),
		LabelIDs:          t.Labels(),
	}
	for _, m := range t.Messages {
		s.Messages = append(s.Messages, messageSummary{
			ID:       m.ID,
			Subject:  m.Subject,
			From:     m.From,
			LabelIDs: m.LabelIDs,
		})
	}
	return s
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return strings.TrimSpace(s)
}

func handleListLabels(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	mb, err := sc.Mailbox()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prefix := stringArg(request.GetArguments(), "prefix")

	labels, err := mb.Labels(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list labels: %v", err)), nil
	}

	names := make([]string, 0, len(labels))
	for name := range labels {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d labels:\n", len(names))
	for _, name := range names {
		sb.WriteString(labels[name].String())
		sb.WriteByte('\n')
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func handleListThreads(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	mb, err := sc.Mailbox()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()

	name := stringArg(args, "label")
	if name == "" {
		return mcp.NewToolResultError("label is required"), nil
	}
	maxResults := defaultMaxThreads
	if v, ok := args["maxResults"].(float64); ok && v > 0 {
		maxResults = int(v)
	}

	label, err := mb.Label(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	threads := []threadSummary{}
	for thread, err := range mb.Threads(ctx, label) {
		switch {
		case thread != nil:
			threads = append(threads, summarize(thread))
		case isThreadError(err):
			threads = append(threads, threadSummary{ID: threadIDOf(err), Error: err.Error()})
		default:
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list threads: %v", err)), nil
		}
		if len(threads) >= maxResults {
			break
		}
	}

	return jsonResult(map[string]any{
		"label":   label.Name,
		"count":   len(threads),
		"threads": threads,
	})
}

// isThreadError reports whether err concerns a single thread and the
// listing can go on.
func isThreadError(err error) bool {
	var (
		malformed *gmail.MalformedThreadError
		remote    *gmail.RemoteServiceError
	)
	if errors.As(err, &malformed) {
		return true
	}
	return errors.As(err, &remote) && remote.Op == "get_thread"
}

func threadIDOf(err error) string {
	var (
		malformed *gmail.MalformedThreadError
		remote    *gmail.RemoteServiceError
	)
	switch {
	case errors.As(err, &malformed):
		return malformed.ThreadID
	case errors.As(err, &remote):
		return remote.ID
	}
	return ""
}

func handleGetThread(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	mb, err := sc.Mailbox()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threadID := stringArg(request.GetArguments(), "threadId")
	if threadID == "" {
		return mcp.NewToolResultError("threadId is required"), nil
	}

	thread, err := mb.Thread(ctx, threadID)
	if thread == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get thread: %v", err)), nil
	}
	summary := summarize(thread)
	if err != nil {
		summary.Error = err.Error()
	}
	return jsonResult(summary)
}

func handleCheckLanded(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	matcher := sc.Matcher()
	if matcher == nil {
		return mcp.NewToolResultError("no git repository configured; set git_dir in the config"), nil
	}
	args := request.GetArguments()

	subject := stringArg(args, "subject")
	threadID := stringArg(args, "threadId")
	if subject == "" && threadID == "" {
		return mcp.NewToolResultError("threadId or subject is required"), nil
	}

	if subject == "" {
		mb, err := sc.Mailbox()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		thread, err := mb.Thread(ctx, threadID)
		if thread == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get thread: %v", err)), nil
		}
		subject = thread.Subject()
	}

	title := triage.NormalizeSubject(subject)
	if strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError(fmt.Sprintf("subject %q has no title left after stripping tags", subject)), nil
	}

	landed, err := matcher.HasCommit(ctx, title)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search the commit log: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"threadId":          threadID,
		"subject":           subject,
		"normalizedSubject": title,
		"landed":            landed,
	})
}

func handleModifyLabels(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	mb, err := sc.Mailbox()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()

	threadIDs, err := batch.ParseStringOrArray(args["threadIds"], "threadIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	removeNames, err := batch.ParseOptionalList(args["removeLabels"], "removeLabels")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	addNames, err := batch.ParseOptionalList(args["addLabels"], "addLabels")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(removeNames) == 0 && len(addNames) == 0 {
		return mcp.NewToolResultError("removeLabels or addLabels is required"), nil
	}

	remove, err := resolveLabels(ctx, mb, removeNames)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	add, err := resolveLabels(ctx, mb, addNames)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results := batch.ProcessBatch(ctx, threadIDs, func(ctx context.Context, id string) (string, error) {
		thread, err := mb.Thread(ctx, id)
		if thread == nil {
			return "", err
		}
		if _, err := thread.Modify(ctx, remove, add); err != nil {
			var cacheErr *gmail.CacheWriteError
			if !errors.As(err, &cacheErr) {
				return "", err
			}
		}
		return fmt.Sprintf("Thread %s: removed %s, added %s", id, labelNames(remove), labelNames(add)), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func resolveLabels(ctx context.Context, mb *gmail.Mailbox, names []string) ([]gmail.Label, error) {
	labels := make([]gmail.Label, 0, len(names))
	for _, name := range names {
		l, err := mb.Label(ctx, name)
		if err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, nil
}

func labelNames(labels []gmail.Label) string {
	if len(labels) == 0 {
		return "nothing"
	}
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return strings.Join(names, ", ")
}
