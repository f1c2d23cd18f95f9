package gmail

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mailtriage/internal/instrumentation"
)

// userID addresses the authenticated user in every Gmail call.
const userID = "me"

// Client wraps the Gmail Users service.
type Client struct {
	svc     *gmail.UsersService
	limiter *rate.Limiter
	metrics *instrumentation.Metrics
}

var _ Service = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	api     []option.ClientOption
	limiter *rate.Limiter
	metrics *instrumentation.Metrics
}

// WithHTTPClient sets the authenticated HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(o *clientOptions) { o.api = append(o.api, option.WithHTTPClient(hc)) }
}

// WithEndpoint overrides the API base URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(o *clientOptions) { o.api = append(o.api, option.WithEndpoint(endpoint)) }
}

// WithRateLimit makes every call wait for a token. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(o *clientOptions) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics records every call on m.
func WithMetrics(m *instrumentation.Metrics) ClientOption {
	return func(o *clientOptions) { o.metrics = m }
}

// NewClient creates a Gmail client. Without WithHTTPClient the API library
// falls back to application default credentials.
func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	svc, err := gmail.NewService(ctx, o.api...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:     svc.Users,
		limiter: o.limiter,
		metrics: o.metrics,
	}, nil
}

// do runs fn under the rate limiter with a span and metrics. Errors from fn
// are wrapped in a RemoteServiceError.
func (c *Client) do(ctx context.Context, op, id string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("gmail %s: waiting for rate limiter: %w", op, err)
		}
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, op, attrs...)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, op, status, time.Since(start))

	if err != nil {
		err = newRemoteError(op, id, err)
		instrumentation.SetSpanError(span, err)
		return err
	}
	instrumentation.SetSpanSuccess(span)
	return nil
}

// ListLabels returns every label of the account.
func (c *Client) ListLabels(ctx context.Context) ([]*gmail.Label, error) {
	var labels []*gmail.Label
	err := c.do(ctx, "list_labels", "", func(ctx context.Context) error {
		res, err := c.svc.Labels.List(userID).Context(ctx).Do()
		if err != nil {
			return err
		}
		labels = res.Labels
		return nil
	})
	return labels, err
}

// ListThreads returns one page of threads carrying labelID.
func (c *Client) ListThreads(ctx context.Context, labelID, pageToken string, maxResults int64) (*gmail.ListThreadsResponse, error) {
	var res *gmail.ListThreadsResponse
	err := c.do(ctx, "list_threads", labelID, func(ctx context.Context) error {
		req := c.svc.Threads.List(userID).LabelIds(labelID).Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		if maxResults > 0 {
			req = req.MaxResults(maxResults)
		}
		var err error
		res, err = req.Do()
		return err
	}, instrumentation.LabelAttr(labelID))
	return res, err
}

// GetThread fetches one thread at the given detail level.
func (c *Client) GetThread(ctx context.Context, id, format string) (*gmail.Thread, error) {
	var thread *gmail.Thread
	err := c.do(ctx, "get_thread", id, func(ctx context.Context) error {
		var err error
		thread, err = c.svc.Threads.Get(userID, id).Format(format).Context(ctx).Do()
		return err
	}, instrumentation.ThreadAttr(id))
	return thread, err
}

// ModifyThreadLabels removes and adds labels on a thread in a single request.
// Empty lists are sent explicitly.
func (c *Client) ModifyThreadLabels(ctx context.Context, id string, removeIDs, addIDs []string) (*gmail.Thread, error) {
	req := &gmail.ModifyThreadRequest{
		RemoveLabelIds:  nonNil(removeIDs),
		AddLabelIds:     nonNil(addIDs),
		ForceSendFields: []string{"RemoveLabelIds", "AddLabelIds"},
	}

	var thread *gmail.Thread
	err := c.do(ctx, "modify_thread", id, func(ctx context.Context) error {
		var err error
		thread, err = c.svc.Threads.Modify(userID, id, req).Context(ctx).Do()
		return err
	}, instrumentation.ThreadAttr(id))
	return thread, err
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
