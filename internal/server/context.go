package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/mailtriage/internal/cache"
	"github.com/teemow/mailtriage/internal/gmail"
	"github.com/teemow/mailtriage/internal/instrumentation"
	"github.com/teemow/mailtriage/internal/triage"
)

// ErrShutdown is returned by accessors after Shutdown.
var ErrShutdown = errors.New("server context is shut down")

// Deps are the long-lived collaborators of the MCP server.
type Deps struct {
	Mailbox *gmail.Mailbox
	Store   cache.Store
	Matcher triage.Matcher
	Logger  *slog.Logger
}

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	mailbox *gmail.Mailbox
	store   cache.Store
	matcher triage.Matcher
	logger  *slog.Logger

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context. The mailbox is required;
// without a matcher the commit checking tools report an error.
func NewServerContext(ctx context.Context, deps Deps) (*ServerContext, error) {
	if deps.Mailbox == nil {
		return nil, fmt.Errorf("server context requires a mailbox")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		mailbox: deps.Mailbox,
		store:   deps.Store,
		matcher: deps.Matcher,
		logger:  logger,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Mailbox returns the Gmail session, or ErrShutdown.
func (sc *ServerContext) Mailbox() (*gmail.Mailbox, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if sc.shutdown {
		return nil, ErrShutdown
	}
	return sc.mailbox, nil
}

// Store returns the thread cache. It may be nil.
func (sc *ServerContext) Store() cache.Store {
	return sc.store
}

// Matcher returns the commit matcher. It may be nil.
func (sc *ServerContext) Matcher() triage.Matcher {
	return sc.matcher
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// SetMetrics sets the metrics recorder used by tool handlers.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger for label changes.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// AuditLogger returns the audit logger, nil when not configured.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown reports whether Shutdown was called.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context and closes the thread cache.
// Calling it more than once is a no-op.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()

	if sc.store != nil {
		if err := sc.store.Close(); err != nil {
			return fmt.Errorf("failed to close thread cache: %w", err)
		}
	}
	return nil
}
