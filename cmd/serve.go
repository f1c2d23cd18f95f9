package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/mailtriage/internal/config"
	"github.com/teemow/mailtriage/internal/git"
	"github.com/teemow/mailtriage/internal/logging"
	"github.com/teemow/mailtriage/internal/resources"
	"github.com/teemow/mailtriage/internal/server"
	"github.com/teemow/mailtriage/internal/tools/triage_tools"
	"github.com/teemow/mailtriage/internal/triage"
)

// auditSourceMCP tags label changes requested by MCP clients.
const auditSourceMCP = "mcp"

func newServeCmd() *cobra.Command {
	var (
		yolo        bool
		gitDir      string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server on stdio so an AI assistant
can browse the triage labels, read threads and check whether their patches
have landed.

Safety Mode:
  By default, the server operates in read-only mode.
  Use --yolo to enable triage_modify_labels, which moves threads between labels.

Metrics:
  With INSTRUMENTATION_ENABLED=true and --metrics-addr, Prometheus metrics and
  health endpoints (/healthz, /readyz) are served on a dedicated port.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var override func(*config.Config)
			if gitDir != "" {
				override = func(cfg *config.Config) { cfg.GitDir = gitDir }
			}
			return runServe(cmd.Context(), override, yolo, metricsAddr)
		},
	}

	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (moving threads between labels). Default is read-only mode.")
	cmd.Flags().StringVar(&gitDir, "git-dir", "", "Git directory searched by triage_check_landed")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve metrics and health endpoints on this address, e.g. :9090. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(ctx context.Context, override func(*config.Config), yolo bool, metricsAddr string) error {
	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if metricsAddr == "" {
		metricsAddr = os.Getenv("METRICS_ADDR")
	}

	a, err := newApp(shutdownCtx, override, true, auditSourceMCP)
	if err != nil {
		return err
	}
	defer closeApp(shutdownCtx, a)

	var matcher triage.Matcher
	if a.cfg.GitDir != "" {
		matcher = git.NewRepository(a.cfg.GitDir, logging.NewSlogAdapter(a.logger))
	}

	// The server context closes the store on shutdown.
	store := a.store
	a.store = nil

	serverContext, err := server.NewServerContext(shutdownCtx, server.Deps{
		Mailbox: a.mailbox,
		Store:   store,
		Matcher: matcher,
		Logger:  a.logger,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create server context: %w", err)
	}
	serverContext.SetAuditLogger(a.audit)
	if a.provider.Enabled() {
		serverContext.SetMetrics(a.provider.Metrics())
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			a.logger.Error("server context shutdown failed", logging.Err(err))
		}
	}()

	health := server.NewHealthChecker(serverContext)

	if metricsAddr != "" {
		metricsServer, err := startMetricsServer(a, metricsAddr, health)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				a.logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	mcpSrv := mcpserver.NewMCPServer("mailtriage", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)

	readOnly := !yolo
	if readOnly {
		a.logger.Info("starting MCP server in read-only mode (use --yolo to enable write operations)")
	} else {
		a.logger.Info("starting MCP server with write operations enabled")
	}

	if err := registerAll(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}
	health.SetReady(true)

	return runStdioServer(mcpSrv)
}

func startMetricsServer(a *app, addr string, health *server.HealthChecker) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: a.provider,
		Health:                  health,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		a.logger.Info("metrics server started", slog.String("addr", metricsServer.Addr()))
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func registerAll(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	type registration struct {
		name     string
		register func() error
	}

	registrations := []registration{
		{
			name: "Triage tools",
			register: func() error {
				return triage_tools.RegisterTriageTools(mcpSrv, sc, readOnly)
			},
		},
		{
			name: "Triage resources",
			register: func() error {
				return resources.RegisterTriageResources(mcpSrv, sc)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}
