package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/teemow/mailtriage/internal/cache"
	"github.com/teemow/mailtriage/internal/config"
	"github.com/teemow/mailtriage/internal/gmail"
	"github.com/teemow/mailtriage/internal/google"
	"github.com/teemow/mailtriage/internal/instrumentation"
	"github.com/teemow/mailtriage/internal/logging"
)

// app holds what a command needs to talk to Gmail and the cache. Close
// releases it in reverse order of setup.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
	audit    *instrumentation.AuditLogger
	store    cache.Store
	mailbox  *gmail.Mailbox
}

// loadConfig layers the config file, the environment and the root flags,
// then lets override apply command specific flags before validating.
func loadConfig(override func(*config.Config)) (*config.Config, error) {
	path, explicit := rootFlags.configPath, rootFlags.configPath != ""
	if !explicit {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, err
	}
	if rootFlags.logLevel != "" {
		cfg.Log.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		cfg.Log.Format = rootFlags.logFormat
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp loads the configuration and sets up logging, instrumentation and
// the thread cache. With withMailbox it also authenticates against Gmail.
func newApp(ctx context.Context, override func(*config.Config), withMailbox bool, auditSource string) (_ *app, err error) {
	cfg, err := loadConfig(override)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instrumentation configuration: %w", err)
	}
	a.provider, err = instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	a.audit = instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)

	a.store, err = cache.Open(cfg.Cache.Backend, cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open thread cache: %w", err)
	}

	if !withMailbox {
		return a, nil
	}

	policy, err := gmail.ParseCachePolicy(cfg.Cache.Policy)
	if err != nil {
		return nil, err
	}

	conf, err := google.LoadConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	hc, err := google.HTTPClient(ctx, conf, cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	client, err := gmail.NewClient(ctx,
		gmail.WithHTTPClient(hc),
		gmail.WithRateLimit(cfg.Rate.RPS, cfg.Rate.Burst),
		gmail.WithMetrics(a.provider.Metrics()),
	)
	if err != nil {
		return nil, err
	}

	a.mailbox = gmail.NewMailbox(client, a.store, gmail.MailboxOptions{
		PageSize:    cfg.PageSize,
		Policy:      policy,
		Logger:      logger,
		Metrics:     a.provider.Metrics(),
		Audit:       a.audit,
		AuditSource: auditSource,
	})

	logger.Debug("mailbox ready",
		slog.String("cache_backend", cfg.Cache.Backend),
		slog.String("cache_path", cfg.Cache.Path),
		slog.String("cache_policy", string(policy)))

	return a, nil
}

// Close writes the metrics file when requested, then shuts down
// instrumentation and the cache.
func (a *app) Close(ctx context.Context) error {
	var errs []error

	if a.provider != nil {
		if rootFlags.metricsFile != "" {
			if err := a.provider.WriteMetricsFile(rootFlags.metricsFile); err != nil {
				errs = append(errs, err)
			}
		}
		if err := a.provider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close thread cache: %w", err))
		}
	}

	return errors.Join(errs...)
}

// closeApp closes a and logs the failure; used in defers.
func closeApp(ctx context.Context, a *app) {
	if err := a.Close(context.WithoutCancel(ctx)); err != nil {
		a.logger.Error("shutdown failed", logging.Err(err))
	}
}
