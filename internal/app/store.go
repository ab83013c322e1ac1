package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/newrelic/go-agent/v3/newrelic"

	"studentfees/internal/config"
	"studentfees/internal/mpesa"
	"studentfees/internal/repository"
	"studentfees/internal/repository/memory"
	"studentfees/internal/repository/postgres"
	"studentfees/internal/service"
)

// NewStore builds the configured persistence backend. The returned store is
// nil for the "none" driver. The returned func releases its resources.
func NewStore(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application) (repository.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			return nil, noop, err
		}
		if cfg.Store.AutoMigrate {
			if err := Migrate(ctx, db); err != nil {
				db.Close()
				return nil, noop, err
			}
		}
		return postgres.NewStore(db), db.Close, nil

	case config.StoreDriverMemory:
		slog.WarnContext(ctx, "using in-memory store; transactions are lost on restart")
		return memory.NewStore(), noop, nil

	case config.StoreDriverNone:
		slog.WarnContext(ctx, "no store configured; callbacks will not be reconciled",
			slog.Bool("require_persistence", cfg.Store.RequirePersistence),
		)
		return nil, noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Provider is the M-Pesa surface the services call.
type Provider interface {
	service.TokenProvider
	service.Gateway
}

// NewProviderClient builds the M-Pesa client and request signer. Outbound
// calls are recorded as external segments when nrApp is set. In demo mode
// the client is a local stand-in and no credentials are needed.
func NewProviderClient(cfg config.MpesaConfig, nrApp *newrelic.Application) (Provider, *mpesa.Signer) {
	if cfg.Demo() {
		passkey := cfg.Passkey
		if passkey == "" {
			passkey = mpesa.DemoPasskey
		}
		slog.Warn("mpesa demo mode: push and query calls are answered locally")
		return mpesa.NewDemoGateway(), mpesa.NewSigner(cfg.Shortcode, passkey)
	}

	var transport http.RoundTripper
	if nrApp != nil {
		transport = newrelic.NewRoundTripper(http.DefaultTransport)
	}

	client := mpesa.NewClient(mpesa.ClientConfig{
		BaseURL:        cfg.BaseURL,
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		Transport:      transport,
	})

	return client, mpesa.NewSigner(cfg.Shortcode, cfg.Passkey)
}

// NewNewRelic starts the New Relic agent when enabled. It returns nil when
// disabled or when the agent fails to start.
func NewNewRelic(cfg config.NewRelicConfig) *newrelic.Application {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return nil
	}

	nrApp, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		slog.Error("failed to initialize New Relic", slog.Any("error", err))
		return nil
	}

	slog.Info("New Relic enabled", slog.String("app", cfg.AppName))
	return nrApp
}
