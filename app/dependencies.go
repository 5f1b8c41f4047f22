// Package app is the central wiring point for dependency injection: it
// assembles the routing core from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Arashek/ADE-stable-1.0-sub004/config"
	"github.com/Arashek/ADE-stable-1.0-sub004/internal/cipher"
	"github.com/Arashek/ADE-stable-1.0-sub004/internal/observability"
	"github.com/Arashek/ADE-stable-1.0-sub004/models"
	"github.com/Arashek/ADE-stable-1.0-sub004/repositories"
	"github.com/Arashek/ADE-stable-1.0-sub004/repositories/postgres"
	"github.com/Arashek/ADE-stable-1.0-sub004/repositories/redis"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/balancer"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/breaker"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/discovery"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/performance"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/providers"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/providers/local"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/providers/openai"
)

// Dependencies holds all routing core dependencies
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *sql.DB
	Redis  *redislib.Client

	// Core components
	Tracker  *performance.Tracker
	Breakers *breaker.Manager
	Balancer *balancer.Balancer
	Registry *providers.Registry
	Monitor  *discovery.Monitor
	Metrics  *observability.InMemoryMetrics

	// Persistence
	Store  repositories.ProviderStore
	Cipher cipher.Cipher
}

// NewDependencies creates and wires up the routing core. The provider
// store is optional: without a database or Redis the registry runs purely
// in memory.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
	}

	if err := deps.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("initializing provider store: %w", err)
	}
	deps.initCore(cfg)
	deps.initBuilders(cfg)

	logger.Info("routing core initialized",
		zap.Bool("persistence", deps.Store != nil),
		zap.String("scoring_preset", cfg.Router.ScoringPreset))
	return deps, nil
}

// initStore opens the configured store backend. Redis takes precedence
// when enabled; otherwise PostgreSQL is used when reachable. A cipher key
// is required for either, so credentials never land in a store unencrypted.
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	key := cfg.Router.CredentialKeyBytes()
	if key == nil {
		d.Logger.Warn("no credential key configured, running without persistence")
		return nil
	}

	aead, err := cipher.NewAESGCM(key)
	if err != nil {
		return fmt.Errorf("creating credential cipher: %w", err)
	}
	d.Cipher = aead

	if cfg.Redis.Enabled {
		client := redislib.NewClient(&redislib.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("pinging redis: %w", err)
		}
		d.Redis = client
		d.Store = redis.NewProviderStore(client, d.Logger)
		d.Logger.Info("provider store backed by redis", zap.String("addr", cfg.Redis.Addr))
		return nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	d.DB = db
	d.Store = postgres.NewProviderRepository(db, d.Logger)
	d.Logger.Info("provider store backed by postgres",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initCore wires the tracker, breaker manager, balancer, registry, and
// health monitor. Provider instances that carry an endpoint are enrolled
// with the monitor, and probe outcomes flow back into the registry's
// instance status, so a failing endpoint drops out of selection.
func (d *Dependencies) initCore(cfg *config.Config) {
	d.Tracker = performance.NewTracker(d.Logger,
		performance.WithWindow(cfg.Router.LatencyWindow))
	d.Breakers = breaker.NewManager(cfg.Router.FailureThreshold, cfg.Router.ResetTimeout, d.Logger)
	d.Balancer = balancer.New(balancer.WithVirtualNodes(cfg.Router.VirtualNodes))

	opts := []providers.RegistryOption{
		providers.WithMetrics(d.Metrics),
		providers.WithMaxConsecutiveFailures(cfg.Router.MaxConsecutiveFailures),
		providers.WithDefaultStrategy(balancer.Strategy(cfg.Router.DefaultStrategy)),
		providers.WithLifecycleHooks(
			func(inst *models.Instance) {
				if inst.Endpoint != "" {
					d.Monitor.Observe(inst.ID, inst.Type, inst.Endpoint)
				}
			},
			func(instanceID string) { d.Monitor.Forget(instanceID) },
		),
	}
	if d.Store != nil {
		opts = append(opts, providers.WithStore(d.Store, d.Cipher))
	}
	d.Registry = providers.NewRegistry(d.Tracker, d.Breakers, d.Balancer, d.Logger, opts...)

	monitorOpts := []discovery.MonitorOption{
		discovery.WithInterval(cfg.Health.CheckInterval),
		discovery.WithTimeout(cfg.Health.CheckTimeout),
		discovery.WithCheckPath(cfg.Health.CheckPath),
		discovery.WithProbeRetries(cfg.Health.ProbeRetries),
		discovery.WithDrainPollInterval(cfg.Health.DrainPoll),
		discovery.WithStatusHook(func(instanceID string, status models.InstanceStatus) {
			// instances owned by the monitor alone are not in the registry
			_ = d.Registry.SetStatus(instanceID, status)
		}),
	}
	if d.Store != nil {
		monitorOpts = append(monitorOpts, discovery.WithStore(d.Store))
	}
	d.Monitor = discovery.NewMonitor(d.Logger, monitorOpts...)
}

// initBuilders registers the provider constructors, layering configured
// per-type defaults under registration-time options
func (d *Dependencies) initBuilders(cfg *config.Config) {
	openaiBuilder := openai.Builder()
	d.Registry.RegisterBuilder("openai", func(id string, pcfg providers.Config) (providers.Provider, error) {
		if pcfg.BaseURL == "" {
			pcfg.BaseURL = cfg.Providers.OpenAI.BaseURL
		}
		if pcfg.Timeout == 0 {
			pcfg.Timeout = cfg.Providers.OpenAI.Timeout
		}
		return openaiBuilder(id, pcfg)
	})
	if cfg.Providers.Local.Enabled {
		d.Registry.RegisterBuilder("local", local.Builder())
	}
}

// RestoreProviders re-registers providers from the persistent store. Each
// stored credential is decrypted in memory only. Records that fail to
// initialize are skipped with a warning so one broken provider never
// blocks startup.
func (d *Dependencies) RestoreProviders(ctx context.Context) (int, error) {
	if d.Store == nil {
		return 0, nil
	}

	records, err := d.Store.List(ctx, repositories.ProviderFilter{})
	if err != nil {
		return 0, fmt.Errorf("listing provider records: %w", err)
	}

	restored := 0
	for _, record := range records {
		credential, err := d.Cipher.Decrypt(record.EncryptedCredential)
		if err != nil {
			d.Logger.Warn("skipping record with undecryptable credential",
				zap.String("instance_id", record.InstanceID), zap.Error(err))
			continue
		}

		_, err = d.Registry.RegisterProvider(ctx, providers.RegisterOptions{
			Type:              record.Type,
			Credential:        credential,
			ModelMap:          record.ModelMap,
			DefaultParameters: record.DefaultParameters,
			CapabilityScores:  record.CapabilityScores,
		})
		if err != nil {
			d.Logger.Warn("skipping provider that failed to restore",
				zap.String("instance_id", record.InstanceID),
				zap.String("type", record.Type),
				zap.Error(err))
			continue
		}
		restored++
	}

	d.Logger.Info("providers restored from store",
		zap.Int("restored", restored),
		zap.Int("total", len(records)))
	return restored, nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down routing core")

	if d.Monitor != nil {
		d.Monitor.Stop()
	}

	var errs []error
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
