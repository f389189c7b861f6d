// Package app wires the pipeline's components into one process, following
// a single New()+Run(ctx) shape: config load, logger, storage, then the
// domain-specific graph, returned as a single struct the CLI commands
// drive.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shortforge/contentpipe/internal/adapters"
	"github.com/shortforge/contentpipe/internal/artifactstore"
	"github.com/shortforge/contentpipe/internal/config"
	"github.com/shortforge/contentpipe/internal/dashboard"
	"github.com/shortforge/contentpipe/internal/observability"
	"github.com/shortforge/contentpipe/internal/platform/captionalign"
	"github.com/shortforge/contentpipe/internal/platform/localmedia"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/platform/publish"
	"github.com/shortforge/contentpipe/internal/platform/stockmedia"
	"github.com/shortforge/contentpipe/internal/platform/textgen"
	"github.com/shortforge/contentpipe/internal/platform/trendsource"
	"github.com/shortforge/contentpipe/internal/platform/tts"
	"github.com/shortforge/contentpipe/internal/queue"
	"github.com/shortforge/contentpipe/internal/registry"
	"github.com/shortforge/contentpipe/internal/resilient"
	"github.com/shortforge/contentpipe/internal/statemachine"
	"github.com/shortforge/contentpipe/internal/supervisor"
)

// App bundles every constructed component; the CLI commands only ever touch
// these fields, never the collaborators underneath them directly.
type App struct {
	Log           *logger.Logger
	Config        config.Config
	Metrics       *observability.Metrics
	Registerer    *prometheus.Registry
	LocalDB       *gorm.DB
	DashboardDB   *gorm.DB
	LocalStore    *statemachine.Store
	Dashboard     *dashboard.Adapter
	ArtifactStore *artifactstore.Store
	Caller        *resilient.Caller
	Registry      *registry.Registry
	Scheduler     *queue.Scheduler
	Discovery     *queue.Discovery
	Supervisor    *supervisor.Supervisor
}

// New loads configuration from the environment and constructs the full
// dependency graph. Any failure here is a configuration error (CLI exit
// code 2), not a runtime one.
func New() (*App, error) {
	bootLog, err := logger.New("dev")
	if err != nil {
		return nil, fmt.Errorf("init bootstrap logger: %w", err)
	}
	cfg := config.FromEnv(bootLog)

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	for _, dir := range []string{cfg.DataRoot, cfg.DataRoot + "/state", cfg.ArtifactRoot(), cfg.LogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory %q: %w", dir, err)
		}
	}
	if err := os.MkdirAll(cfg.CredentialsDir(), 0o700); err != nil {
		return nil, fmt.Errorf("create credentials directory: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	localDB, err := openDB(config.DriverSQLite, cfg.LocalStatePath())
	if err != nil {
		return nil, fmt.Errorf("open local state db: %w", err)
	}
	dashDB, err := openDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open dashboard db: %w", err)
	}

	localStore := statemachine.NewStore(localDB)
	if err := localStore.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate local state: %w", err)
	}
	dash := dashboard.NewAdapter(dashDB)
	if err := dash.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate dashboard: %w", err)
	}

	artStore := artifactstore.NewStore(cfg.ArtifactRoot())
	caller := resilient.NewCaller(log, metrics)

	collab, err := newCollaborators(log, cfg)
	if err != nil {
		return nil, fmt.Errorf("init collaborators: %w", err)
	}

	reg2, err := buildRegistry(cfg, caller, artStore, collab, log)
	if err != nil {
		return nil, fmt.Errorf("build stage registry: %w", err)
	}

	scheduler := queue.NewScheduler(reg2, artStore, localStore, dash, log, metrics, cfg.PoolSize)

	ideationAdapter := adapters.NewIdeationAdapter(caller, dash, collab.textGen, log)

	var trendAdapter *adapters.TrendIngestAdapter
	if cfg.Trend.Category != "" {
		trendClient, err := trendsource.New(log, cfg.Trend)
		if err != nil {
			return nil, fmt.Errorf("init trendsource client: %w", err)
		}
		trendAdapter = adapters.NewTrendIngestAdapter(caller, dash, trendClient, cfg.TrendMinScore, log)
	}

	approvalWatcher := adapters.NewApprovalWatcher(dash, localStore, log)

	discovery := &queue.Discovery{
		LocalStore:  localStore,
		Dashboard:   dash,
		Scheduler:   scheduler,
		Ideation:    ideationAdapter,
		TrendIngest: trendAdapter,
		Approval:    approvalWatcher,
		Log:         log,
		Config: queue.DiscoveryConfig{
			IdeationEnabled:    cfg.IdeationEnabled,
			IdeationBatchSize:  cfg.IdeationBatchSize,
			TrendIngestEnabled: cfg.TrendIngestEnabled && trendAdapter != nil,
		},
	}

	sup := &supervisor.Supervisor{
		Discovery:     discovery,
		Scheduler:     scheduler,
		LocalStore:    localStore,
		Dashboard:     dash,
		ArtifactStore: artStore,
		Caller:        caller,
		Metrics:       metrics,
		Log:           log,
		Config: supervisor.Config{
			TickInterval:     cfg.TickInterval,
			GCInterval:       cfg.GCInterval,
			GCRetention:      cfg.GCRetention,
			DrainDeadline:    cfg.DrainDeadline,
			BreakerStatePath: cfg.DataRoot + "/state/circuit-breakers.json",
		},
	}

	if snap, err := supervisor.LoadBreakerState(sup.Config.BreakerStatePath); err == nil && len(snap) > 0 {
		log.Info("restored circuit-breaker snapshot from previous run", "breakers", snap)
	}

	return &App{
		Log: log, Config: cfg, Metrics: metrics, Registerer: reg,
		LocalDB: localDB, DashboardDB: dashDB,
		LocalStore: localStore, Dashboard: dash, ArtifactStore: artStore,
		Caller: caller, Registry: reg2, Scheduler: scheduler,
		Discovery: discovery, Supervisor: sup,
	}, nil
}

// Close releases the database handles and flushes the logger. Safe to call
// once after Run/RunOnce returns.
func (a *App) Close() {
	for _, db := range []*gorm.DB{a.LocalDB, a.DashboardDB} {
		if db == nil {
			continue
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// openDB opens the driver CONTENTPIPE_DB_DRIVER selected; the DSN is never
// inspected to guess the backend.
func openDB(driver, dsn string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	switch driver {
	case config.DriverPostgres:
		return gorm.Open(postgres.Open(dsn), gormCfg)
	case config.DriverSQLite:
		return gorm.Open(sqlite.Open(dsn), gormCfg)
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}
}

// collaboratorSet groups every external-collaborator client so
// buildRegistry stays readable.
type collaboratorSet struct {
	textGen   adapters.TextGenClient
	tts       adapters.TTSClient
	stock     *stockmedia.Client
	aligner   adapters.CaptionAligner
	publisher adapters.Publisher
	muxer     adapters.Muxer
}

func newCollaborators(log *logger.Logger, cfg config.Config) (collaboratorSet, error) {
	var set collaboratorSet
	var err error
	set.textGen, err = textgen.New(log, cfg.TextGen)
	if err != nil {
		return set, fmt.Errorf("textgen: %w", err)
	}
	set.tts, err = tts.New(log, cfg.TTS)
	if err != nil {
		return set, fmt.Errorf("tts: %w", err)
	}
	set.stock, err = stockmedia.New(log, cfg.Stock)
	if err != nil {
		return set, fmt.Errorf("stockmedia: %w", err)
	}
	set.aligner, err = captionalign.New(log, cfg.CaptionAlign)
	if err != nil {
		return set, fmt.Errorf("captionalign: %w", err)
	}
	set.publisher, err = publish.New(log, cfg.Publish)
	if err != nil {
		return set, fmt.Errorf("publish: %w", err)
	}
	set.muxer = localmedia.New(log, cfg.DataRoot+"/work", 0)
	return set, nil
}
