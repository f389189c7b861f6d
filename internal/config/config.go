// Package config centralizes the process environment contract: every
// path, credential, pool-sizing override, and pipeline-level knob is
// parsed through Validation's safe coercers rather than read ad hoc at
// each call site, so a malformed environment variable degrades to a
// documented default instead of propagating a parse panic or a silently
// wrong value. The platform collaborator clients never read the
// environment themselves; their Config values are built here.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/platform/captionalign"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/platform/publish"
	"github.com/shortforge/contentpipe/internal/platform/stockmedia"
	"github.com/shortforge/contentpipe/internal/platform/textgen"
	"github.com/shortforge/contentpipe/internal/platform/trendsource"
	"github.com/shortforge/contentpipe/internal/platform/tts"
	"github.com/shortforge/contentpipe/internal/queue"
	"github.com/shortforge/contentpipe/internal/validation"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the process-wide configuration, sourced entirely from
// environment variables.
type Config struct {
	// DataRoot (CONTENTPIPE_ROOT) is the root of the persistent state
	// layout: <root>/state, <root>/artifacts, <root>/logs,
	// <root>/credentials.
	DataRoot string

	// DBDriver (CONTENTPIPE_DB_DRIVER) selects sqlite or postgres for the
	// dashboard adapter; DBDSN (CONTENTPIPE_DB_DSN) is its connection
	// string, defaulting to a sqlite file under DataRoot. The local state
	// store is always the single-file sqlite db at state/items.db.
	DBDriver string
	DBDSN    string

	LogMode string

	TickInterval time.Duration
	GCInterval   time.Duration
	GCRetention  time.Duration

	IdeationEnabled    bool
	IdeationBatchSize  int
	TrendIngestEnabled bool
	TrendMinScore      int

	ClipsPerItem      int
	TargetDurationSec float64

	// PublishMadeForKids (CONTENTPIPE_MADE_FOR_KIDS) and PublishCategoryID
	// (CONTENTPIPE_PUBLISH_CATEGORY_ID) surface the publishing adapter's
	// provider-specific constants as configuration, not hardcoded literals.
	PublishMadeForKids bool
	PublishCategoryID  int

	PoolSize map[domain.StageName]int

	DrainDeadline time.Duration

	TextGen      textgen.Config
	TTS          tts.Config
	Stock        stockmedia.Config
	CaptionAlign captionalign.Config
	Publish      publish.Config
	Trend        trendsource.Config
}

// FromEnv loads Config from the process environment, falling back to
// documented defaults for anything absent or malformed. log receives a
// warning for every value it had to fall back on.
func FromEnv(log *logger.Logger) Config {
	dataRoot := dataRootFromEnv(log)

	cfg := Config{
		DataRoot: dataRoot,
		DBDriver: validation.SafeEnum("CONTENTPIPE_DB_DRIVER", []string{DriverSQLite, DriverPostgres}, DriverSQLite, log),
		DBDSN:    validation.SafeString("CONTENTPIPE_DB_DSN", "", log),
		LogMode:  validation.SafeEnum("CONTENTPIPE_LOG_MODE", []string{"dev", "prod"}, "dev", log),

		TickInterval: time.Duration(validation.SafeInt("CONTENTPIPE_DISCOVERY_INTERVAL_SECONDS", 1, 3600, 5, log)) * time.Second,
		GCInterval:   time.Duration(validation.SafeInt("CONTENTPIPE_GC_INTERVAL_SECONDS", 60, 86400, 3600, log)) * time.Second,
		// GCRetention defaults to 7 days and is operator-configurable.
		GCRetention: time.Duration(validation.SafeInt("CONTENTPIPE_RETENTION_DAYS", 0, 3650, 7, log)) * 24 * time.Hour,

		IdeationEnabled:    validation.SafeBool("CONTENTPIPE_IDEATION_ENABLED", true, log),
		IdeationBatchSize:  validation.SafeInt("CONTENTPIPE_IDEATION_BATCH_SIZE", 1, 50, 1, log),
		TrendIngestEnabled: validation.SafeBool("CONTENTPIPE_TREND_INGEST_ENABLED", false, log),
		TrendMinScore:      validation.SafeInt("CONTENTPIPE_TREND_MIN_SCORE", 0, 1000000, 100, log),

		ClipsPerItem:      validation.SafeInt("CONTENTPIPE_CLIPS_PER_ITEM", 1, 20, 3, log),
		TargetDurationSec: validation.SafeFloat("CONTENTPIPE_TARGET_DURATION_SECONDS", 5, 180, 45, log),

		PublishMadeForKids: validation.SafeBool("CONTENTPIPE_MADE_FOR_KIDS", false, log),
		PublishCategoryID:  validation.SafeInt("CONTENTPIPE_PUBLISH_CATEGORY_ID", 1, 44, 22, log),

		DrainDeadline: time.Duration(validation.SafeInt("CONTENTPIPE_DRAIN_DEADLINE_SECONDS", 1, 3600, 120, log)) * time.Second,
	}

	cfg.PoolSize = poolSizeFromEnv(log)
	if cfg.DBDSN == "" {
		cfg.DBDriver = DriverSQLite
		cfg.DBDSN = filepath.Join(dataRoot, "state", "dashboard.db")
	}

	cfg.TextGen = textgen.Config{
		APIKey:      validation.SafeString("CONTENTPIPE_TEXTGEN_API_KEY", "", nil),
		BaseURL:     validation.SafeString("CONTENTPIPE_TEXTGEN_BASE_URL", "https://api.openai.com", log),
		Model:       validation.SafeString("CONTENTPIPE_TEXTGEN_MODEL", "gpt-5.2", log),
		Temperature: validation.SafeFloat("CONTENTPIPE_TEXTGEN_TEMPERATURE", 0, 2, 0.7, log),
		TimeoutSec:  validation.SafeInt("CONTENTPIPE_TEXTGEN_TIMEOUT_SECONDS", 1, 600, 60, log),
		MaxRetries:  validation.SafeInt("CONTENTPIPE_TEXTGEN_MAX_RETRIES", 0, 10, 2, log),
	}
	cfg.TTS = tts.Config{
		APIKey:     validation.SafeString("CONTENTPIPE_TTS_API_KEY", "", nil),
		BaseURL:    validation.SafeString("CONTENTPIPE_TTS_BASE_URL", "https://api.elevenlabs.io", log),
		VoiceID:    validation.SafeString("CONTENTPIPE_TTS_VOICE_ID", "", log),
		TimeoutSec: validation.SafeInt("CONTENTPIPE_TTS_TIMEOUT_SECONDS", 1, 600, 120, log),
		MaxRetries: validation.SafeInt("CONTENTPIPE_TTS_MAX_RETRIES", 0, 10, 2, log),
	}
	cfg.Stock = stockmedia.Config{
		APIKey:             validation.SafeString("CONTENTPIPE_STOCK_API_KEY", "", nil),
		BaseURL:            validation.SafeString("CONTENTPIPE_STOCK_BASE_URL", "https://api.pexels.com", log),
		SearchTimeoutSec:   validation.SafeInt("CONTENTPIPE_STOCK_SEARCH_TIMEOUT_SECONDS", 1, 600, 45, log),
		DownloadTimeoutSec: validation.SafeInt("CONTENTPIPE_STOCK_DOWNLOAD_TIMEOUT_SECONDS", 1, 1800, 300, log),
		MaxRetries:         validation.SafeInt("CONTENTPIPE_STOCK_MAX_RETRIES", 0, 10, 2, log),
	}
	cfg.CaptionAlign = captionalign.Config{
		APIKey:     validation.SafeString("CONTENTPIPE_CAPTIONALIGN_API_KEY", "", nil),
		BaseURL:    validation.SafeString("CONTENTPIPE_CAPTIONALIGN_BASE_URL", "https://api.gentle.example", log),
		TimeoutSec: validation.SafeInt("CONTENTPIPE_CAPTIONALIGN_TIMEOUT_SECONDS", 1, 600, 120, log),
		MaxRetries: validation.SafeInt("CONTENTPIPE_CAPTIONALIGN_MAX_RETRIES", 0, 10, 2, log),
	}
	cfg.Publish = publish.Config{
		BaseURL:       validation.SafeString("CONTENTPIPE_PUBLISH_BASE_URL", "https://upload.googleapis.com/upload/video", log),
		ClientID:      validation.SafeString("CONTENTPIPE_PUBLISH_CLIENT_ID", "", log),
		PrivateKeyPEM: validation.SafeString("CONTENTPIPE_PUBLISH_API_KEY", "", nil),
		TimeoutSec:    validation.SafeInt("CONTENTPIPE_PUBLISH_TIMEOUT_SECONDS", 1, 1800, 300, log),
		MaxRetries:    validation.SafeInt("CONTENTPIPE_PUBLISH_MAX_RETRIES", 0, 10, 2, log),
	}
	cfg.Trend = trendsource.Config{
		BaseURL:    validation.SafeString("CONTENTPIPE_TREND_BASE_URL", "https://oauth.reddit.com", log),
		Category:   validation.SafeString("CONTENTPIPE_TREND_CATEGORY", "", log),
		UserAgent:  validation.SafeString("CONTENTPIPE_TREND_USER_AGENT", "", log),
		TimeoutSec: validation.SafeInt("CONTENTPIPE_TREND_TIMEOUT_SECONDS", 1, 120, 10, log),
	}
	return cfg
}

// dataRootFromEnv resolves CONTENTPIPE_ROOT. A relative value is validated
// with SafePathUnder against the process working directory; an explicit
// absolute path is taken as-is (deployments put the root on a dedicated
// volume).
func dataRootFromEnv(log *logger.Logger) string {
	raw := validation.SafeString("CONTENTPIPE_ROOT", "", log)
	if raw == "" {
		return "./data"
	}
	if filepath.IsAbs(raw) {
		return raw
	}
	p, err := validation.SafePathUnder(".", raw)
	if err != nil {
		if log != nil {
			log.Warn("CONTENTPIPE_ROOT escapes the working directory, using default", "error", err)
		}
		return "./data"
	}
	return p
}

// poolSizeFromEnv overlays queue.DefaultPoolSize with any
// CONTENTPIPE_WORKERS_<STAGE> overrides.
func poolSizeFromEnv(log *logger.Logger) map[domain.StageName]int {
	out := make(map[domain.StageName]int, len(queue.DefaultPoolSize))
	for stage, def := range queue.DefaultPoolSize {
		key := "CONTENTPIPE_WORKERS_" + strings.ToUpper(string(stage))
		out[stage] = validation.SafeInt(key, 1, 64, def, log)
	}
	return out
}

// LocalStatePath is the single-file local state db, always sqlite.
func (c Config) LocalStatePath() string { return filepath.Join(c.DataRoot, "state", "items.db") }

// ArtifactRoot is <DataRoot>/artifacts.
func (c Config) ArtifactRoot() string { return c.DataRoot + "/artifacts" }

// LogDir is <DataRoot>/logs.
func (c Config) LogDir() string { return c.DataRoot + "/logs" }

// CredentialsDir is <DataRoot>/credentials, created owner-only (0700), never logged.
func (c Config) CredentialsDir() string { return c.DataRoot + "/credentials" }
