package config

import (
	"testing"
	"time"

	"github.com/shortforge/contentpipe/internal/domain"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv(nil)
	if cfg.DataRoot != "./data" {
		t.Fatalf("data root: want=./data got=%q", cfg.DataRoot)
	}
	if cfg.DBDriver != DriverSQLite {
		t.Fatalf("db driver: want=sqlite got=%q", cfg.DBDriver)
	}
	if cfg.DBDSN != "data/state/dashboard.db" {
		t.Fatalf("db dsn: got=%q", cfg.DBDSN)
	}
	if cfg.TickInterval != 5*time.Second {
		t.Fatalf("discovery interval: want=5s got=%v", cfg.TickInterval)
	}
	if cfg.GCRetention != 7*24*time.Hour {
		t.Fatalf("retention: want=168h got=%v", cfg.GCRetention)
	}
	if cfg.DrainDeadline != 120*time.Second {
		t.Fatalf("drain deadline: want=120s got=%v", cfg.DrainDeadline)
	}
	if cfg.ClipsPerItem != 3 {
		t.Fatalf("clips per item: want=3 got=%d", cfg.ClipsPerItem)
	}
	if cfg.PublishCategoryID != 22 {
		t.Fatalf("publish category: want=22 got=%d", cfg.PublishCategoryID)
	}
	if cfg.LocalStatePath() != "data/state/items.db" {
		t.Fatalf("local state path: got=%q", cfg.LocalStatePath())
	}
	if cfg.ArtifactRoot() != "./data/artifacts" {
		t.Fatalf("artifact root: got=%q", cfg.ArtifactRoot())
	}
	if cfg.TextGen.BaseURL == "" || cfg.TTS.TimeoutSec != 120 || cfg.Stock.DownloadTimeoutSec != 300 {
		t.Fatalf("collaborator defaults not populated: %+v %+v %+v", cfg.TextGen, cfg.TTS, cfg.Stock)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CONTENTPIPE_ROOT", "/var/lib/contentpipe")
	t.Setenv("CONTENTPIPE_RETENTION_DAYS", "14")
	t.Setenv("CONTENTPIPE_DISCOVERY_INTERVAL_SECONDS", "30")
	t.Setenv("CONTENTPIPE_MADE_FOR_KIDS", "true")
	t.Setenv("CONTENTPIPE_DB_DRIVER", "postgres")
	t.Setenv("CONTENTPIPE_DB_DSN", "host=localhost user=pipe dbname=dashboard")
	t.Setenv("CONTENTPIPE_TEXTGEN_API_KEY", "sk-test")
	cfg := FromEnv(nil)
	if cfg.DataRoot != "/var/lib/contentpipe" {
		t.Fatalf("root override: got=%q", cfg.DataRoot)
	}
	if cfg.GCRetention != 14*24*time.Hour {
		t.Fatalf("retention override: got=%v", cfg.GCRetention)
	}
	if cfg.TickInterval != 30*time.Second {
		t.Fatalf("discovery interval override: got=%v", cfg.TickInterval)
	}
	if !cfg.PublishMadeForKids {
		t.Fatalf("made-for-kids override not applied")
	}
	if cfg.DBDriver != DriverPostgres {
		t.Fatalf("db driver override: got=%q", cfg.DBDriver)
	}
	if cfg.DBDSN != "host=localhost user=pipe dbname=dashboard" {
		t.Fatalf("db dsn override: got=%q", cfg.DBDSN)
	}
	if cfg.LocalStatePath() != "/var/lib/contentpipe/state/items.db" {
		t.Fatalf("local state path: got=%q", cfg.LocalStatePath())
	}
	if cfg.TextGen.APIKey != "sk-test" {
		t.Fatalf("textgen credential not read from CONTENTPIPE_TEXTGEN_API_KEY")
	}
}

func TestFromEnvMalformedFallsBack(t *testing.T) {
	t.Setenv("CONTENTPIPE_RETENTION_DAYS", "soon")
	t.Setenv("CONTENTPIPE_LOG_MODE", "verbose")
	t.Setenv("CONTENTPIPE_DB_DRIVER", "mysql")
	cfg := FromEnv(nil)
	if cfg.GCRetention != 7*24*time.Hour {
		t.Fatalf("malformed retention must fall back: got=%v", cfg.GCRetention)
	}
	if cfg.LogMode != "dev" {
		t.Fatalf("unknown log mode must fall back: got=%q", cfg.LogMode)
	}
	if cfg.DBDriver != DriverSQLite {
		t.Fatalf("unknown db driver must fall back to sqlite: got=%q", cfg.DBDriver)
	}
}

func TestFromEnvEmptyDSNForcesSQLite(t *testing.T) {
	t.Setenv("CONTENTPIPE_DB_DRIVER", "postgres")
	cfg := FromEnv(nil)
	if cfg.DBDriver != DriverSQLite {
		t.Fatalf("postgres without a DSN must fall back to the sqlite file: got=%q", cfg.DBDriver)
	}
	if cfg.DBDSN != "data/state/dashboard.db" {
		t.Fatalf("fallback dsn: got=%q", cfg.DBDSN)
	}
}

func TestWorkersOverride(t *testing.T) {
	t.Setenv("CONTENTPIPE_WORKERS_SCRIPTING", "8")
	t.Setenv("CONTENTPIPE_WORKERS_ASSEMBLING", "200")
	cfg := FromEnv(nil)
	if cfg.PoolSize[domain.StageScripting] != 8 {
		t.Fatalf("scripting workers override: got=%d", cfg.PoolSize[domain.StageScripting])
	}
	if cfg.PoolSize[domain.StageAssembling] != 64 {
		t.Fatalf("workers override must clamp to 64: got=%d", cfg.PoolSize[domain.StageAssembling])
	}
	if cfg.PoolSize[domain.StageNarrating] != 2 {
		t.Fatalf("unset stage keeps default: got=%d", cfg.PoolSize[domain.StageNarrating])
	}
}
