package app

import (
	"path/filepath"
	"testing"

	"github.com/shortforge/contentpipe/internal/config"
	"github.com/shortforge/contentpipe/internal/domain"
)

func TestOpenDBRejectsUnknownDriver(t *testing.T) {
	if _, err := openDB("mysql", "whatever"); err == nil {
		t.Fatalf("unknown driver must be rejected, not sniffed from the DSN")
	}
}

func TestOpenDBSQLite(t *testing.T) {
	db, err := openDB(config.DriverSQLite, filepath.Join(t.TempDir(), "items.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	_ = sqlDB.Close()
}

func TestHasAll(t *testing.T) {
	it := &domain.Item{Artifacts: map[string]string{
		string(domain.ArtifactScript):    "/a/script.txt",
		string(domain.ArtifactNarration): "/a/audio.mp3",
	}}
	if !hasAll(it, nil) {
		t.Fatalf("empty requirement is vacuously satisfied")
	}
	if !hasAll(it, []domain.ArtifactKind{domain.ArtifactScript, domain.ArtifactNarration}) {
		t.Fatalf("present kinds should satisfy")
	}
	if hasAll(it, []domain.ArtifactKind{domain.ArtifactStockClip}) {
		t.Fatalf("missing kind must not satisfy")
	}
}
