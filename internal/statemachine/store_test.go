package statemachine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shortforge/contentpipe/internal/artifactstore"
	"github.com/shortforge/contentpipe/internal/dashboard"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/platform/logger"
)

func testDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), name)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(testDB(t, "items.db"))
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func testDashboard(t *testing.T) *dashboard.Adapter {
	t.Helper()
	d := dashboard.NewAdapter(testDB(t, "dashboard.db"))
	if err := d.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate dashboard: %v", err)
	}
	return d
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestStoreSaveGetRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	it := &domain.Item{
		ItemID:        "item-1",
		Source:        domain.SourceAIIdeation,
		ConceptText:   "Three Morning Habits",
		State:         domain.StateScripted,
		StageAttempts: map[string]int{"scripting": 2},
		Artifacts:     map[string]string{"script": "/tmp/script.txt"},
		Error: &domain.ErrorInfo{
			Kind: "transient", Message: "503", Stage: "scripting", Timestamp: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(ctx, it); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("item not found after save")
	}
	if got.State != domain.StateScripted {
		t.Fatalf("state: want=%s got=%s", domain.StateScripted, got.State)
	}
	if got.StageAttempts["scripting"] != 2 {
		t.Fatalf("attempts: want=2 got=%d", got.StageAttempts["scripting"])
	}
	if got.Artifacts["script"] != "/tmp/script.txt" {
		t.Fatalf("artifacts: got=%v", got.Artifacts)
	}
	if got.Error == nil || got.Error.Kind != "transient" {
		t.Fatalf("error info not persisted: %+v", got.Error)
	}
}

func TestStoreGetUnknownReturnsNil(t *testing.T) {
	s := testStore(t)
	got, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("want nil for unknown item, got=%+v", got)
	}
}

func TestStoreRetryable(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()

	due := &domain.Item{ItemID: "due", State: domain.RetryableError("narrating"), AfterTS: now.Add(-time.Minute)}
	notYet := &domain.Item{ItemID: "not-yet", State: domain.RetryableError("narrating"), AfterTS: now.Add(time.Hour)}
	healthy := &domain.Item{ItemID: "healthy", State: domain.StateScripted}
	for _, it := range []*domain.Item{due, notYet, healthy} {
		it.EnsureMaps()
		if err := s.Save(ctx, it); err != nil {
			t.Fatalf("save %s: %v", it.ItemID, err)
		}
	}

	got, err := s.Retryable(ctx, now)
	if err != nil {
		t.Fatalf("retryable: %v", err)
	}
	if len(got) != 1 || got[0].ItemID != "due" {
		t.Fatalf("retryable: want [due] got=%v", got)
	}
}

func TestCommitWritesLocalThenDashboard(t *testing.T) {
	s := testStore(t)
	d := testDashboard(t)
	ctx := context.Background()

	row, err := d.AppendItem(ctx, string(domain.SourceAIIdeation), "Three Morning Habits")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := d.ForceUpdateFields(ctx, row.ID, map[string]any{"status": string(dashboard.StatusApproved)}); err != nil {
		t.Fatalf("approve row: %v", err)
	}

	it := &domain.Item{ItemID: row.ID, State: domain.StateApproved}
	it.EnsureMaps()
	if err := s.Save(ctx, it); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := Commit(ctx, s, d, it, domain.StateScripting, nil, dashboard.StatusApproved); err != nil {
		t.Fatalf("commit: %v", err)
	}

	local, err := s.Get(ctx, row.ID)
	if err != nil || local == nil {
		t.Fatalf("get local: %v", err)
	}
	if local.State != domain.StateScripting {
		t.Fatalf("local state: want=scripting got=%s", local.State)
	}
	remote, err := d.GetItem(ctx, row.ID)
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if remote.Status != string(dashboard.StatusInProgress) {
		t.Fatalf("dashboard status: want=%s got=%s", dashboard.StatusInProgress, remote.Status)
	}
}

func TestCommitSurfacesStaleDashboard(t *testing.T) {
	s := testStore(t)
	d := testDashboard(t)
	ctx := context.Background()

	row, err := d.AppendItem(ctx, string(domain.SourceAIIdeation), "Stale Row")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	// Row is Pending Approval; committing with expected=Approved must fail
	// stale, while the local write has already happened.
	it := &domain.Item{ItemID: row.ID, State: domain.StateApproved}
	it.EnsureMaps()
	err = Commit(ctx, s, d, it, domain.StateScripting, nil, dashboard.StatusApproved)
	if !errors.Is(err, dashboard.ErrStale) {
		t.Fatalf("want ErrStale, got=%v", err)
	}
	local, err := s.Get(ctx, row.ID)
	if err != nil || local == nil {
		t.Fatalf("get local: %v", err)
	}
	if local.State != domain.StateScripting {
		t.Fatalf("local write precedes dashboard write: want=scripting got=%s", local.State)
	}
}

func TestCommitErrorSurfacesClassifiedKind(t *testing.T) {
	s := testStore(t)
	d := testDashboard(t)
	ctx := context.Background()

	row, err := d.AppendItem(ctx, string(domain.SourceAIIdeation), "Doomed Item")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := d.ForceUpdateFields(ctx, row.ID, map[string]any{"status": string(dashboard.StatusInProgress)}); err != nil {
		t.Fatalf("set status: %v", err)
	}
	it := &domain.Item{ItemID: row.ID, State: domain.StateScripting}
	it.EnsureMaps()
	if err := s.Save(ctx, it); err != nil {
		t.Fatalf("save: %v", err)
	}

	errInfo := domain.ErrorInfo{Kind: "client", Message: "400 invalid prompt", Stage: "scripting", Timestamp: time.Now()}
	if err := CommitError(ctx, s, d, it, errInfo, domain.Failed("scripting"), dashboard.StatusInProgress); err != nil {
		t.Fatalf("commit error: %v", err)
	}
	remote, err := d.GetItem(ctx, row.ID)
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if remote.Status != string(dashboard.StatusFailed) {
		t.Fatalf("dashboard status: want=Failed got=%s", remote.Status)
	}
	if remote.Error == "" {
		t.Fatalf("dashboard error column should carry the classified kind")
	}
	local, _ := s.Get(ctx, row.ID)
	if !local.State.IsFailed() {
		t.Fatalf("local state: want failed got=%s", local.State)
	}
}

func TestReconcileRepairsCrashWindow(t *testing.T) {
	// Crash between "local state updated" and "dashboard updated": the
	// local store says narrated with its narration artifact on disk, the
	// dashboard still says Approved. Reconcile must advance the dashboard.
	s := testStore(t)
	d := testDashboard(t)
	artStore := artifactstore.NewStore(t.TempDir())
	log := testLogger(t)
	ctx := context.Background()

	row, err := d.AppendItem(ctx, string(domain.SourceAIIdeation), "Crash Window")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := d.ForceUpdateFields(ctx, row.ID, map[string]any{"status": string(dashboard.StatusApproved)}); err != nil {
		t.Fatalf("approve row: %v", err)
	}

	acq, err := artStore.Acquire(domain.ArtifactNarration, row.ID, ".mp3")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	path, _, _, err := acq.WriteAndFinalize([]byte("audio bytes"))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	it := &domain.Item{
		ItemID:    row.ID,
		State:     domain.StateNarrated,
		Artifacts: map[string]string{string(domain.ArtifactNarration): path},
	}
	it.EnsureMaps()
	if err := s.Save(ctx, it); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := Reconcile(ctx, s, d, artStore, log); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	remote, err := d.GetItem(ctx, row.ID)
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if remote.Status != string(dashboard.StatusInProgress) {
		t.Fatalf("dashboard should agree with local narrated state: want=%s got=%s", dashboard.StatusInProgress, remote.Status)
	}
	local, _ := s.Get(ctx, row.ID)
	if local.State != domain.StateNarrated {
		t.Fatalf("local state must be untouched: got=%s", local.State)
	}
}

func TestReconcileDemotesLocalWhenArtifactsMissing(t *testing.T) {
	s := testStore(t)
	d := testDashboard(t)
	artStore := artifactstore.NewStore(t.TempDir())
	log := testLogger(t)
	ctx := context.Background()

	row, err := d.AppendItem(ctx, string(domain.SourceAIIdeation), "Phantom Progress")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := d.ForceUpdateFields(ctx, row.ID, map[string]any{"status": string(dashboard.StatusApproved)}); err != nil {
		t.Fatalf("approve row: %v", err)
	}

	it := &domain.Item{
		ItemID:    row.ID,
		State:     domain.StateNarrated,
		Artifacts: map[string]string{string(domain.ArtifactNarration): filepath.Join(artStore.Root, "narration", row.ID, "gone.mp3")},
	}
	it.EnsureMaps()
	if err := s.Save(ctx, it); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := Reconcile(ctx, s, d, artStore, log); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	local, _ := s.Get(ctx, row.ID)
	if local.State != domain.StateApproved {
		t.Fatalf("local claims progress its artifacts cannot back: want demotion to approved, got=%s", local.State)
	}
}
