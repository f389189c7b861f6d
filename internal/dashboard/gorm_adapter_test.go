package dashboard

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testAdapter(t *testing.T) *Adapter {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "dashboard.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	a := NewAdapter(db)
	if err := a.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return a
}

func TestAppendItemAssignsIDAndDefaults(t *testing.T) {
	a := testAdapter(t)
	row, err := a.AppendItem(context.Background(), "ai_ideation", "Three Morning Habits")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if row.ID == "" {
		t.Fatalf("append must assign an id")
	}
	if row.Status != string(StatusPendingApproval) {
		t.Fatalf("status: want=%s got=%s", StatusPendingApproval, row.Status)
	}
	got, err := a.GetItem(context.Background(), row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Three Morning Habits" {
		t.Fatalf("title: got=%q", got.Title)
	}
}

func TestAppendItemRejectsDangerousTitle(t *testing.T) {
	a := testAdapter(t)
	if _, err := a.AppendItem(context.Background(), "ai_ideation", "<script>alert(1)</script>"); err == nil {
		t.Fatalf("expected rejection for script tag in title")
	}
	if _, err := a.AppendItem(context.Background(), "ai_ideation", ""); err == nil {
		t.Fatalf("expected rejection for empty title")
	}
}

func TestUpdateFieldsOptimisticConcurrency(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()
	row, err := a.AppendItem(ctx, "ai_ideation", "Optimistic Row")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	err = a.UpdateFields(ctx, row.ID, map[string]any{"status": string(StatusApproved)}, string(StatusPendingApproval))
	if err != nil {
		t.Fatalf("first update: %v", err)
	}

	// A second writer still expecting Pending Approval must observe stale.
	err = a.UpdateFields(ctx, row.ID, map[string]any{"status": string(StatusInProgress)}, string(StatusPendingApproval))
	if !errors.Is(err, ErrStale) {
		t.Fatalf("want ErrStale, got=%v", err)
	}

	got, err := a.GetItem(ctx, row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != string(StatusApproved) {
		t.Fatalf("stale write must not land: want=%s got=%s", StatusApproved, got.Status)
	}
}

func TestUpdateFieldsRejectsDangerousValue(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()
	row, err := a.AppendItem(ctx, "ai_ideation", "Safe Row")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	err = a.UpdateFields(ctx, row.ID, map[string]any{"script": "javascript:evil()"}, string(StatusPendingApproval))
	if err == nil {
		t.Fatalf("expected rejection for javascript: uri in field value")
	}
}

func TestUpdateFieldsStampsUpdatedAt(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()
	row, err := a.AppendItem(ctx, "ai_ideation", "Stamped Row")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	before := row.UpdatedAt
	time.Sleep(10 * time.Millisecond)
	if err := a.UpdateFields(ctx, row.ID, map[string]any{"script": "a script"}, string(StatusPendingApproval)); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := a.GetItem(ctx, row.ID)
	if !got.UpdatedAt.After(before) {
		t.Fatalf("updated_at not stamped: before=%v after=%v", before, got.UpdatedAt)
	}
}

func TestListItemsFiltersByStatusOldestFirst(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()
	first, err := a.AppendItem(ctx, "ai_ideation", "First")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := a.AppendItem(ctx, "ai_ideation", "Second")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := a.ForceUpdateFields(ctx, second.ID, map[string]any{"status": string(StatusApproved)}); err != nil {
		t.Fatalf("force update: %v", err)
	}

	pending, err := a.ListItems(ctx, Filter{Status: string(StatusPendingApproval)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != first.ID {
		t.Fatalf("pending filter: want [%s] got=%v", first.ID, pending)
	}

	all, err := a.ListItems(ctx, Filter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list all: want=2 got=%d", len(all))
	}
	if all[0].ID != first.ID {
		t.Fatalf("ordering: oldest updated_at first, want %s got %s", first.ID, all[0].ID)
	}
}
