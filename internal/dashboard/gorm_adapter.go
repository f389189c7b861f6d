package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shortforge/contentpipe/internal/validation"
)

// ErrStale is returned by UpdateFields when the row's current status no
// longer matches expectedStatus: another worker already moved the item on.
var ErrStale = errors.New("dashboard: stale update, row status no longer matches expected")

// Filter narrows ListItems to rows matching a status and/or an updated_at
// floor.
type Filter struct {
	Status        string
	UpdatedAfter  time.Time
}

// Adapter is the only component permitted to talk to the row store.
// It is a thin gorm wrapper: every field write is sanitized
// through Validation first, and update_fields uses the same
// WHERE-id-AND-status guarded-update idiom the ambient stack uses for job
// rows, rather than a SELECT ... FOR UPDATE.
type Adapter struct {
	db *gorm.DB
}

func NewAdapter(db *gorm.DB) *Adapter {
	return &Adapter{db: db}
}

// Migrate creates the dashboard_items table if it does not already exist.
// The dashboard is logically an external system; this call only exists so
// the sqlite/postgres backing store has the schema to begin with.
func (a *Adapter) Migrate(ctx context.Context) error {
	return a.db.WithContext(ctx).AutoMigrate(&Row{})
}

// ListItems returns rows matching filter, oldest updated_at first, for
// fair FIFO-within-stage discovery.
func (a *Adapter) ListItems(ctx context.Context, filter Filter) ([]Row, error) {
	q := a.db.WithContext(ctx).Model(&Row{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if !filter.UpdatedAfter.IsZero() {
		q = q.Where("updated_at >= ?", filter.UpdatedAfter)
	}
	var rows []Row
	if err := q.Order("updated_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return rows, nil
}

// AppendItem inserts a new row with a server-assigned id and returns it.
// title is checked through Validation (dangerous patterns, 1-500 runes)
// before the insert; source is stored as given.
func (a *Adapter) AppendItem(ctx context.Context, source, title string) (Row, error) {
	if err := validation.CheckDangerous("title", title); err != nil {
		return Row{}, fmt.Errorf("append item: %w", err)
	}
	if err := validation.CheckLength("title", title, 1, 500); err != nil {
		return Row{}, fmt.Errorf("append item: %w", err)
	}
	now := time.Now()
	row := Row{
		ID:        uuid.NewString(),
		Source:    source,
		Title:     title,
		Status:    string(StatusPendingApproval),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Row{}, fmt.Errorf("append item: %w", err)
	}
	return row, nil
}

// GetItem fetches a single row by id.
func (a *Adapter) GetItem(ctx context.Context, itemID string) (Row, error) {
	var row Row
	err := a.db.WithContext(ctx).Where("id = ?", itemID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Row{}, fmt.Errorf("get item %s: not found", itemID)
	}
	if err != nil {
		return Row{}, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return row, nil
}

// UpdateFields applies a sanitized set of column writes to itemID,
// conditioned on the row's current status still equaling expectedStatus.
// updated_at is always stamped. A zero affected-row count means the row
// moved under us and surfaces as ErrStale so the caller can re-read and
// decide whether to retry.
func (a *Adapter) UpdateFields(ctx context.Context, itemID string, fields map[string]any, expectedStatus string) error {
	sanitized := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		if s, ok := v.(string); ok {
			if err := validation.CheckDangerous(k, s); err != nil {
				return fmt.Errorf("update fields: %w", err)
			}
			sanitized[k] = s
			continue
		}
		sanitized[k] = v
	}
	sanitized["updated_at"] = time.Now()

	res := a.db.WithContext(ctx).Model(&Row{}).
		Where("id = ? AND status = ?", itemID, expectedStatus).
		Updates(sanitized)
	if res.Error != nil {
		return fmt.Errorf("update fields for %s: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// ForceUpdateFields writes fields unconditionally, bypassing the
// optimistic-concurrency check. Reserved for startup reconciliation
//, which runs single-threaded before any worker dispatch
// begins and therefore has no concurrent writer to race.
func (a *Adapter) ForceUpdateFields(ctx context.Context, itemID string, fields map[string]any) error {
	sanitized := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		if s, ok := v.(string); ok {
			if err := validation.CheckDangerous(k, s); err != nil {
				return fmt.Errorf("force update fields: %w", err)
			}
			sanitized[k] = s
			continue
		}
		sanitized[k] = v
	}
	sanitized["updated_at"] = time.Now()
	if err := a.db.WithContext(ctx).Model(&Row{}).Where("id = ?", itemID).Updates(sanitized).Error; err != nil {
		return fmt.Errorf("force update fields for %s: %w", itemID, err)
	}
	return nil
}
