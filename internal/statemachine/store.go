package statemachine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/shortforge/contentpipe/internal/domain"
)

// ItemRow is the local state store's persisted representation of an
// Item. Maps are carried as JSON columns.
type ItemRow struct {
	ItemID         string         `gorm:"primaryKey;column:item_id"`
	Source         string         `gorm:"column:source"`
	ConceptText    string         `gorm:"column:concept_text"`
	State          string         `gorm:"column:state"`
	StageAttempts  datatypes.JSON `gorm:"column:stage_attempts"`
	Artifacts      datatypes.JSON `gorm:"column:artifacts"`
	ErrorKind      string         `gorm:"column:error_kind"`
	ErrorMessage   string         `gorm:"column:error_message"`
	ErrorStage     string         `gorm:"column:error_stage"`
	ErrorAt        time.Time      `gorm:"column:error_at"`
	PublicationURL string         `gorm:"column:publication_url"`
	AfterTS        time.Time      `gorm:"column:after_ts"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (ItemRow) TableName() string { return "items" }

// Store is the single-writer local state database (state/items.db): one
// record per item, the durable side of the three-step commit.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&ItemRow{})
}

func toRow(it *domain.Item) (ItemRow, error) {
	attemptsJSON, err := json.Marshal(it.StageAttempts)
	if err != nil {
		return ItemRow{}, fmt.Errorf("marshal stage_attempts: %w", err)
	}
	artifactsJSON, err := json.Marshal(it.Artifacts)
	if err != nil {
		return ItemRow{}, fmt.Errorf("marshal artifacts: %w", err)
	}
	row := ItemRow{
		ItemID:         it.ItemID,
		Source:         string(it.Source),
		ConceptText:    it.ConceptText,
		State:          string(it.State),
		StageAttempts:  datatypes.JSON(attemptsJSON),
		Artifacts:      datatypes.JSON(artifactsJSON),
		PublicationURL: it.PublicationURL,
		AfterTS:        it.AfterTS,
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}
	if it.Error != nil {
		row.ErrorKind = it.Error.Kind
		row.ErrorMessage = it.Error.Message
		row.ErrorStage = it.Error.Stage
		row.ErrorAt = it.Error.Timestamp
	}
	return row, nil
}

func fromRow(row ItemRow) (*domain.Item, error) {
	it := &domain.Item{
		ItemID:         row.ItemID,
		Source:         domain.Source(row.Source),
		ConceptText:    row.ConceptText,
		State:          domain.State(row.State),
		PublicationURL: row.PublicationURL,
		AfterTS:        row.AfterTS,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	it.EnsureMaps()
	if len(row.StageAttempts) > 0 {
		if err := json.Unmarshal(row.StageAttempts, &it.StageAttempts); err != nil {
			return nil, fmt.Errorf("unmarshal stage_attempts: %w", err)
		}
	}
	if len(row.Artifacts) > 0 {
		if err := json.Unmarshal(row.Artifacts, &it.Artifacts); err != nil {
			return nil, fmt.Errorf("unmarshal artifacts: %w", err)
		}
	}
	if row.ErrorKind != "" {
		it.Error = &domain.ErrorInfo{
			Kind: row.ErrorKind, Message: row.ErrorMessage,
			Stage: row.ErrorStage, Timestamp: row.ErrorAt,
		}
	}
	return it, nil
}

// Save upserts the full Item record. This is the "local state" step of the
// three-step commit.
func (s *Store) Save(ctx context.Context, it *domain.Item) error {
	row, err := toRow(it)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

// Get loads one item by id.
func (s *Store) Get(ctx context.Context, itemID string) (*domain.Item, error) {
	var row ItemRow
	err := s.db.WithContext(ctx).Where("item_id = ?", itemID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return fromRow(row)
}

// All loads every locally known item, used by reconciliation and status
// reporting.
func (s *Store) All(ctx context.Context) ([]*domain.Item, error) {
	var rows []ItemRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	out := make([]*domain.Item, 0, len(rows))
	for _, row := range rows {
		it, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// Retryable returns items in a retryable_error state whose after_ts has
// elapsed.
func (s *Store) Retryable(ctx context.Context, now time.Time) ([]*domain.Item, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.Item
	for _, it := range all {
		if it.State.IsRetryable() && !it.AfterTS.After(now) {
			out = append(out, it)
		}
	}
	return out, nil
}
