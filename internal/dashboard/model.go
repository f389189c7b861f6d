// Package dashboard is the only component that talks to the external row
// store: list/append/update_fields/get_item with optimistic concurrency on
// status.
package dashboard

import "time"

// Status is the dashboard's own enum, distinct from the internal item
// State: it is the coarse view an operator sees.
type Status string

const (
	StatusPendingApproval Status = "Pending Approval"
	StatusApproved        Status = "Approved"
	StatusInProgress      Status = "In Progress"
	StatusCompleted       Status = "Completed"
	StatusFailed          Status = "Failed"
)

// Row mirrors the external dashboard row schema exactly: id, source,
// title, status, script, audio_path, video_path, published_url, error,
// created_at, updated_at.
type Row struct {
	ID            string `gorm:"primaryKey;column:id"`
	Source        string `gorm:"column:source"`
	Title         string `gorm:"column:title"`
	Status        string `gorm:"column:status"`
	Script        string `gorm:"column:script"`
	AudioPath     string `gorm:"column:audio_path"`
	VideoPath     string `gorm:"column:video_path"`
	PublishedURL  string `gorm:"column:published_url"`
	Error         string `gorm:"column:error"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (Row) TableName() string { return "dashboard_items" }
