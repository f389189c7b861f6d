package observability

import "github.com/shortforge/contentpipe/internal/platform/logger"

// StageLogger returns a logger scoped with the correlation fields every
// stage execution log line must carry: item_id, stage, and the
// current attempt count.
func StageLogger(base *logger.Logger, itemID, stage string, attempt int) *logger.Logger {
	return base.With("item_id", itemID, "stage", stage, "attempt", attempt)
}
