package artifactstore

import (
	"os"
	"path/filepath"
	"time"

	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/platform/logger"
)

// GCCandidate is a terminal item past its retention window.
type GCCandidate struct {
	ItemID       string
	ReachedTerm  time.Time
}

// Sweep removes every artifact kind directory for items in candidates,
// under each item's lock so a concurrent reset cannot race the removal.
func (s *Store) Sweep(candidates []GCCandidate, retention time.Duration, log *logger.Logger) (removed int, err error) {
	now := time.Now()
	kinds := []domain.ArtifactKind{
		domain.ArtifactScript, domain.ArtifactNarration, domain.ArtifactStockClip,
		domain.ArtifactAssembledVideo, domain.ArtifactCaptionedVideo, domain.ArtifactMetadataJSON,
	}
	for _, c := range candidates {
		if now.Sub(c.ReachedTerm) < retention {
			continue
		}
		lockErr := s.Locks.WithLock(c.ItemID, func() error {
			for _, k := range kinds {
				dir := filepath.Join(s.Root, string(k), c.ItemID)
				if _, statErr := os.Stat(dir); statErr != nil {
					continue
				}
				if rmErr := os.RemoveAll(dir); rmErr != nil {
					return rmErr
				}
				removed++
			}
			return nil
		})
		if lockErr != nil {
			if log != nil {
				log.Warn("gc sweep failed for item", "item_id", c.ItemID, "error", lockErr)
			}
			err = lockErr
			continue
		}
	}
	return removed, err
}
