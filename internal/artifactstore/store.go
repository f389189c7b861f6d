package artifactstore

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/validation"
)

// Store roots the artifact tree at <root>/<kind>/<item_id>/... and owns the
// per-item lock registry that guards every finalize, scan, and GC sweep.
type Store struct {
	Root  string
	Locks *ItemLocks
}

func NewStore(root string) *Store {
	return &Store{Root: root, Locks: NewItemLocks()}
}

// DirFor returns the directory an artifact kind+item lives in, validated to
// resolve inside Root. itemID must be a single path segment.
func (s *Store) DirFor(kind domain.ArtifactKind, itemID string) (string, error) {
	if itemID == "" || itemID == "." || itemID == ".." || filepath.Base(itemID) != itemID {
		return "", fmt.Errorf("artifact item id %q is not a single path segment", itemID)
	}
	return validation.SafePathUnder(s.Root, filepath.Join(string(kind), itemID))
}

// FinalName builds <timestamp>-<hash-prefix>.<ext>.
func FinalName(hash string, at time.Time, ext string) string {
	prefix := hash
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	return fmt.Sprintf("%d-%s%s", at.UTC().UnixNano(), prefix, ext)
}
