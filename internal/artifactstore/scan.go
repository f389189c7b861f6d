package artifactstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shortforge/contentpipe/internal/domain"
)

// VerifyArtifact is the atomic existence-and-action primitive: it takes the
// item's lock, stats the recorded path, and compares the on-disk hash
// against the recorded one in a single critical section. Callers must never
// perform a naked os.Stat followed by a separate read.
func (s *Store) VerifyArtifact(itemID string, a domain.Artifact) (ok bool, err error) {
	err = s.Locks.WithLock(itemID, func() error {
		info, statErr := os.Stat(a.Path)
		if statErr != nil {
			ok = false
			return nil
		}
		if info.Size() != a.SizeBytes {
			ok = false
			return nil
		}
		content, readErr := os.ReadFile(a.Path)
		if readErr != nil {
			return fmt.Errorf("read artifact for verification: %w", readErr)
		}
		sum := sha256.Sum256(content)
		ok = hex.EncodeToString(sum[:]) == a.SHA256
		return nil
	})
	return ok, err
}

// ArtifactPresent reports, under the item's lock, whether a recorded
// artifact path exists as a regular, non-empty file inside the store root.
// Reconciliation uses this when only the path is known; full hash
// verification needs the recorded Artifact and goes through VerifyArtifact.
func (s *Store) ArtifactPresent(itemID, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rootAbs, err := filepath.Abs(s.Root)
	if err != nil {
		return false
	}
	if abs != rootAbs && !strings.HasPrefix(abs, rootAbs+string(os.PathSeparator)) {
		return false
	}
	present := false
	_ = s.Locks.WithLock(itemID, func() error {
		info, statErr := os.Stat(abs)
		present = statErr == nil && info.Mode().IsRegular() && info.Size() > 0
		return nil
	})
	return present
}

// RemoveArtifact deletes a superseded artifact file under the item's lock.
// Callers invoke it only after the replacing artifact has been durably
// committed; a path outside the store root or already gone is a no-op.
func (s *Store) RemoveArtifact(itemID, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rootAbs, err := filepath.Abs(s.Root)
	if err != nil {
		return err
	}
	if abs == rootAbs || !strings.HasPrefix(abs, rootAbs+string(os.PathSeparator)) {
		return fmt.Errorf("remove artifact: path %q outside store root", path)
	}
	return s.Locks.WithLock(itemID, func() error {
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
}

// ClearKind removes every finalized file for (kind, item) under the item's
// lock, returning how many were deleted. Clip sourcing uses it so a re-run
// supersedes the prior clip set rather than accreting onto it.
func (s *Store) ClearKind(kind domain.ArtifactKind, itemID string) (int, error) {
	removed := 0
	err := s.Locks.WithLock(itemID, func() error {
		dir, dirErr := s.DirFor(kind, itemID)
		if dirErr != nil {
			return dirErr
		}
		entries, readErr := os.ReadDir(dir)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				return nil
			}
			return readErr
		}
		for _, e := range entries {
			if e.IsDir() || len(e.Name()) > 0 && e.Name()[0] == '.' {
				continue
			}
			if rmErr := os.Remove(filepath.Join(dir, e.Name())); rmErr != nil {
				return rmErr
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// ListClips enumerates all stock_clip artifacts for an item under the
// item's lock, so the scan cannot race with a concurrent finalize.
func (s *Store) ListClips(itemID string) ([]string, error) {
	var out []string
	err := s.Locks.WithLock(itemID, func() error {
		dir, dirErr := s.DirFor(domain.ArtifactStockClip, itemID)
		if dirErr != nil {
			return dirErr
		}
		entries, readErr := os.ReadDir(dir)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				return nil
			}
			return readErr
		}
		for _, e := range entries {
			if e.IsDir() || len(e.Name()) > 0 && e.Name()[0] == '.' {
				continue
			}
			out = append(out, dir+string(os.PathSeparator)+e.Name())
		}
		return nil
	})
	return out, err
}
