package artifactstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shortforge/contentpipe/internal/domain"
)

// Acquisition is a scoped handle on a destination path: the caller writes
// to TempPath, then calls Finalize to atomically rename into place, or
// Abort (or lets the zero value of committed stand) to clean up the temp
// file. Exactly one of Finalize/Abort must run on every exit path.
type Acquisition struct {
	dir       string
	ext       string
	tempPath  string
	committed bool
}

// Acquire creates a same-directory temp file carrying a nonce, per the
// rename-into-place discipline.
func (s *Store) Acquire(kind domain.ArtifactKind, itemID, ext string) (*Acquisition, error) {
	dir, err := s.DirFor(kind, itemID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir artifact dir: %w", err)
	}
	nonce := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	tmp := filepath.Join(dir, ".tmp-"+hex.EncodeToString(nonce)+ext)
	return &Acquisition{dir: dir, ext: ext, tempPath: tmp}, nil
}

func (a *Acquisition) TempPath() string { return a.tempPath }

// WriteAndFinalize writes content to the temp file, fsyncs, computes its
// hash, and atomically renames into <timestamp>-<hash-prefix>.<ext>. If the
// rename target already exists (a concurrent writer won the race), the
// loser deletes its temp file and the two hashes are compared.
func (a *Acquisition) WriteAndFinalize(content []byte) (path, hash string, size int64, err error) {
	f, err := os.OpenFile(a.tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", "", 0, fmt.Errorf("create temp artifact: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(a.tempPath)
		return "", "", 0, fmt.Errorf("write temp artifact: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(a.tempPath)
		return "", "", 0, fmt.Errorf("fsync temp artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(a.tempPath)
		return "", "", 0, fmt.Errorf("close temp artifact: %w", err)
	}

	sum := sha256.Sum256(content)
	hashHex := hex.EncodeToString(sum[:])
	finalPath := filepath.Join(a.dir, FinalName(hashHex, time.Now(), a.ext))

	if err := os.Rename(a.tempPath, finalPath); err != nil {
		if os.IsExist(err) {
			os.Remove(a.tempPath)
			existing, readErr := os.ReadFile(finalPath)
			if readErr != nil {
				return "", "", 0, fmt.Errorf("read winner after rename collision: %w", readErr)
			}
			existingSum := sha256.Sum256(existing)
			if hex.EncodeToString(existingSum[:]) != hashHex {
				return "", "", 0, fmt.Errorf("rename collision with differing content at %s", finalPath)
			}
			a.committed = true
			return finalPath, hashHex, int64(len(existing)), nil
		}
		os.Remove(a.tempPath)
		return "", "", 0, fmt.Errorf("rename into place: %w", err)
	}
	a.committed = true
	return finalPath, hashHex, int64(len(content)), nil
}

// Abort removes the temp file if WriteAndFinalize never committed. Safe to
// call after a successful finalize (no-op).
func (a *Acquisition) Abort() {
	if a.committed {
		return
	}
	os.Remove(a.tempPath)
}
