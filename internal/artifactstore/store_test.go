package artifactstore

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shortforge/contentpipe/internal/domain"
)

func TestWriteAndFinalizeLeavesNoTempFile(t *testing.T) {
	s := NewStore(t.TempDir())
	acq, err := s.Acquire(domain.ArtifactScript, "item-1", ".txt")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	content := []byte("a finalized script")
	path, hash, size, err := acq.WriteAndFinalize(content)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if size != int64(len(content)) {
		t.Fatalf("size: want=%d got=%d", len(content), size)
	}
	sum := sha256.Sum256(content)
	if hash != hex.EncodeToString(sum[:]) {
		t.Fatalf("hash mismatch")
	}
	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read final file: %v", err)
	}
	if string(onDisk) != string(content) {
		t.Fatalf("content mismatch")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("temp file %q left behind after finalize", e.Name())
		}
	}
}

func TestAbortRemovesTemp(t *testing.T) {
	s := NewStore(t.TempDir())
	acq, err := s.Acquire(domain.ArtifactNarration, "item-1", ".mp3")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := os.WriteFile(acq.TempPath(), []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	acq.Abort()
	if _, err := os.Stat(acq.TempPath()); !os.IsNotExist(err) {
		t.Fatalf("temp file should be removed by Abort")
	}
}

func TestAbortAfterFinalizeKeepsArtifact(t *testing.T) {
	s := NewStore(t.TempDir())
	acq, err := s.Acquire(domain.ArtifactScript, "item-1", ".txt")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	path, _, _, err := acq.WriteAndFinalize([]byte("keep me"))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	acq.Abort()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("artifact removed by post-finalize Abort: %v", err)
	}
}

func TestVerifyArtifact(t *testing.T) {
	s := NewStore(t.TempDir())
	acq, err := s.Acquire(domain.ArtifactScript, "item-1", ".txt")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	content := []byte("verify me")
	path, hash, size, err := acq.WriteAndFinalize(content)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	a := domain.Artifact{ItemID: "item-1", Kind: domain.ArtifactScript, Path: path, SizeBytes: size, SHA256: hash}
	ok, err := s.VerifyArtifact("item-1", a)
	if err != nil || !ok {
		t.Fatalf("verify genuine artifact: ok=%v err=%v", ok, err)
	}

	a.SHA256 = strings.Repeat("0", 64)
	ok, err = s.VerifyArtifact("item-1", a)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("verify must fail on hash mismatch")
	}

	a.Path = filepath.Join(s.Root, "script", "item-1", "missing.txt")
	ok, _ = s.VerifyArtifact("item-1", a)
	if ok {
		t.Fatalf("verify must fail on missing file")
	}
}

func TestListClipsSkipsTempAndDirs(t *testing.T) {
	s := NewStore(t.TempDir())
	for i := 0; i < 3; i++ {
		acq, err := s.Acquire(domain.ArtifactStockClip, "item-1", ".mp4")
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if _, _, _, err := acq.WriteAndFinalize([]byte{byte(i), 1, 2, 3}); err != nil {
			t.Fatalf("finalize: %v", err)
		}
	}
	// A straggling temp file must not appear in the scan.
	straggler, err := s.Acquire(domain.ArtifactStockClip, "item-1", ".mp4")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := os.WriteFile(straggler.TempPath(), []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}

	clips, err := s.ListClips("item-1")
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	if len(clips) != 3 {
		t.Fatalf("clips: want=3 got=%d (%v)", len(clips), clips)
	}

	none, err := s.ListClips("item-with-no-clips")
	if err != nil {
		t.Fatalf("list clips for unknown item: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("unknown item: want=0 clips got=%d", len(none))
	}
}

func TestDirForRejectsTraversal(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.DirFor(domain.ArtifactScript, "../escape"); err == nil {
		t.Fatalf("expected rejection for traversal item id")
	}
}

func TestSweepHonorsRetention(t *testing.T) {
	s := NewStore(t.TempDir())
	acq, err := s.Acquire(domain.ArtifactScript, "old-item", ".txt")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, _, _, err := acq.WriteAndFinalize([]byte("old")); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	acq2, err := s.Acquire(domain.ArtifactScript, "fresh-item", ".txt")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, _, _, err := acq2.WriteAndFinalize([]byte("fresh")); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	retention := 24 * time.Hour
	candidates := []GCCandidate{
		{ItemID: "old-item", ReachedTerm: time.Now().Add(-48 * time.Hour)},
		{ItemID: "fresh-item", ReachedTerm: time.Now().Add(-time.Hour)},
	}
	removed, err := s.Sweep(candidates, retention, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed: want=1 got=%d", removed)
	}
	if _, err := os.Stat(filepath.Join(s.Root, "script", "old-item")); !os.IsNotExist(err) {
		t.Fatalf("old item's artifact dir should be gone")
	}
	if _, err := os.Stat(filepath.Join(s.Root, "script", "fresh-item")); err != nil {
		t.Fatalf("fresh item's artifact dir should survive: %v", err)
	}
}

func TestWithLockSerializes(t *testing.T) {
	locks := NewItemLocks()
	inSection := false
	done := make(chan struct{})
	release := locks.Lock("item-1")
	go func() {
		locks.WithLock("item-1", func() error {
			inSection = true
			return nil
		})
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	if inSection {
		t.Fatalf("second holder entered the critical section while lock held")
	}
	release()
	<-done
	if !inSection {
		t.Fatalf("second holder never ran after release")
	}
}

func TestRemoveArtifactDeletesInsideRootOnly(t *testing.T) {
	s := NewStore(t.TempDir())
	acq, err := s.Acquire(domain.ArtifactScript, "item-1", ".txt")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	path, _, _, err := acq.WriteAndFinalize([]byte("superseded"))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := s.RemoveArtifact("item-1", path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("artifact should be gone")
	}
	// Removing again is a no-op, not an error.
	if err := s.RemoveArtifact("item-1", path); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	outside := filepath.Join(t.TempDir(), "victim.txt")
	if err := os.WriteFile(outside, []byte("keep"), 0o644); err != nil {
		t.Fatalf("write outside file: %v", err)
	}
	if err := s.RemoveArtifact("item-1", outside); err == nil {
		t.Fatalf("path outside store root must be refused")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("outside file must survive: %v", err)
	}
}

func TestClearKindRemovesFinalizedSet(t *testing.T) {
	s := NewStore(t.TempDir())
	for i := 0; i < 3; i++ {
		acq, err := s.Acquire(domain.ArtifactStockClip, "item-1", ".mp4")
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if _, _, _, err := acq.WriteAndFinalize([]byte{byte(i), 9}); err != nil {
			t.Fatalf("finalize: %v", err)
		}
	}
	removed, err := s.ClearKind(domain.ArtifactStockClip, "item-1")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed: want=3 got=%d", removed)
	}
	clips, err := s.ListClips("item-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(clips) != 0 {
		t.Fatalf("clips should be gone, got=%v", clips)
	}
	// An item with nothing to clear is a no-op.
	if n, err := s.ClearKind(domain.ArtifactStockClip, "item-2"); err != nil || n != 0 {
		t.Fatalf("empty clear: n=%d err=%v", n, err)
	}
}
