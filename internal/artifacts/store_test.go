package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"edlstream/internal/segmenter"
	"edlstream/internal/services"
)

const testHash = "0123456789abcdef0123456789abcdef01234567"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), time.Second, nil)
}

func fabricateReadyArtifacts(t *testing.T, store *Store, hash string) {
	t.Helper()
	dir, err := store.EnsureDir(hash)
	if err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	for name, body := range map[string]string{
		segmenter.ManifestName: "#EXTM3U\n",
		segmenter.InitName:     "init",
		"seg-00000.m4s":        "media",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestStatusMissingForUnknownHash(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Status(testHash)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if record.Status != StatusMissing || record.EDLHash != testHash {
		t.Fatalf("record = %+v", record)
	}
}

func TestMarkBuildingPersistsAcrossStores(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root, time.Second, nil)
	if err := store.MarkBuilding(testHash); err != nil {
		t.Fatalf("MarkBuilding: %v", err)
	}

	// A second store over the same root sees the same record.
	other := NewStore(root, time.Second, nil)
	record, err := other.Status(testHash)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if record.Status != StatusBuilding {
		t.Fatalf("record = %+v", record)
	}
}

func TestMarkReadyRequiresVerifiedArtifacts(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.EnsureDir(testHash); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if err := store.MarkReady(testHash); !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}

	fabricateReadyArtifacts(t, store, testHash)
	if err := store.MarkReady(testHash); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	record, err := store.Status(testHash)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if record.Status != StatusReady {
		t.Fatalf("record = %+v", record)
	}
}

func TestStatusDemotesReadyWithBrokenArtifacts(t *testing.T) {
	store := newTestStore(t)
	fabricateReadyArtifacts(t, store, testHash)
	if err := store.MarkReady(testHash); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	if err := os.Remove(filepath.Join(store.Dir(testHash), segmenter.InitName)); err != nil {
		t.Fatalf("remove init: %v", err)
	}
	record, err := store.Status(testHash)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if record.Status != StatusMissing {
		t.Fatalf("broken ready build must report missing, got %+v", record)
	}
}

func TestMarkFailedKeepsDiagnostic(t *testing.T) {
	store := newTestStore(t)
	if err := store.MarkFailed(testHash, "ffmpeg extract: exit status 1: Invalid data"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	record, err := store.Status(testHash)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if record.Status != StatusFailed || record.Error == "" {
		t.Fatalf("record = %+v", record)
	}
}

func TestStatusTreatsCorruptRecordAsMissing(t *testing.T) {
	store := newTestStore(t)
	dir, _ := store.EnsureDir(testHash)
	if err := os.WriteFile(filepath.Join(dir, StatusFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	record, err := store.Status(testHash)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if record.Status != StatusMissing {
		t.Fatalf("record = %+v", record)
	}
}

func TestTryLeaseIsExclusivePerHash(t *testing.T) {
	store := newTestStore(t)
	lease, acquired, err := store.TryLease(testHash)
	if err != nil || !acquired {
		t.Fatalf("TryLease: acquired=%v err=%v", acquired, err)
	}
	defer lease.Release()

	// Same hash is held; a different hash is free.
	otherHash := "fedcba9876543210fedcba9876543210fedcba98"
	other, acquired, err := store.TryLease(otherHash)
	if err != nil || !acquired {
		t.Fatalf("TryLease other hash: acquired=%v err=%v", acquired, err)
	}
	defer other.Release()
}

func TestLeaseTimesOut(t *testing.T) {
	store := NewStore(t.TempDir(), 100*time.Millisecond, nil)
	held, acquired, err := store.TryLease(testHash)
	if err != nil || !acquired {
		t.Fatalf("TryLease: acquired=%v err=%v", acquired, err)
	}
	defer held.Release()

	// flock is per file descriptor, so contend from a second store handle
	// over the same root.
	contender := NewStore(store.Root(), 100*time.Millisecond, nil)
	_, err = contender.Lease(context.Background(), testHash)
	if err == nil {
		t.Fatal("expected lease acquisition to fail while held")
	}
}

func TestReleaseNilLease(t *testing.T) {
	var lease *Lease
	if err := lease.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}
