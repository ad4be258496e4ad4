package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipguard/internal/errors"
	"clipguard/internal/fingerprint"
	"clipguard/internal/registry"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "blocklist.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(fp string) registry.Record {
	return registry.Record{
		Fingerprint: fingerprint.Fingerprint(fp),
		CreatedAt:   time.Now().UTC(),
		Origin:      registry.OriginManual,
	}
}

func TestAddAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := testRecord(strings.Repeat("10", 31) + "1")
	second := testRecord(strings.Repeat("01", 31) + "0")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	second.Origin = registry.OriginAutomatic

	for _, rec := range []registry.Record{first, second} {
		added, err := s.Add(ctx, rec)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if !added {
			t.Fatalf("Add(%q) reported duplicate on fresh store", rec.Fingerprint)
		}
	}

	records, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List returned %d records, want 2", len(records))
	}
	// Ordered by creation time.
	if records[0].Fingerprint != first.Fingerprint {
		t.Errorf("first listed record = %q, want oldest", records[0].Fingerprint)
	}
	if records[1].Origin != registry.OriginAutomatic {
		t.Errorf("origin = %q, want automatic", records[1].Origin)
	}
}

func TestAddDuplicateReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec := testRecord("101010")

	if added, err := s.Add(ctx, rec); err != nil || !added {
		t.Fatalf("first Add = %v, %v", added, err)
	}
	added, err := s.Add(ctx, rec)
	if err != nil {
		t.Fatalf("duplicate Add errored: %v", err)
	}
	if added {
		t.Error("duplicate Add should return false")
	}
}

func TestAddRejectsMalformedFingerprint(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Add(context.Background(), testRecord("10x01"))
	if !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Errorf("error code = %v, want INVALID_INPUT", errors.CodeOf(err))
	}
}

func TestRemove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.Add(ctx, testRecord("1100"))

	removed, err := s.Remove(ctx, "1100")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	removed, err = s.Remove(ctx, "1100")
	if err != nil {
		t.Fatalf("second Remove errored: %v", err)
	}
	if removed {
		t.Error("removing an absent fingerprint should return false")
	}
}

func TestClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.Add(ctx, testRecord("1100"))
	s.Add(ctx, testRecord("0011"))

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	records, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("List after Clear returned %d records", len(records))
	}
}

func TestSyncRegistryFollowsChanges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.Add(ctx, testRecord("111000"))

	reg := registry.New()
	if err := s.SyncRegistry(ctx, reg); err != nil {
		t.Fatalf("SyncRegistry: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("registry loaded %d records, want 1", reg.Len())
	}

	s.Add(ctx, testRecord("000111"))
	waitFor(t, func() bool { return reg.Len() == 2 })

	s.Remove(ctx, "111000")
	waitFor(t, func() bool { return reg.Len() == 1 })

	s.Clear(ctx)
	waitFor(t, func() bool { return reg.Len() == 0 })
}

// waitFor polls for an asynchronous notification to land.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocklist.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Add(context.Background(), testRecord("110011")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	records, err := reopened.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].Fingerprint != "110011" {
		t.Errorf("reopened store records = %+v", records)
	}
}
