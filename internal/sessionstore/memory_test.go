package sessionstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fintalk-ai/fintalk/internal/sessionstore"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	store := sessionstore.NewMemoryStore(time.Hour)
	ctx := context.Background()

	snap := &sessionstore.Snapshot{ID: "7", Language: "Hindi"}
	if err := store.Create(ctx, snap); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if snap.Version != 1 {
		t.Errorf("Version after create = %d, want 1", snap.Version)
	}

	if err := store.Create(ctx, &sessionstore.Snapshot{ID: "7"}); !errors.Is(err, sessionstore.ErrAlreadyExists) {
		t.Errorf("duplicate Create error = %v, want ErrAlreadyExists", err)
	}

	got, err := store.Get(ctx, "7")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Language != "Hindi" {
		t.Errorf("Get returned %+v, want the stored snapshot", got)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %+v, %v, want nil, nil", missing, err)
	}
}

func TestMemoryStore_UpdateVersioning(t *testing.T) {
	t.Parallel()

	store := sessionstore.NewMemoryStore(time.Hour)
	ctx := context.Background()

	snap := &sessionstore.Snapshot{ID: "7"}
	if err := store.Create(ctx, snap); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	snap.Language = "Tamil"
	if err := store.Update(ctx, snap); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if snap.Version != 2 {
		t.Errorf("Version after update = %d, want 2", snap.Version)
	}

	stale := &sessionstore.Snapshot{ID: "7", Version: 1}
	if err := store.Update(ctx, stale); !errors.Is(err, sessionstore.ErrVersionConflict) {
		t.Errorf("stale Update error = %v, want ErrVersionConflict", err)
	}

	absent := &sessionstore.Snapshot{ID: "ghost", Version: 1}
	if err := store.Update(ctx, absent); !errors.Is(err, sessionstore.ErrNotFound) {
		t.Errorf("absent Update error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()

	store := sessionstore.NewMemoryStore(time.Hour)
	ctx := context.Background()

	if err := store.Create(ctx, &sessionstore.Snapshot{ID: "7"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Delete(ctx, "7"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, _ := store.Get(ctx, "7"); got != nil {
		t.Error("snapshot still present after delete")
	}

	// Deleting a missing id is not an error.
	if err := store.Delete(ctx, "7"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	t.Parallel()

	store := sessionstore.NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()

	if err := store.Create(ctx, &sessionstore.Snapshot{ID: "old"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	time.Sleep(25 * time.Millisecond)

	if err := store.Create(ctx, &sessionstore.Snapshot{ID: "fresh"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if removed := store.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if got, _ := store.Get(ctx, "old"); got != nil {
		t.Error("expired snapshot survived the sweep")
	}
	if got, _ := store.Get(ctx, "fresh"); got == nil {
		t.Error("fresh snapshot was swept")
	}
}
