package intent

import (
	"context"
	"testing"
)

func TestMemoryStore_SaveLoadClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if in, err := store.Load(ctx, "sess"); err != nil || in != nil {
		t.Fatalf("Expected empty slot, got %+v, %v", in, err)
	}

	if err := store.Save(ctx, "sess", "ORD1", "tok"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	in, err := store.Load(ctx, "sess")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if in == nil || in.OrderID != "ORD1" || in.AuthSnapshot != "tok" {
		t.Errorf("Unexpected intent: %+v", in)
	}
	if in.InitiatedAt.IsZero() {
		t.Error("Expected InitiatedAt to be recorded")
	}

	// Save overwrites the single slot.
	if err := store.Save(ctx, "sess", "ORD2", ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	in, _ = store.Load(ctx, "sess")
	if in.OrderID != "ORD2" {
		t.Errorf("Expected slot replaced with ORD2, got %s", in.OrderID)
	}

	if err := store.Clear(ctx, "sess"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if in, _ := store.Load(ctx, "sess"); in != nil {
		t.Errorf("Expected cleared slot, got %+v", in)
	}

	// Clearing an empty slot is fine.
	if err := store.Clear(ctx, "sess"); err != nil {
		t.Errorf("Clear on empty slot failed: %v", err)
	}
}

func TestMemoryStore_RestoreAuthIfDropped(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// No slot: current auth passes through.
	active, restored, err := store.RestoreAuthIfDropped(ctx, "sess", "live")
	if err != nil || restored || active != "live" {
		t.Errorf("Expected pass-through, got %q restored=%v err=%v", active, restored, err)
	}

	if err := store.Save(ctx, "sess", "ORD1", "snapshot"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Dropped auth: snapshot is reinstated.
	active, restored, err = store.RestoreAuthIfDropped(ctx, "sess", "")
	if err != nil {
		t.Fatalf("RestoreAuthIfDropped failed: %v", err)
	}
	if !restored || active != "snapshot" {
		t.Errorf("Expected snapshot restored, got %q restored=%v", active, restored)
	}

	// The snapshot is discarded after one repair attempt, the intent stays.
	in, _ := store.Load(ctx, "sess")
	if in == nil || in.OrderID != "ORD1" {
		t.Fatalf("Expected intent to survive restoration, got %+v", in)
	}
	if in.AuthSnapshot != "" {
		t.Errorf("Expected snapshot discarded, got %q", in.AuthSnapshot)
	}

	active, restored, _ = store.RestoreAuthIfDropped(ctx, "sess", "")
	if restored || active != "" {
		t.Errorf("Expected nothing to restore on second attempt, got %q restored=%v", active, restored)
	}
}

func TestMemoryStore_RestoreKeepsLiveAuth(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, "sess", "ORD1", "snapshot"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	active, restored, err := store.RestoreAuthIfDropped(ctx, "sess", "live")
	if err != nil {
		t.Fatalf("RestoreAuthIfDropped failed: %v", err)
	}
	if restored || active != "live" {
		t.Errorf("Expected live auth kept, got %q restored=%v", active, restored)
	}

	// The snapshot is discarded regardless of outcome.
	in, _ := store.Load(ctx, "sess")
	if in.AuthSnapshot != "" {
		t.Errorf("Expected snapshot discarded, got %q", in.AuthSnapshot)
	}
}
