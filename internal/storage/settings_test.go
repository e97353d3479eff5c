package storage

import (
	"context"
	"errors"
	"testing"
)

func TestSettingsRepository_SetAndGet(t *testing.T) {
	repo := newTestDB(t).Settings()
	ctx := context.Background()

	if err := repo.Set(ctx, "activeDeck", "Omnath Lands"); err != nil {
		t.Fatalf("Failed to set string value: %v", err)
	}

	var active string
	if err := repo.GetTyped(ctx, "activeDeck", &active); err != nil {
		t.Fatalf("Failed to get string value: %v", err)
	}
	if active != "Omnath Lands" {
		t.Errorf("Expected 'Omnath Lands', got '%s'", active)
	}

	raw, err := repo.Get(ctx, "activeDeck")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if raw != `"Omnath Lands"` {
		t.Errorf("raw value = %s, want JSON string", raw)
	}
}

func TestSettingsRepository_Overwrite(t *testing.T) {
	repo := newTestDB(t).Settings()
	ctx := context.Background()

	for _, v := range []int{1, 2, 3} {
		if err := repo.Set(ctx, "count", v); err != nil {
			t.Fatalf("Set(%d) error = %v", v, err)
		}
	}

	var got int
	if err := repo.GetTyped(ctx, "count", &got); err != nil {
		t.Fatalf("GetTyped() error = %v", err)
	}
	if got != 3 {
		t.Errorf("got %d, want 3", got)
	}
}

func TestSettingsRepository_NotFound(t *testing.T) {
	repo := newTestDB(t).Settings()

	var v string
	err := repo.GetTyped(context.Background(), "missing", &v)
	if err == nil {
		t.Fatal("expected error for missing key")
	}
	if !errors.Is(err, ErrSettingNotFound) {
		t.Errorf("expected ErrSettingNotFound, got %v", err)
	}
}

func TestSettingsRepository_Delete(t *testing.T) {
	repo := newTestDB(t).Settings()
	ctx := context.Background()

	if err := repo.Set(ctx, "activeDeck", "Zur"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Set(ctx, "autoVersion", true); err != nil {
		t.Fatal(err)
	}

	if err := repo.Delete(ctx, "activeDeck"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "activeDeck"); !errors.Is(err, ErrSettingNotFound) {
		t.Errorf("after delete Get() = %v", err)
	}
	var auto bool
	if err := repo.GetTyped(ctx, "autoVersion", &auto); err != nil || !auto {
		t.Errorf("other key after delete = %v, %v", auto, err)
	}
}
