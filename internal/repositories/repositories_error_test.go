package repositories

import (
	"errors"
	"testing"

	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/shared"
)

func TestMatchRepositoryErrors(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			repo := NewMatchRepository(setupTestDB(t))

			if err := repo.Create(newTestMatch("Song", "Band", "", 0.9)); err == nil {
				t.Fatal("expected validation error for empty destination id")
			}
			if err := repo.Create(newTestMatch("Song", "Band", "1", 1.5)); err == nil {
				t.Fatal("expected validation error for score above 1")
			}
		})

		t.Run("DuplicateSourceKey", func(t *testing.T) {
			repo := NewMatchRepository(setupTestDB(t))

			if err := repo.Create(newTestMatch("Song", "Band", "1", 0.9)); err != nil {
				t.Fatalf("failed to create first match: %v", err)
			}

			err := repo.Create(newTestMatch("song", "BAND", "2", 0.9))
			if err == nil {
				t.Fatal("expected error when creating match with duplicate key")
			}
			if !isUniqueViolation(err) {
				t.Errorf("expected unique violation, got %v", err)
			}
		})
	})

	t.Run("NotFound errors", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))

		if _, err := repo.Get("nonexistent-id"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("Get: expected ErrRecordNotFound, got %v", err)
		}

		match := newTestMatch("Song", "Band", "1", 0.9)
		match.SetID("nonexistent-id")
		if err := repo.Update(match); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("Update: expected ErrRecordNotFound, got %v", err)
		}

		if err := repo.Delete("nonexistent-id"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("Delete: expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("closed database", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewMatchRepository(db)
		db.Close()

		if err := repo.Create(newTestMatch("Song", "Band", "1", 0.9)); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := repo.List(nil); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := repo.Clear(); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := NewMatchCacheAdapter(repo).Lookup(models.Track{Title: "Song", Artist: "Band"}); err == nil {
			t.Error("expected lookup error on closed database")
		}
	})
}

func TestImportRunRepositoryErrors(t *testing.T) {
	t.Run("ValidationError", func(t *testing.T) {
		repo := NewImportRunRepository(setupTestDB(t))

		if err := repo.Create(models.NewImportRun("", "tracks")); err == nil {
			t.Fatal("expected validation error for empty source file")
		}

		run := models.NewImportRun("t.csv", "tracks")
		run.SetStatus("paused")
		if err := repo.Create(run); err == nil {
			t.Fatal("expected validation error for unknown status")
		}
	})

	t.Run("NotFound errors", func(t *testing.T) {
		repo := NewImportRunRepository(setupTestDB(t))

		if _, err := repo.Get("nonexistent-id"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("Get: expected ErrRecordNotFound, got %v", err)
		}

		run := models.NewImportRun("t.csv", "tracks")
		run.SetID("nonexistent-id")
		if err := repo.Update(run); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("Update: expected ErrRecordNotFound, got %v", err)
		}

		if err := repo.Delete("nonexistent-id"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("Delete: expected ErrRecordNotFound, got %v", err)
		}
	})
}
