package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newTestMatch(title, artist, destID string, score float64) *models.Match {
	source := models.Track{Title: title, Artist: artist}
	dest := models.Track{ID: destID, Title: title, Artist: artist}
	return models.NewMatch(shared.NormalizeTrackKey(title, artist), source, dest, score, title+" "+artist)
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "matches")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "nonexistent"); err == nil {
		t.Error("expected error for table without sequence")
	}
}

func TestMatchRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))
		match := newTestMatch("Bohemian Rhapsody", "Queen", "77", 0.95)

		if err := repo.Create(match); err != nil {
			t.Fatalf("failed to create match: %v", err)
		}
		if match.ID() == "" {
			t.Fatal("match ID should be set after creation")
		}
		if match.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", match.Sequence())
		}

		got, err := repo.Get(match.ID())
		if err != nil {
			t.Fatalf("failed to get match: %v", err)
		}
		if got.SourceKey() != "bohemian rhapsody|queen" {
			t.Errorf("unexpected source key %q", got.SourceKey())
		}
		if got.DestID() != "77" || got.Score() != 0.95 {
			t.Errorf("unexpected destination %s / %.2f", got.DestID(), got.Score())
		}
		if got.CreatedAt().IsZero() {
			t.Error("expected created_at to round trip")
		}
	})

	t.Run("GetBySourceKey", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))
		if err := repo.Create(newTestMatch("Waterloo", "ABBA", "1", 0.9)); err != nil {
			t.Fatalf("failed to create match: %v", err)
		}

		got, err := repo.GetBySourceKey("waterloo|abba")
		if err != nil {
			t.Fatalf("failed to get match: %v", err)
		}
		if got.Dest().ID != "1" {
			t.Errorf("expected dest 1, got %s", got.Dest().ID)
		}

		if _, err := repo.GetBySourceKey("missing|key"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))
		match := newTestMatch("Song", "Band", "1", 0.6)
		if err := repo.Create(match); err != nil {
			t.Fatalf("failed to create match: %v", err)
		}

		match.SetDest(models.Track{ID: "2", Title: "Song", Artist: "Band"}, 0.9, "Song")
		if err := repo.Update(match); err != nil {
			t.Fatalf("failed to update match: %v", err)
		}

		got, err := repo.Get(match.ID())
		if err != nil {
			t.Fatalf("failed to get match: %v", err)
		}
		if got.DestID() != "2" || got.Query() != "Song" {
			t.Errorf("update not persisted: %s %q", got.DestID(), got.Query())
		}
	})

	t.Run("List Count and Clear", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))
		for _, m := range []*models.Match{
			newTestMatch("A", "X", "1", 0.55),
			newTestMatch("B", "X", "2", 0.85),
			newTestMatch("C", "Y", "2", 1.0),
		} {
			if err := repo.Create(m); err != nil {
				t.Fatalf("failed to create match: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list matches: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 matches, got %d", len(all))
		}
		if all[0].SourceTitle() != "C" {
			t.Errorf("expected newest first, got %s", all[0].SourceTitle())
		}

		byDest, _ := repo.List(map[string]any{"dest_id": "2"})
		if len(byDest) != 2 {
			t.Errorf("expected 2 matches for dest 2, got %d", len(byDest))
		}

		high, _ := repo.List(map[string]any{"min_score": 0.8, "limit": 1})
		if len(high) != 1 || high[0].SourceTitle() != "C" {
			t.Errorf("unexpected filtered list %v", high)
		}

		count, err := repo.Count()
		if err != nil || count != 3 {
			t.Errorf("expected count 3, got %d (%v)", count, err)
		}

		removed, err := repo.Clear()
		if err != nil {
			t.Fatalf("failed to clear matches: %v", err)
		}
		if removed != 3 {
			t.Errorf("expected 3 removed, got %d", removed)
		}
		if count, _ := repo.Count(); count != 0 {
			t.Errorf("expected empty cache, got %d", count)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))
		match := newTestMatch("Song", "Band", "1", 0.7)
		if err := repo.Create(match); err != nil {
			t.Fatalf("failed to create match: %v", err)
		}

		if err := repo.Delete(match.ID()); err != nil {
			t.Fatalf("failed to delete match: %v", err)
		}
		if _, err := repo.Get(match.ID()); err == nil {
			t.Error("expected error when getting deleted match")
		}
	})
}

func TestMatchCacheAdapter(t *testing.T) {
	t.Run("miss then hit", func(t *testing.T) {
		cache := NewMatchCacheAdapter(NewMatchRepository(setupTestDB(t)))
		source := models.Track{Title: "Under  Pressure", Artist: "Queen, David Bowie"}

		got, err := cache.Lookup(source)
		if err != nil || got != nil {
			t.Fatalf("expected miss, got %v (%v)", got, err)
		}

		dest := models.Track{ID: "900", Title: "Under Pressure", Artist: "Queen"}
		if err := cache.Store(source, dest, 0.87, `"under pressure" "queen"`); err != nil {
			t.Fatalf("failed to store match: %v", err)
		}

		got, err = cache.Lookup(models.Track{Title: "under pressure", Artist: "QUEEN, David Bowie"})
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if got == nil || got.DestID() != "900" {
			t.Errorf("expected cached dest 900, got %v", got)
		}
	})

	t.Run("duplicate store is ignored", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))
		cache := NewMatchCacheAdapter(repo)
		source := models.Track{Title: "Song", Artist: "Band"}

		if err := cache.Store(source, models.Track{ID: "1"}, 0.9, "q"); err != nil {
			t.Fatalf("first store failed: %v", err)
		}
		if err := cache.Store(source, models.Track{ID: "2"}, 0.6, "q"); err != nil {
			t.Fatalf("duplicate store should be ignored, got %v", err)
		}

		got, _ := cache.Lookup(source)
		if got == nil || got.DestID() != "1" {
			t.Errorf("expected first entry to win, got %v", got)
		}
	})

	t.Run("invalid match", func(t *testing.T) {
		cache := NewMatchCacheAdapter(NewMatchRepository(setupTestDB(t)))
		if err := cache.Store(models.Track{Title: "Song", Artist: "Band"}, models.Track{}, 0.9, "q"); err == nil {
			t.Error("expected validation error for empty destination id")
		}
	})
}

func TestImportRunRepository(t *testing.T) {
	t.Run("lifecycle", func(t *testing.T) {
		repo := NewImportRunRepository(setupTestDB(t))
		run := models.NewImportRun("exports/spotify_tracks_20240101_000000.csv", "tracks")

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunPending || got.StartedAt() != nil {
			t.Errorf("expected pending run without start time, got %s %v", got.Status(), got.StartedAt())
		}

		run.Start()
		run.SetCounts(10, 8, 2)
		run.SetFailuresFile("exports/tidal_import_failed_20240101_000001.csv")
		run.Finish(nil)
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err = repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunCompleted {
			t.Errorf("expected completed, got %s", got.Status())
		}
		if got.Total() != 10 || got.Imported() != 8 || got.Failed() != 2 {
			t.Errorf("unexpected counts %d/%d/%d", got.Total(), got.Imported(), got.Failed())
		}
		if got.StartedAt() == nil || got.CompletedAt() == nil {
			t.Error("expected timestamps to round trip")
		}
		if got.FailuresFile() == "" {
			t.Error("expected failures file to round trip")
		}
	})

	t.Run("List filters", func(t *testing.T) {
		repo := NewImportRunRepository(setupTestDB(t))

		failed := models.NewImportRun("a.csv", "albums")
		failed.Start()
		failed.Finish(errors.New("boom"))

		for _, run := range []*models.ImportRun{
			models.NewImportRun("t.csv", "tracks"),
			failed,
			models.NewImportRun("r.csv", "artists"),
		} {
			if err := repo.Create(run); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 || all[0].SourceFile() != "r.csv" {
			t.Errorf("expected 3 runs newest first, got %d", len(all))
		}

		byStatus, _ := repo.List(map[string]any{"status": models.RunFailed})
		if len(byStatus) != 1 || byStatus[0].ErrorMessage() != "boom" {
			t.Errorf("unexpected failed runs %v", byStatus)
		}

		byKind, _ := repo.List(map[string]any{"kind": "tracks"})
		if len(byKind) != 1 {
			t.Errorf("expected 1 tracks run, got %d", len(byKind))
		}

		limited, _ := repo.List(map[string]any{"limit": 2})
		if len(limited) != 2 {
			t.Errorf("expected 2 runs, got %d", len(limited))
		}
	})
}
