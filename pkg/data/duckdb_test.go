package data

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	repo, err := OpenRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestSaveAndGetManga(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	manga := &Manga{
		SourceKey:   "mangadex",
		Key:         "test-manga-1",
		Title:       "Test Manga",
		Description: "A test manga description",
		CoverURL:    "https://example.com/cover.jpg",
		Status:      "completed",
	}

	if err := repo.SaveManga(ctx, manga); err != nil {
		t.Fatalf("Failed to save manga: %v", err)
	}

	retrieved, err := repo.GetManga(ctx, "mangadex", "test-manga-1")
	if err != nil {
		t.Fatalf("Failed to get manga: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Expected manga to be found")
	}
	assert.Equal(t, *manga, *retrieved)

	inLibrary, err := repo.HasLibraryManga(ctx, "mangadex", "test-manga-1")
	require.NoError(t, err)
	assert.True(t, inLibrary)
}

func TestGetNonExistentManga(t *testing.T) {
	repo := setupTestDB(t)

	manga, err := repo.GetManga(context.Background(), "mangadex", "non-existent")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if manga != nil {
		t.Error("Expected manga to be nil for non-existent key")
	}
}

func TestSaveMangaUpsert(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	manga := &Manga{SourceKey: "test", Key: "manga-1", Title: "Original Name", Status: "ongoing"}
	require.NoError(t, repo.SaveManga(ctx, manga))

	manga.Title = "Updated Name"
	manga.Status = "completed"
	require.NoError(t, repo.SaveManga(ctx, manga))

	retrieved, err := repo.GetManga(ctx, "test", "manga-1")
	require.NoError(t, err)
	assert.Equal(t, "Updated Name", retrieved.Title)
	assert.Equal(t, "completed", retrieved.Status)

	mangas, err := repo.ListMangas(ctx)
	require.NoError(t, err)
	assert.Len(t, mangas, 1)
}

func TestListMangas(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	mangas, err := repo.ListMangas(ctx)
	require.NoError(t, err)
	assert.Empty(t, mangas)

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, repo.SaveManga(ctx, &Manga{SourceKey: "mangadex", Key: key, Title: key + " Manga"}))
	}

	mangas, err = repo.ListMangas(ctx)
	require.NoError(t, err)
	assert.Len(t, mangas, 3)
}

func TestSetAndGetChapters(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	uploaded := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	chapters := []Chapter{
		{
			SourceKey: "s", MangaKey: "m", Key: "ch-2",
			Number: float(2), Volume: float(1), Title: "Two", Uploaded: &uploaded,
			Scanlators: []string{"group a", "group b"}, Language: "en", SourceOrder: 0,
		},
		{
			SourceKey: "s", MangaKey: "m", Key: "ch-1",
			Number: float(1), Language: "en", Locked: true, SourceOrder: 1,
		},
	}

	added, err := repo.SetChapters(ctx, "s", "m", chapters)
	require.NoError(t, err)
	assert.Len(t, added, 2)

	retrieved, err := repo.GetChapters(ctx, "s", "m")
	require.NoError(t, err)
	require.Len(t, retrieved, 2)

	assert.Equal(t, "ch-2", retrieved[0].Key)
	assert.Equal(t, 2.0, *retrieved[0].Number)
	assert.Equal(t, 1.0, *retrieved[0].Volume)
	assert.Equal(t, []string{"group a", "group b"}, retrieved[0].Scanlators)
	require.NotNil(t, retrieved[0].Uploaded)
	assert.True(t, uploaded.Equal(*retrieved[0].Uploaded))

	assert.Equal(t, "ch-1", retrieved[1].Key)
	assert.Nil(t, retrieved[1].Volume)
	assert.Nil(t, retrieved[1].Uploaded)
	assert.True(t, retrieved[1].Locked)
}

func TestSetChaptersReplacesSet(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, err := repo.SetChapters(ctx, "s", "m", []Chapter{{Key: "a"}, {Key: "b", SourceOrder: 1}})
	require.NoError(t, err)

	added, err := repo.SetChapters(ctx, "s", "m", []Chapter{{Key: "c"}, {Key: "a", SourceOrder: 1}})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "c", added[0].Key)

	retrieved, err := repo.GetChapters(ctx, "s", "m")
	require.NoError(t, err)
	require.Len(t, retrieved, 2)
	assert.Equal(t, "c", retrieved[0].Key)
	assert.Equal(t, "a", retrieved[1].Key)
}

func TestReadingHistory(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	t.Run("add marks completed", func(t *testing.T) {
		require.NoError(t, repo.AddHistory(ctx, "s", "m", []string{"a", "b"}, 100))

		history, err := repo.GetReadingHistory(ctx, "s", "m")
		require.NoError(t, err)
		assert.Equal(t, HistoryEntry{Page: PageCompleted, Timestamp: 100}, history["a"])
		assert.Equal(t, HistoryEntry{Page: PageCompleted, Timestamp: 100}, history["b"])
	})

	t.Run("set progress keeps completed", func(t *testing.T) {
		require.NoError(t, repo.SetHistory(ctx, ChapterKey{"s", "m", "a"}, 5, 200))
		require.NoError(t, repo.SetHistory(ctx, ChapterKey{"s", "m", "c"}, 7, 300))

		history, err := repo.GetReadingHistory(ctx, "s", "m")
		require.NoError(t, err)
		assert.Equal(t, HistoryEntry{Page: PageCompleted, Timestamp: 100}, history["a"])
		assert.Equal(t, HistoryEntry{Page: 7, Timestamp: 300}, history["c"])
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, repo.RemoveHistory(ctx, "s", "m", []string{"b"}))

		history, err := repo.GetReadingHistory(ctx, "s", "m")
		require.NoError(t, err)
		assert.NotContains(t, history, "b")
		assert.Len(t, history, 2)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, repo.ClearHistory(ctx, "s", "m"))

		history, err := repo.GetReadingHistory(ctx, "s", "m")
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestChapterFilters(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	filters, err := repo.GetChapterFilters(ctx, "s", "m")
	require.NoError(t, err)
	assert.Equal(t, ChapterFilters{}, filters)

	lang := "en"
	saved := ChapterFilters{Flags: 0b1010011, Language: &lang, Scanlators: []string{"group a"}}
	require.NoError(t, repo.SaveChapterFilters(ctx, "s", "m", saved))

	filters, err = repo.GetChapterFilters(ctx, "s", "m")
	require.NoError(t, err)
	assert.Equal(t, saved, filters)

	require.NoError(t, repo.SaveChapterFilters(ctx, "s", "m", ChapterFilters{Flags: 1}))
	filters, err = repo.GetChapterFilters(ctx, "s", "m")
	require.NoError(t, err)
	assert.Equal(t, 1, filters.Flags)
	assert.Nil(t, filters.Language)
	assert.Empty(t, filters.Scanlators)
}

func TestDeleteManga(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveManga(ctx, &Manga{SourceKey: "s", Key: "m", Title: "Test"}))
	_, err := repo.SetChapters(ctx, "s", "m", []Chapter{{Key: "c"}})
	require.NoError(t, err)
	require.NoError(t, repo.AddHistory(ctx, "s", "m", []string{"c"}, 1))
	require.NoError(t, repo.SaveDownload(ctx, ChapterKey{"s", "m", "c"}, "/tmp/c.epub", 1))

	if err := repo.DeleteManga(ctx, "s", "m"); err != nil {
		t.Fatalf("Failed to delete manga: %v", err)
	}

	retrieved, _ := repo.GetManga(ctx, "s", "m")
	assert.Nil(t, retrieved)

	chapters, _ := repo.GetChapters(ctx, "s", "m")
	assert.Empty(t, chapters)

	history, _ := repo.GetReadingHistory(ctx, "s", "m")
	assert.Empty(t, history)

	downloads, _ := repo.GetDownloads(ctx, "s", "m")
	assert.Empty(t, downloads)
}

func TestDownloads(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	key := ChapterKey{SourceKey: "s", MangaKey: "m", ChapterKey: "c1"}

	require.NoError(t, repo.SaveDownload(ctx, key, "/old.epub", 1))
	require.NoError(t, repo.SaveDownload(ctx, key, "/new.epub", 2))
	require.NoError(t, repo.SaveDownload(ctx, ChapterKey{"s", "other", "c1"}, "/other.epub", 2))

	downloads, err := repo.GetDownloads(ctx, "s", "m")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"c1": "/new.epub"}, downloads)

	require.NoError(t, repo.DeleteDownload(ctx, key))
	downloads, err = repo.GetDownloads(ctx, "s", "m")
	require.NoError(t, err)
	assert.Empty(t, downloads)
}

func TestSearchHistory(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveSearchHistory(ctx, []string{"naruto", "one piece"}))
	history, err := repo.GetSearchHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"naruto", "one piece"}, history)

	require.NoError(t, repo.SaveSearchHistory(ctx, []string{"bleach"}))
	history, err = repo.GetSearchHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bleach"}, history)
}
