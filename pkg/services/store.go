package services

import (
	"context"

	"github.com/kerbaras/mangafeed/pkg/data"
)

// Store is the persistence a MangaController needs. *data.Repository
// implements it.
type Store interface {
	SaveManga(ctx context.Context, manga *data.Manga) error
	HasLibraryManga(ctx context.Context, sourceKey, mangaKey string) (bool, error)
	GetChapters(ctx context.Context, sourceKey, mangaKey string) ([]data.Chapter, error)
	SetChapters(ctx context.Context, sourceKey, mangaKey string, chapters []data.Chapter) ([]data.Chapter, error)
	GetReadingHistory(ctx context.Context, sourceKey, mangaKey string) (map[string]data.HistoryEntry, error)
	AddHistory(ctx context.Context, sourceKey, mangaKey string, chapterKeys []string, ts int64) error
	SetHistory(ctx context.Context, key data.ChapterKey, page int, ts int64) error
	RemoveHistory(ctx context.Context, sourceKey, mangaKey string, chapterKeys []string) error
	GetChapterFilters(ctx context.Context, sourceKey, mangaKey string) (data.ChapterFilters, error)
	SaveChapterFilters(ctx context.Context, sourceKey, mangaKey string, filters data.ChapterFilters) error
}

type DownloadStore interface {
	GetDownloads(ctx context.Context, sourceKey, mangaKey string) (map[string]string, error)
	SaveDownload(ctx context.Context, key data.ChapterKey, path string, finishedAt int64) error
	DeleteDownload(ctx context.Context, key data.ChapterKey) error
}

type LibraryStore interface {
	SaveManga(ctx context.Context, manga *data.Manga) error
	GetManga(ctx context.Context, sourceKey, mangaKey string) (*data.Manga, error)
	ListMangas(ctx context.Context) ([]*data.Manga, error)
	DeleteManga(ctx context.Context, sourceKey, mangaKey string) error
	SetChapters(ctx context.Context, sourceKey, mangaKey string, chapters []data.Chapter) ([]data.Chapter, error)
	GetChapters(ctx context.Context, sourceKey, mangaKey string) ([]data.Chapter, error)
	GetReadingHistory(ctx context.Context, sourceKey, mangaKey string) (map[string]data.HistoryEntry, error)
	GetDownloads(ctx context.Context, sourceKey, mangaKey string) (map[string]string, error)
}

type SearchHistoryStore interface {
	GetSearchHistory(ctx context.Context) ([]string, error)
	SaveSearchHistory(ctx context.Context, history []string) error
}

var (
	_ Store              = (*data.Repository)(nil)
	_ DownloadStore      = (*data.Repository)(nil)
	_ LibraryStore       = (*data.Repository)(nil)
	_ SearchHistoryStore = (*data.Repository)(nil)
)
