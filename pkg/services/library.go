package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/feed"
	"github.com/kerbaras/mangafeed/pkg/sources"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// StatusFilter is the filter ID LibraryFetch understands.
const StatusFilter = "status"

// Library manages the mangas the user follows.
type Library struct {
	source sources.Source
	store  LibraryStore
	logger *slog.Logger
}

func NewLibrary(source sources.Source, store LibraryStore, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{source: source, store: store, logger: logger}
}

// Add fetches details and chapters of manga and stores both.
func (l *Library) Add(ctx context.Context, manga data.Manga) (data.Manga, []data.Chapter, error) {
	updated, chapters, err := l.source.GetMangaUpdate(ctx, manga, true, true)
	if err != nil {
		return manga, nil, fmt.Errorf("failed to fetch manga: %w", err)
	}
	if err := l.store.SaveManga(ctx, &updated); err != nil {
		return updated, nil, err
	}
	if _, err := l.store.SetChapters(ctx, updated.SourceKey, updated.Key, chapters); err != nil {
		return updated, nil, err
	}
	l.logger.Info("added to library", "source", updated.SourceKey, "manga", updated.Key, "chapters", len(chapters))
	return updated, chapters, nil
}

func (l *Library) Remove(ctx context.Context, sourceKey, mangaKey string) error {
	return l.store.DeleteManga(ctx, sourceKey, mangaKey)
}

func (l *Library) Get(ctx context.Context, sourceKey, mangaKey string) (*data.Manga, error) {
	return l.store.GetManga(ctx, sourceKey, mangaKey)
}

func (l *Library) List(ctx context.Context) ([]*data.Manga, error) {
	return l.store.ListMangas(ctx)
}

// LibraryStats summarizes the stored chapters of a library manga.
type LibraryStats struct {
	Chapters   int
	Unread     int
	Downloaded int
}

func (l *Library) Stats(ctx context.Context, sourceKey, mangaKey string) (LibraryStats, error) {
	list, err := l.store.GetChapters(ctx, sourceKey, mangaKey)
	if err != nil {
		return LibraryStats{}, err
	}
	history, err := l.store.GetReadingHistory(ctx, sourceKey, mangaKey)
	if err != nil {
		return LibraryStats{}, err
	}
	downloads, err := l.store.GetDownloads(ctx, sourceKey, mangaKey)
	if err != nil {
		return LibraryStats{}, err
	}

	stats := LibraryStats{Chapters: len(list)}
	for _, ch := range list {
		if !history[ch.Key].Completed() {
			stats.Unread++
		}
		if _, ok := downloads[ch.Key]; ok {
			stats.Downloaded++
		}
	}
	return stats, nil
}

// LibraryFetch pages through the library as a feed. A non-empty query
// ranks titles by fuzzy match; the status filter includes or excludes
// publication states.
func LibraryFetch(store LibraryStore, pageSize int) feed.FetchFunc {
	if pageSize <= 0 {
		pageSize = 20
	}
	return func(ctx context.Context, q feed.Query, page int) (data.PageResult, error) {
		list, err := store.ListMangas(ctx)
		if err != nil {
			return data.PageResult{}, err
		}

		mangas := make([]data.Manga, 0, len(list))
		for _, m := range list {
			if matchStatus(*m, q.Filters) {
				mangas = append(mangas, *m)
			}
		}

		if text := feed.NormalizeText(q.Text); text != "" {
			titles := make([]string, len(mangas))
			for i, m := range mangas {
				titles[i] = m.Title
			}
			ranks := fuzzy.RankFindNormalizedFold(text, titles)
			sort.Stable(ranks)

			ranked := make([]data.Manga, len(ranks))
			for i, r := range ranks {
				ranked[i] = mangas[r.OriginalIndex]
			}
			mangas = ranked
		}

		start := min(max(page-1, 0)*pageSize, len(mangas))
		end := min(start+pageSize, len(mangas))
		return data.PageResult{
			Entries:     mangas[start:end],
			HasNextPage: end < len(mangas),
		}, nil
	}
}

func matchStatus(m data.Manga, filters []sources.FilterValue) bool {
	for _, f := range filters {
		if f.ID != StatusFilter {
			continue
		}
		if len(f.Included) > 0 && !slices.Contains(f.Included, m.Status) {
			return false
		}
		if slices.Contains(f.Excluded, m.Status) {
			return false
		}
	}
	return true
}
