package sources

import (
	"context"
	"slices"

	"github.com/kerbaras/mangafeed/pkg/data"
)

// FilterValue is one search filter as selected by the user.
type FilterValue struct {
	ID       string
	Included []string
	Excluded []string
}

func (f FilterValue) Equal(o FilterValue) bool {
	return f.ID == o.ID && slices.Equal(f.Included, o.Included) && slices.Equal(f.Excluded, o.Excluded)
}

type Source interface {
	Key() string
	Name() string

	// SearchManga returns one page of results; pages start at 1.
	SearchManga(ctx context.Context, query string, page int, filters []FilterValue) (data.PageResult, error)
	// GetMangaUpdate fetches details and/or the full chapter list.
	GetMangaUpdate(ctx context.Context, manga data.Manga, needsDetails, needsChapters bool) (data.Manga, []data.Chapter, error)
	GetPages(ctx context.Context, chapter data.Chapter) ([]string, error)
}
