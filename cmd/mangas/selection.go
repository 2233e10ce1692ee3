package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/feed"
	"github.com/kerbaras/mangafeed/pkg/services"
)

// parseChapterSelection picks chapters by number. Selections are comma
// separated numbers or inclusive ranges: "1-10", "1,3,5", "2.5,7-9".
func parseChapterSelection(selection string, all []data.Chapter) ([]data.Chapter, error) {
	type span struct{ from, to float64 }
	var spans []span

	for _, part := range strings.Split(selection, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, isRange := strings.Cut(part, "-")
		start, err := strconv.ParseFloat(strings.TrimSpace(from), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chapter %q", part)
		}
		end := start
		if isRange {
			if end, err = strconv.ParseFloat(strings.TrimSpace(to), 64); err != nil || end < start {
				return nil, fmt.Errorf("invalid chapter range %q", part)
			}
		}
		spans = append(spans, span{start, end})
	}

	var selected []data.Chapter
	for _, ch := range all {
		if ch.Number == nil {
			continue
		}
		for _, s := range spans {
			if *ch.Number >= s.from && *ch.Number <= s.to {
				selected = append(selected, ch)
				break
			}
		}
	}
	return selected, nil
}

// findManga resolves name to a library manga by key, then by fuzzy title.
func findManga(ctx context.Context, s *session, name string) (data.Manga, error) {
	mangas, err := s.library.List(ctx)
	if err != nil {
		return data.Manga{}, err
	}
	for _, m := range mangas {
		if m.Key == name || strings.EqualFold(m.Title, name) {
			return *m, nil
		}
	}

	page, err := services.LibraryFetch(s.repo, 1)(ctx, feed.Query{Text: name}, 1)
	if err != nil {
		return data.Manga{}, err
	}
	if len(page.Entries) == 0 {
		return data.Manga{}, fmt.Errorf("'%s' is not in your library", name)
	}
	return page.Entries[0], nil
}

func chapterKeys(list []data.Chapter) []string {
	keys := make([]string, len(list))
	for i, ch := range list {
		keys[i] = ch.Key
	}
	return keys
}
