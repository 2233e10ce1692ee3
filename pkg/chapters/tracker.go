package chapters

import "github.com/kerbaras/mangafeed/pkg/data"

// NeedsTrackerSync reports whether a tracker's last read chapter number is
// ahead of local history and there is something left to mark read.
func NeedsTrackerSync(chapters []data.Chapter, history *ProgressIndex, trackerLastRead float64) bool {
	latest := -1.0
	lastRead := 0.0
	foundRead := false
	hasUnread := false

	for _, ch := range Sort(chapters, SortSourceOrder, false) {
		n := chapterNumber(ch)
		if n > latest {
			latest = n
		}
		if !foundRead && history.IsCompleted(ch.Key) {
			lastRead = max(n, 0)
			foundRead = true
		}
		if _, ok := history.Get(ch.Key); !ok {
			hasUnread = true
		}
	}

	if lastRead < trackerLastRead && (latest >= trackerLastRead || hasUnread) {
		return true
	}
	if !hasUnread {
		return false
	}
	for _, ch := range chapters {
		if _, ok := history.Get(ch.Key); !ok && max(chapterNumber(ch), 0) < trackerLastRead {
			return true
		}
	}
	return false
}

// ChaptersUpTo returns the unfinished chapters numbered at or below n.
func ChaptersUpTo(chapters []data.Chapter, history *ProgressIndex, n float64) []data.Chapter {
	var out []data.Chapter
	for _, ch := range chapters {
		if ch.Number != nil && *ch.Number <= n && !history.IsCompleted(ch.Key) {
			out = append(out, ch)
		}
	}
	return out
}
