package chapters

import (
	"math/rand"
	"testing"

	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/stretchr/testify/assert"
)

// numbered builds chapters 1..n in source order (newest first).
func numbered(n int) []data.Chapter {
	chapters := make([]data.Chapter, n)
	for i := range chapters {
		number := float64(n - i)
		chapters[i] = data.Chapter{
			Key:         data.FormatNumber(number),
			Number:      &number,
			Language:    "en",
			SourceOrder: i,
		}
	}
	return chapters
}

func TestResolveEmpty(t *testing.T) {
	v := Resolve(ResolveInput{})
	assert.Equal(t, VerdictNone, v.Kind)
}

func TestResolveFallbackScan(t *testing.T) {
	// 1 read, 2 unread, 3 locked, nothing touched recently.
	chapters := numbered(3)
	chapters[0].Locked = true
	history := NewProgressIndex(map[string]data.HistoryEntry{
		"1": {Page: data.PageCompleted, Timestamp: 0},
	})

	for _, ascending := range []bool{false, true} {
		sorted := Sort(chapters, SortSourceOrder, ascending)
		v := Resolve(ResolveInput{Full: sorted, Ascending: ascending, History: history})

		assert.Equal(t, VerdictChapter, v.Kind)
		assert.Equal(t, "2", v.Chapter.Key)
		assert.False(t, v.InProgress)
	}
}

func TestResolveForwardFromCompleted(t *testing.T) {
	chapters := numbered(3)
	chapters[1].Language = "ja" // chapter 2
	history := NewProgressIndex(map[string]data.HistoryEntry{
		"1": {Page: data.PageCompleted, Timestamp: 100},
	})
	en := "en"
	opts := Options{Sort: SortSourceOrder, Language: &en}

	full := Sort(chapters, opts.Sort, opts.Ascending)
	visible := View(chapters, opts, nil, history.Completed)
	assert.NotContains(t, keys(visible), "2")

	v := Resolve(ResolveInput{Full: full, Visible: visible, Ascending: opts.Ascending, History: history})
	assert.Equal(t, VerdictChapter, v.Kind)
	assert.Equal(t, "2", v.Chapter.Key)
}

func TestResolveForwardSkipsLocked(t *testing.T) {
	chapters := numbered(4)
	chapters[2].Locked = true // chapter 2
	history := NewProgressIndex(map[string]data.HistoryEntry{
		"1": {Page: data.PageCompleted, Timestamp: 100},
	})

	t.Run("locked skipped", func(t *testing.T) {
		v := Resolve(ResolveInput{Full: chapters, History: history})
		assert.Equal(t, "3", v.Chapter.Key)
	})

	t.Run("locked but downloaded is readable", func(t *testing.T) {
		finished := func(ch data.Chapter) bool { return ch.Key == "2" }
		v := Resolve(ResolveInput{Full: chapters, History: history, DownloadFinished: finished})
		assert.Equal(t, "2", v.Chapter.Key)
	})
}

func TestResolveResumesInProgress(t *testing.T) {
	chapters := numbered(3)
	history := NewProgressIndex(map[string]data.HistoryEntry{
		"1": {Page: data.PageCompleted, Timestamp: 100},
		"3": {Page: 7, Timestamp: 200},
	})

	v := Resolve(ResolveInput{Full: chapters, History: history})
	assert.Equal(t, VerdictChapter, v.Kind)
	assert.Equal(t, "3", v.Chapter.Key)
	assert.True(t, v.InProgress)
}

func TestResolveLastReadMissingFromList(t *testing.T) {
	chapters := numbered(3)
	history := NewProgressIndex(map[string]data.HistoryEntry{
		"1":    {Page: data.PageCompleted, Timestamp: 100},
		"gone": {Page: 2, Timestamp: 500},
	})

	v := Resolve(ResolveInput{Full: chapters, History: history})
	assert.Equal(t, "2", v.Chapter.Key)
}

func TestResolveLastChapterCompletedFallsBack(t *testing.T) {
	chapters := numbered(3)
	history := NewProgressIndex(map[string]data.HistoryEntry{
		"3": {Page: data.PageCompleted, Timestamp: 100},
	})

	v := Resolve(ResolveInput{Full: chapters, History: history})
	assert.Equal(t, VerdictChapter, v.Kind)
	assert.Equal(t, "1", v.Chapter.Key)
}

func TestResolveAllRead(t *testing.T) {
	chapters := numbered(2)
	history := NewProgressIndex(nil)
	history.MarkCompleted([]string{"1", "2"}, 0)

	v := Resolve(ResolveInput{Full: chapters, History: history})
	assert.Equal(t, VerdictAllRead, v.Kind)
}

func TestResolveAllLocked(t *testing.T) {
	chapters := numbered(2)
	for i := range chapters {
		chapters[i].Locked = true
	}

	v := Resolve(ResolveInput{Full: chapters})
	assert.Equal(t, VerdictAllLocked, v.Kind)
}

func TestResolveEmptyVisible(t *testing.T) {
	v := Resolve(ResolveInput{Full: numbered(2), Visible: []data.Chapter{}})
	assert.Equal(t, VerdictNone, v.Kind)
}

func TestResolveDirectionIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		chapters := randomChapters(r, 1+r.Intn(20))
		entries := make(map[string]data.HistoryEntry)
		for _, ch := range chapters {
			switch r.Intn(4) {
			case 0:
				entries[ch.Key] = data.HistoryEntry{Page: data.PageCompleted, Timestamp: int64(r.Intn(5))}
			case 1:
				entries[ch.Key] = data.HistoryEntry{Page: r.Intn(10), Timestamp: int64(r.Intn(5))}
			}
		}
		history := NewProgressIndex(entries)

		for _, option := range []SortOption{SortSourceOrder, SortChapterNumber, SortUploadDate} {
			input := chapters
			if option == SortUploadDate {
				input = dated(chapters)
			}
			desc := Resolve(ResolveInput{Full: Sort(input, option, false), History: history})
			asc := Resolve(ResolveInput{Full: Sort(input, option, true), Ascending: true, History: history})
			again := Resolve(ResolveInput{Full: Sort(input, option, false), History: history})

			assert.Equal(t, desc, asc, option.String())
			assert.Equal(t, desc, again, option.String())
		}
	}
}

func TestResolveSameNumberDifferentGroups(t *testing.T) {
	chapters := []data.Chapter{
		{Key: "5-groupA", Number: num(5), SourceOrder: 0},
		{Key: "5-groupB", Number: num(5), SourceOrder: 1},
	}
	history := NewProgressIndex(nil)

	asc := Resolve(ResolveInput{Full: Sort(chapters, SortChapterNumber, true), Ascending: true, History: history})
	desc := Resolve(ResolveInput{Full: Sort(chapters, SortChapterNumber, false), History: history})

	assert.Equal(t, "5-groupB", asc.Chapter.Key)
	assert.Equal(t, asc, desc)
}

func TestReadingOrder(t *testing.T) {
	chapters := numbered(3)
	assert.Equal(t, []string{"1", "2", "3"}, keys(ReadingOrder(chapters, false)))
	assert.Equal(t, []string{"3", "2", "1"}, keys(chapters))

	asc := Sort(chapters, SortChapterNumber, true)
	assert.Equal(t, []string{"1", "2", "3"}, keys(ReadingOrder(asc, true)))
}

func TestNeedsTrackerSync(t *testing.T) {
	chapters := numbered(5)

	t.Run("tracker ahead", func(t *testing.T) {
		history := NewProgressIndex(nil)
		history.MarkCompleted([]string{"1", "2"}, 1)
		assert.True(t, NeedsTrackerSync(chapters, history, 4))
	})

	t.Run("local ahead", func(t *testing.T) {
		history := NewProgressIndex(nil)
		history.MarkCompleted([]string{"1", "2", "3", "4"}, 1)
		assert.False(t, NeedsTrackerSync(chapters, history, 3))
	})

	t.Run("everything read", func(t *testing.T) {
		history := NewProgressIndex(nil)
		history.MarkCompleted([]string{"1", "2", "3", "4", "5"}, 1)
		assert.False(t, NeedsTrackerSync(chapters, history, 10))
	})

	t.Run("gap below tracker", func(t *testing.T) {
		history := NewProgressIndex(nil)
		history.MarkCompleted([]string{"1", "3", "4", "5"}, 1)
		assert.True(t, NeedsTrackerSync(chapters, history, 3))
	})
}

func TestChaptersUpTo(t *testing.T) {
	chapters := numbered(5)
	history := NewProgressIndex(nil)
	history.MarkCompleted([]string{"1"}, 1)

	got := ChaptersUpTo(chapters, history, 3)
	assert.ElementsMatch(t, []string{"2", "3"}, keys(got))
}
