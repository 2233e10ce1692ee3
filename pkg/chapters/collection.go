// Package chapters derives the displayed chapter list of a manga and the
// chapter to read next. Everything here is pure: no I/O and no goroutines.
package chapters

import (
	"cmp"
	"slices"
	"time"

	"github.com/kerbaras/mangafeed/pkg/data"
)

type SortOption int

const (
	SortSourceOrder SortOption = iota
	SortChapterNumber
	SortUploadDate
)

func (s SortOption) String() string {
	switch s {
	case SortChapterNumber:
		return "chapter"
	case SortUploadDate:
		return "upload-date"
	}
	return "source-order"
}

// ParseSortOption is the inverse of String.
func ParseSortOption(s string) (SortOption, bool) {
	for _, opt := range []SortOption{SortSourceOrder, SortChapterNumber, SortUploadDate} {
		if opt.String() == s {
			return opt, true
		}
	}
	return SortSourceOrder, false
}

type FilterType int

const (
	FilterDownloaded FilterType = iota
	FilterUnread
	FilterLocked
)

func (f FilterType) String() string {
	switch f {
	case FilterUnread:
		return "unread"
	case FilterLocked:
		return "locked"
	}
	return "downloaded"
}

// FilterOption keeps chapters matching Type, or the complement when Exclude is set.
type FilterOption struct {
	Type    FilterType
	Exclude bool
}

// Filters holds at most one option per type.
type Filters map[FilterType]bool

// Set adds or replaces the option for its type.
func (f Filters) Set(opt FilterOption) {
	f[opt.Type] = opt.Exclude
}

// Options returns the options in application order: downloaded, unread, locked.
func (f Filters) Options() []FilterOption {
	var opts []FilterOption
	for _, t := range []FilterType{FilterDownloaded, FilterUnread, FilterLocked} {
		if exclude, ok := f[t]; ok {
			opts = append(opts, FilterOption{Type: t, Exclude: exclude})
		}
	}
	return opts
}

// FiltersOf builds a filter set; later options win for duplicate types.
func FiltersOf(opts ...FilterOption) Filters {
	f := make(Filters, len(opts))
	for _, opt := range opts {
		f.Set(opt)
	}
	return f
}

// Options is the full sort and filter configuration of a chapter list.
type Options struct {
	Sort       SortOption
	Ascending  bool
	Filters    Filters
	Language   *string
	Scanlators []string
}

// Predicate reports a per-chapter fact the collection does not own, such as
// download or completion state.
type Predicate func(data.Chapter) bool

// Sort returns a sorted copy of chapters. Ascending means oldest first for
// every option; source order is assumed to be newest first. Ties fall back to
// source order, then key, so that flipping the direction reverses the list
// (undated chapters excepted, which stay last either way).
func Sort(chapters []data.Chapter, option SortOption, ascending bool) []data.Chapter {
	sorted := slices.Clone(chapters)

	switch option {
	case SortSourceOrder:
		slices.SortFunc(sorted, func(a, b data.Chapter) int {
			return tieBreak(a, b, false)
		})
		if ascending {
			slices.Reverse(sorted)
		}
	case SortChapterNumber:
		slices.SortFunc(sorted, func(a, b data.Chapter) int {
			if c := compareFloat(chapterNumber(a), chapterNumber(b), ascending); c != 0 {
				return c
			}
			return tieBreak(a, b, ascending)
		})
	case SortUploadDate:
		slices.SortFunc(sorted, func(a, b data.Chapter) int {
			if c := compareUploaded(a.Uploaded, b.Uploaded, ascending); c != 0 {
				return c
			}
			return tieBreak(a, b, ascending)
		})
	}

	return sorted
}

// tieBreak orders by source order, newest first unless ascending.
func tieBreak(a, b data.Chapter, ascending bool) int {
	c := cmp.Or(cmp.Compare(a.SourceOrder, b.SourceOrder), cmp.Compare(a.Key, b.Key))
	if ascending {
		c = -c
	}
	return c
}

// View applies the sort, then the language, scanlator and per-type filters in
// that order. Nil predicates are treated as always false.
func View(full []data.Chapter, opts Options, downloaded, completed Predicate) []data.Chapter {
	chapters := Sort(full, opts.Sort, opts.Ascending)

	if opts.Language != nil || len(opts.Scanlators) > 0 {
		chapters = slices.DeleteFunc(chapters, func(ch data.Chapter) bool {
			if opts.Language != nil && ch.Language != *opts.Language {
				return true
			}
			if len(opts.Scanlators) > 0 && !slices.ContainsFunc(ch.Scanlators, func(s string) bool {
				return slices.Contains(opts.Scanlators, s)
			}) {
				return true
			}
			return false
		})
	}

	for _, filter := range opts.Filters.Options() {
		match := matcher(filter.Type, downloaded, completed)
		chapters = slices.DeleteFunc(chapters, func(ch data.Chapter) bool {
			return match(ch) == filter.Exclude
		})
	}

	return chapters
}

func matcher(t FilterType, downloaded, completed Predicate) Predicate {
	switch t {
	case FilterDownloaded:
		return orFalse(downloaded)
	case FilterUnread:
		isCompleted := orFalse(completed)
		return func(ch data.Chapter) bool { return !isCompleted(ch) }
	default:
		return func(ch data.Chapter) bool { return ch.Locked }
	}
}

func orFalse(p Predicate) Predicate {
	if p == nil {
		return func(data.Chapter) bool { return false }
	}
	return p
}

// chapterNumber places unnumbered chapters before any numbered one.
func chapterNumber(ch data.Chapter) float64 {
	if ch.Number == nil {
		return -1
	}
	return *ch.Number
}

func compareFloat(a, b float64, ascending bool) int {
	switch {
	case a == b:
		return 0
	case (a < b) == ascending:
		return -1
	}
	return 1
}

// compareUploaded keeps undated chapters last in both directions.
func compareUploaded(a, b *time.Time, ascending bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	c := a.Compare(*b)
	if !ascending {
		c = -c
	}
	return c
}
