package chapters

import (
	"slices"

	"github.com/kerbaras/mangafeed/pkg/data"
)

type VerdictKind int

const (
	VerdictNone VerdictKind = iota
	VerdictAllRead
	VerdictAllLocked
	VerdictChapter
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictAllRead:
		return "all-read"
	case VerdictAllLocked:
		return "all-locked"
	case VerdictChapter:
		return "chapter"
	}
	return "none"
}

// Verdict is what the read button offers. Chapter is only set for
// VerdictChapter; InProgress distinguishes "continue" from "start".
type Verdict struct {
	Kind       VerdictKind
	Chapter    data.Chapter
	InProgress bool
}

// ResolveInput carries everything the resolver looks at.
type ResolveInput struct {
	// Full is the sorted but unfiltered chapter list.
	Full []data.Chapter
	// Visible is the displayed, filtered list. Nil means Full.
	Visible   []data.Chapter
	Ascending bool
	History   *ProgressIndex
	// DownloadFinished makes a locked chapter readable.
	DownloadFinished Predicate
}

// Resolve picks the chapter to continue or start reading.
//
// The most recently touched chapter is resumed when unfinished. When it was
// finished, the next readable chapter after it in the full list wins, even if
// filters hide it. Otherwise the first readable, unfinished visible chapter in
// reading order is chosen.
func Resolve(in ResolveInput) Verdict {
	visible := in.Visible
	if visible == nil {
		visible = in.Full
	}
	if len(visible) == 0 {
		return Verdict{Kind: VerdictNone}
	}

	history := in.History
	if history == nil {
		history = NewProgressIndex(nil)
	}
	downloaded := orFalse(in.DownloadFinished)
	readable := func(ch data.Chapter) bool {
		return !ch.Locked || downloaded(ch)
	}
	verdict := func(ch data.Chapter) Verdict {
		entry, _ := history.Get(ch.Key)
		return Verdict{Kind: VerdictChapter, Chapter: ch, InProgress: entry.Timestamp > 0}
	}

	if key, entry, ok := history.MostRecent(); ok {
		full := ReadingOrder(in.Full, in.Ascending)
		idx := slices.IndexFunc(full, func(ch data.Chapter) bool { return ch.Key == key })
		if idx >= 0 {
			if !entry.Completed() {
				return verdict(full[idx])
			}
			for _, ch := range full[idx+1:] {
				if readable(ch) {
					return verdict(ch)
				}
			}
		}
	}

	for _, ch := range ReadingOrder(visible, in.Ascending) {
		if readable(ch) && !history.IsCompleted(ch.Key) {
			return verdict(ch)
		}
	}

	if !slices.ContainsFunc(visible, readable) {
		return Verdict{Kind: VerdictAllLocked}
	}
	return Verdict{Kind: VerdictAllRead}
}

// ReadingOrder returns a sorted list oldest first. Ascending lists already
// are; descending ones are reversed into a copy.
func ReadingOrder(sorted []data.Chapter, ascending bool) []data.Chapter {
	if ascending {
		return sorted
	}
	order := slices.Clone(sorted)
	slices.Reverse(order)
	return order
}
