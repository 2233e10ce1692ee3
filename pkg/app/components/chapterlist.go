package components

import (
	"fmt"
	"strings"

	"github.com/kerbaras/mangafeed/pkg/app/styles"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/services"
)

// ChapterList renders the visible chapters of a manga, one per line.
type ChapterList struct {
	Chapters  []data.Chapter
	History   map[string]data.HistoryEntry
	Next      string
	Downloads services.DownloadOracle
	Selected  int
	Height    int
}

func NewChapterList() *ChapterList {
	return &ChapterList{Height: 10}
}

// SetBindings takes the list and next chapter from b. The cursor stays
// on the same chapter when it is still visible.
func (l *ChapterList) SetBindings(b services.Bindings) {
	var current string
	if ch, ok := l.Current(); ok {
		current = ch.Key
	}

	l.Chapters = b.Chapters
	l.History = b.History
	l.Next = b.Verdict.Chapter.Key

	l.Selected = min(l.Selected, max(len(l.Chapters)-1, 0))
	if i := l.indexOf(current); i >= 0 {
		l.Selected = i
	}
}

func (l *ChapterList) Current() (data.Chapter, bool) {
	if l.Selected < 0 || l.Selected >= len(l.Chapters) {
		return data.Chapter{}, false
	}
	return l.Chapters[l.Selected], true
}

func (l *ChapterList) Move(delta int) {
	if len(l.Chapters) == 0 {
		return
	}
	l.Selected = min(max(l.Selected+delta, 0), len(l.Chapters)-1)
}

// JumpTo moves the cursor to the chapter with key, if visible.
func (l *ChapterList) JumpTo(key string) bool {
	i := l.indexOf(key)
	if i < 0 {
		return false
	}
	l.Selected = i
	return true
}

func (l *ChapterList) indexOf(key string) int {
	if key == "" {
		return -1
	}
	for i, ch := range l.Chapters {
		if ch.Key == key {
			return i
		}
	}
	return -1
}

func (l *ChapterList) View() string {
	if len(l.Chapters) == 0 {
		return styles.MutedStyle.Render("No chapters match the current filters")
	}

	start, end := window(len(l.Chapters), l.Selected, max(1, l.Height))

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(l.row(l.Chapters[i], i == l.Selected))
		b.WriteString("\n")
	}
	if len(l.Chapters) > end-start {
		b.WriteString(styles.MutedStyle.Render(
			fmt.Sprintf("Showing %d-%d of %d chapters", start+1, end, len(l.Chapters)),
		))
	}
	return b.String()
}

func (l *ChapterList) row(ch data.Chapter, selected bool) string {
	entry, hasEntry := l.History[ch.Key]

	state := "○"
	style := styles.TextStyle
	read := hasEntry && entry.Completed()
	switch {
	case read:
		state, style = "✓", styles.ReadStyle
	case hasEntry:
		state = "◐"
	}

	download := " "
	if l.Downloads != nil {
		switch l.Downloads.Status(ch.ID()) {
		case data.DownloadQueued:
			download = "…"
		case data.DownloadDownloading:
			download = "↓"
		case data.DownloadFinished:
			download = "●"
		}
	}

	line := fmt.Sprintf("%s %s %s", state, download, ch.Label())
	if hasEntry && !entry.Completed() {
		line += fmt.Sprintf(" (page %d)", entry.Page+1)
	}
	if ch.Locked {
		line += " 🔒"
		if !read {
			style = styles.LockedStyle
		}
	}
	if len(ch.Scanlators) > 0 {
		line += styles.MutedStyle.Render(" · " + strings.Join(ch.Scanlators, ", "))
	}

	switch {
	case selected:
		return styles.SelectedStyle.Render("› " + line)
	case ch.Key == l.Next:
		return styles.NextChapterStyle.Render("▶ " + line)
	}
	return "  " + style.Render(line)
}
