package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/mangafeed/pkg/app/styles"
	"github.com/kerbaras/mangafeed/pkg/data"
)

// cardHeight is the number of lines one rendered card takes.
const cardHeight = 6

type MangaListItem struct {
	Manga           data.Manga
	ChapterCount    int
	UnreadCount     int
	DownloadedCount int
	// HasCounts is false for entries outside the library.
	HasCounts bool
}

// MangaList renders feed entries as cards. Only the cards around the
// selection that fit Height are drawn.
type MangaList struct {
	Items         []MangaListItem
	SelectedIndex int
	Width         int
	Height        int
	Empty         string
	Loading       bool
	HasMore       bool
}

func NewMangaList(empty string) *MangaList {
	return &MangaList{
		Items:  []MangaListItem{},
		Width:  80,
		Height: 20,
		Empty:  empty,
	}
}

// SetItems replaces the items, keeping the selection in range.
func (m *MangaList) SetItems(items []MangaListItem) {
	m.Items = items
	if m.SelectedIndex >= len(items) && len(items) > 0 {
		m.SelectedIndex = len(items) - 1
	}
	if len(items) == 0 {
		m.SelectedIndex = 0
	}
}

func (m *MangaList) Next() {
	if m.SelectedIndex < len(m.Items)-1 {
		m.SelectedIndex++
	}
}

func (m *MangaList) Prev() {
	if m.SelectedIndex > 0 {
		m.SelectedIndex--
	}
}

// NearEnd reports that the selection is within threshold items of the
// last loaded item and more can be loaded.
func (m *MangaList) NearEnd(threshold int) bool {
	return m.HasMore && !m.Loading && m.SelectedIndex >= len(m.Items)-1-threshold
}

func (m *MangaList) Selected() *MangaListItem {
	if len(m.Items) == 0 || m.SelectedIndex >= len(m.Items) {
		return nil
	}
	return &m.Items[m.SelectedIndex]
}

func (m *MangaList) View() string {
	if len(m.Items) == 0 {
		msg := styles.MutedStyle.Render(m.Empty)
		if m.Loading {
			msg = styles.StatusDownloading.Render("Loading...")
		}
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, msg)
	}

	start, end := window(len(m.Items), m.SelectedIndex, max(1, m.Height/cardHeight))

	var b strings.Builder
	for i := start; i < end; i++ {
		style := styles.CardStyle
		if i == m.SelectedIndex {
			style = styles.ActiveCardStyle
		}
		b.WriteString(style.Width(m.Width - 4).Render(m.card(m.Items[i])))
		b.WriteString("\n")
	}

	footer := fmt.Sprintf("%d of %d", m.SelectedIndex+1, len(m.Items))
	switch {
	case m.Loading:
		footer += " • loading more..."
	case m.HasMore:
		footer += "+"
	}
	b.WriteString(styles.MutedStyle.Render(footer))
	return b.String()
}

func (m *MangaList) card(item MangaListItem) string {
	title := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true).Render(item.Manga.Title)

	status := item.Manga.Status
	if status == "" {
		status = "unknown"
	}
	meta := styles.StatusStyle(item.Manga.Status).Render(status) +
		styles.MutedStyle.Render(" • "+item.Manga.SourceKey)
	if item.HasCounts {
		meta += styles.MutedStyle.Render(fmt.Sprintf(" • %d chapters • %d unread • %d downloaded",
			item.ChapterCount, item.UnreadCount, item.DownloadedCount))
	}

	desc := strings.Join(strings.Fields(item.Manga.Description), " ")
	if width := m.Width - 10; width > 3 && len([]rune(desc)) > width {
		desc = string([]rune(desc)[:width-3]) + "..."
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, styles.TextStyle.Render(desc), meta)
}

// window returns the [start, end) range of size at most n that keeps
// selected roughly centered.
func window(total, selected, n int) (int, int) {
	if total <= n {
		return 0, total
	}
	start := selected - n/2
	if start < 0 {
		start = 0
	}
	end := start + n
	if end > total {
		end = total
		start = end - n
	}
	return start, end
}
