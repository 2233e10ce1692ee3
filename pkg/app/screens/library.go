package screens

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangafeed/pkg/app/components"
	"github.com/kerbaras/mangafeed/pkg/app/styles"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/feed"
	"github.com/kerbaras/mangafeed/pkg/services"
	"github.com/kerbaras/mangafeed/pkg/sources"
)

// statusCycle is the order the status key steps through.
var statusCycle = []string{"", "ongoing", "completed", "hiatus", "cancelled"}

type LibraryScreen struct {
	deps      Deps
	feed      *feed.Feed
	updates   <-chan feed.State
	mangaList *components.MangaList
	filter    textinput.Model
	status    int
	entries   []data.Manga
	stats     map[string]services.LibraryStats
	keys      libraryKeys
	help      help.Model
	width     int
	height    int
	err       error
}

func NewLibraryScreen(deps Deps) *LibraryScreen {
	f := feed.New(
		services.LibraryFetch(deps.Repo, deps.Config.PageSize),
		feed.WithDebounce(time.Duration(deps.Config.Debounce)),
		feed.WithLogger(deps.Logger),
	)

	ti := textinput.New()
	ti.Placeholder = "Filter library..."
	ti.CharLimit = 100
	ti.Width = 40

	return &LibraryScreen{
		deps:      deps,
		feed:      f,
		updates:   f.Updates(),
		mangaList: components.NewMangaList("No manga in library. Press tab to search."),
		filter:    ti,
		stats:     make(map[string]services.LibraryStats),
		keys:      defaultLibraryKeys,
		help:      help.New(),
	}
}

func (s *LibraryScreen) Init() tea.Cmd {
	s.feed.SetQuery(s.query(), feed.SetOptions{Force: true})
	return waitForFeed(s.feed, s.updates)
}

// Activate reloads the library when the view becomes visible again.
func (s *LibraryScreen) Activate() tea.Cmd {
	s.stats = make(map[string]services.LibraryStats)
	s.feed.Refresh()
	return nil
}

// Typing reports that key presses go to the filter input.
func (s *LibraryScreen) Typing() bool {
	return s.filter.Focused()
}

func (s *LibraryScreen) Close() {
	s.feed.Close()
}

func (s *LibraryScreen) query() feed.Query {
	q := feed.Query{Text: s.filter.Value()}
	if status := statusCycle[s.status]; status != "" {
		q.Filters = []sources.FilterValue{{ID: services.StatusFilter, Included: []string{status}}}
	}
	return q
}

func (s *LibraryScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.mangaList.Width = msg.Width - 4
		s.mangaList.Height = msg.Height - 12
		s.help.Width = msg.Width

	case feedMsg:
		if msg.feed != s.feed {
			return s, nil
		}
		s.entries = msg.state.Entries
		s.err = msg.state.Err
		s.mangaList.Loading = msg.state.Loading || msg.state.LoadingMore
		s.mangaList.HasMore = msg.state.HasMore
		s.refreshItems()
		return s, tea.Batch(waitForFeed(s.feed, s.updates), s.loadStats(msg.state.Entries))

	case statsLoadedMsg:
		for id, st := range msg.stats {
			s.stats[id] = st
		}
		s.refreshItems()

	case statusMsg:
		s.err = msg.err
		if msg.err == nil {
			s.feed.Refresh()
		}

	case tea.KeyMsg:
		if s.filter.Focused() {
			return s, s.updateFilter(msg)
		}
		switch {
		case key.Matches(msg, s.keys.Up):
			s.mangaList.Prev()
		case key.Matches(msg, s.keys.Down):
			s.mangaList.Next()
			if s.mangaList.NearEnd(2) {
				return s, s.loadMore
			}
		case key.Matches(msg, s.keys.Filter):
			s.filter.Focus()
			return s, textinput.Blink
		case key.Matches(msg, s.keys.Status):
			s.status = (s.status + 1) % len(statusCycle)
			s.feed.SetQuery(s.query(), feed.SetOptions{})
		case key.Matches(msg, s.keys.Refresh):
			s.stats = make(map[string]services.LibraryStats)
			s.feed.Refresh()
		case key.Matches(msg, s.keys.Delete):
			if selected := s.mangaList.Selected(); selected != nil {
				return s, s.removeManga(selected.Manga)
			}
		case key.Matches(msg, s.keys.Open):
			if selected := s.mangaList.Selected(); selected != nil {
				manga := selected.Manga
				return s, func() tea.Msg {
					return SwitchScreenMsg{Screen: "details", Data: manga}
				}
			}
		}
	}

	return s, nil
}

func (s *LibraryScreen) updateFilter(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter", "esc":
		s.filter.Blur()
		return nil
	}
	before := s.filter.Value()
	var cmd tea.Cmd
	s.filter, cmd = s.filter.Update(msg)
	if s.filter.Value() != before {
		s.feed.SetQuery(s.query(), feed.SetOptions{Delay: true})
	}
	return cmd
}

func (s *LibraryScreen) refreshItems() {
	items := make([]components.MangaListItem, len(s.entries))
	for i, m := range s.entries {
		st, ok := s.stats[m.Identity()]
		items[i] = components.MangaListItem{
			Manga:           m,
			ChapterCount:    st.Chapters,
			UnreadCount:     st.Unread,
			DownloadedCount: st.Downloaded,
			HasCounts:       ok,
		}
	}
	s.mangaList.SetItems(items)
}

func (s *LibraryScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}

	header := styles.TitleStyle.Render("📚 Manga Library")

	filterStyle := styles.InputStyle
	if s.filter.Focused() {
		filterStyle = styles.FocusedInputStyle
	}
	filterView := filterStyle.Render(s.filter.View())
	if status := statusCycle[s.status]; status != "" {
		filterView += "  " + styles.StatusStyle(status).Render("status: "+status)
	}

	var errorMsg string
	if s.err != nil {
		errorMsg = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	}

	return fmt.Sprintf("%s\n%s\n\n%s%s\n%s",
		header,
		filterView,
		errorMsg,
		s.mangaList.View(),
		styles.HelpStyle.Render(s.help.View(s.keys)),
	)
}

type statsLoadedMsg struct {
	stats map[string]services.LibraryStats
}

func (s *LibraryScreen) loadStats(entries []data.Manga) tea.Cmd {
	var missing []data.Manga
	for _, m := range entries {
		if _, ok := s.stats[m.Identity()]; !ok {
			missing = append(missing, m)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return func() tea.Msg {
		stats := make(map[string]services.LibraryStats, len(missing))
		for _, m := range missing {
			st, err := s.deps.Library.Stats(s.deps.Ctx, m.SourceKey, m.Key)
			if err != nil {
				s.deps.Logger.Warn("failed to load library stats", "source", m.SourceKey, "manga", m.Key, "err", err)
				continue
			}
			stats[m.Identity()] = st
		}
		return statsLoadedMsg{stats: stats}
	}
}

func (s *LibraryScreen) loadMore() tea.Msg {
	if err := s.feed.LoadMore(s.deps.Ctx); err != nil {
		s.deps.Logger.Warn("failed to load more library entries", "err", err)
	}
	return nil
}

func (s *LibraryScreen) removeManga(manga data.Manga) tea.Cmd {
	return func() tea.Msg {
		err := s.deps.Library.Remove(s.deps.Ctx, manga.SourceKey, manga.Key)
		return statusMsg{text: "Removed " + manga.Title, err: err}
	}
}
