package screens

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangafeed/pkg/app/components"
	"github.com/kerbaras/mangafeed/pkg/app/styles"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/feed"
	"github.com/kerbaras/mangafeed/pkg/sources"
)

type SearchScreen struct {
	deps    Deps
	feed    *feed.Feed
	updates <-chan feed.State
	input   textinput.Model
	results *components.MangaList
	spinner spinner.Model
	state   feed.State
	// recalled is the position of the history entry shown in the input,
	// counted from the most recent; -1 when typing freely.
	recalled int
	started  bool
	keys     searchKeys
	help     help.Model
	width    int
	height   int
	notice   string
	err      error
}

func NewSearchScreen(deps Deps) *SearchScreen {
	f := feed.New(
		feed.SourceFetch(deps.Source),
		feed.WithDebounce(time.Duration(deps.Config.Debounce)),
		feed.WithLogger(deps.Logger),
	)

	ti := textinput.New()
	ti.Placeholder = "Search manga..."
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.StatusDownloading

	return &SearchScreen{
		deps:     deps,
		feed:     f,
		updates:  f.Updates(),
		input:    ti,
		results:  components.NewMangaList("No results found"),
		spinner:  sp,
		recalled: -1,
		keys:     defaultSearchKeys,
		help:     help.New(),
	}
}

func (s *SearchScreen) Init() tea.Cmd {
	return waitForFeed(s.feed, s.updates)
}

// Activate loads the popular titles the first time the view is shown.
func (s *SearchScreen) Activate() tea.Cmd {
	if !s.started {
		s.started = true
		s.feed.SetQuery(feed.Query{}, feed.SetOptions{})
	}
	return tea.Batch(textinput.Blink, s.spinner.Tick)
}

func (s *SearchScreen) Typing() bool {
	return s.input.Focused()
}

func (s *SearchScreen) Close() {
	s.feed.Close()
}

func (s *SearchScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.results.Width = msg.Width - 4
		s.results.Height = msg.Height - 14
		s.help.Width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd

	case feedMsg:
		if msg.feed != s.feed {
			return s, nil
		}
		s.state = msg.state
		s.err = msg.state.Err
		s.results.Loading = msg.state.Loading || msg.state.LoadingMore
		s.results.HasMore = msg.state.HasMore
		items := make([]components.MangaListItem, len(msg.state.Entries))
		for i, m := range msg.state.Entries {
			items[i] = components.MangaListItem{Manga: m}
		}
		s.results.SetItems(items)
		return s, waitForFeed(s.feed, s.updates)

	case statusMsg:
		s.notice, s.err = msg.text, msg.err

	case tea.KeyMsg:
		if key.Matches(msg, s.keys.History) {
			s.recall()
			return s, nil
		}
		if s.input.Focused() {
			return s, s.updateInput(msg)
		}
		switch {
		case key.Matches(msg, s.keys.Focus):
			s.input.Focus()
			return s, textinput.Blink
		case key.Matches(msg, s.keys.Up):
			s.results.Prev()
		case key.Matches(msg, s.keys.Down):
			s.results.Next()
			if s.results.NearEnd(2) {
				return s, s.loadMore
			}
		case key.Matches(msg, s.keys.Open):
			if selected := s.results.Selected(); selected != nil {
				manga := selected.Manga
				return s, func() tea.Msg {
					return SwitchScreenMsg{Screen: "details", Data: manga}
				}
			}
		case key.Matches(msg, s.keys.Add):
			if selected := s.results.Selected(); selected != nil {
				return s, s.addToLibrary(selected.Manga)
			}
		}
	}

	return s, nil
}

func (s *SearchScreen) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, s.keys.Focus):
		s.input.Blur()
		return nil
	case msg.Type == tea.KeyEnter:
		query := strings.TrimSpace(s.input.Value())
		s.feed.SetQuery(feed.Query{Text: query}, feed.SetOptions{Force: true})
		s.input.Blur()
		s.recalled = -1
		return s.remember(query)
	}

	before := s.input.Value()
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	if s.input.Value() != before {
		s.recalled = -1
		s.feed.SetQuery(feed.Query{Text: s.input.Value()}, feed.SetOptions{Delay: true})
	}
	return cmd
}

// recall steps back through the search history into the input.
func (s *SearchScreen) recall() {
	entries := s.deps.History.Entries()
	if len(entries) == 0 {
		return
	}
	s.recalled = (s.recalled + 1) % len(entries)
	query := entries[len(entries)-1-s.recalled]
	s.input.SetValue(query)
	s.input.CursorEnd()
	s.feed.SetQuery(feed.Query{Text: query}, feed.SetOptions{})
}

func (s *SearchScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}

	header := styles.TitleStyle.Render("🔍 Search Manga")

	inputStyle := styles.InputStyle
	if s.input.Focused() {
		inputStyle = styles.FocusedInputStyle
	}
	inputView := inputStyle.Render(s.input.View())
	if s.state.Loading {
		inputView += " " + s.spinner.View()
	}

	var recent string
	if entries := s.deps.History.Entries(); len(entries) > 0 && s.input.Value() == "" {
		n := min(len(entries), 5)
		last := make([]string, 0, n)
		for i := len(entries) - 1; i >= len(entries)-n; i-- {
			last = append(last, entries[i])
		}
		recent = styles.MutedStyle.Render("Recent: "+strings.Join(last, " • ")) + "\n"
	}

	var notice string
	switch {
	case s.err != nil:
		notice = styles.StatusError.Render(errorText(s.err, s.state.ErrKind)) + "\n\n"
	case s.notice != "":
		notice = styles.StatusCompleted.Render(s.notice) + "\n\n"
	}

	var subtitle string
	if len(s.state.Entries) > 0 {
		subtitle = styles.SubtitleStyle.Render(fmt.Sprintf("Results for %q:", s.state.Query.Text)) + "\n"
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s%s%s\n%s",
		header,
		inputView,
		recent,
		notice,
		subtitle,
		s.results.View(),
		styles.HelpStyle.Render(s.help.View(s.keys)),
	)
}

// errorText turns a feed error into a message for the user.
func errorText(err error, kind sources.Kind) string {
	switch kind {
	case sources.KindNetwork:
		return "Network error, check your connection: " + err.Error()
	case sources.KindNoResult:
		return "No results found"
	}
	return "Error: " + err.Error()
}

func (s *SearchScreen) loadMore() tea.Msg {
	if err := s.feed.LoadMore(s.deps.Ctx); err != nil {
		s.deps.Logger.Warn("failed to load more results", "err", err)
	}
	return nil
}

func (s *SearchScreen) remember(query string) tea.Cmd {
	return func() tea.Msg {
		if err := s.deps.History.Add(s.deps.Ctx, query); err != nil {
			s.deps.Logger.Warn("failed to save search history", "err", err)
		}
		return nil
	}
}

func (s *SearchScreen) addToLibrary(manga data.Manga) tea.Cmd {
	return func() tea.Msg {
		added, chapters, err := s.deps.Library.Add(s.deps.Ctx, manga)
		if err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: fmt.Sprintf("Added %s (%d chapters) to your library", added.Title, len(chapters))}
	}
}
