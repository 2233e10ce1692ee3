package screens

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/mangafeed/pkg/app/components"
	"github.com/kerbaras/mangafeed/pkg/app/styles"
	"github.com/kerbaras/mangafeed/pkg/chapters"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/services"
)

const downloadNextCount = 5

// DetailsScreen shows the chapter list of one manga. It owns a
// MangaController for as long as it is open.
type DetailsScreen struct {
	deps       Deps
	ctx        context.Context
	cancel     context.CancelFunc
	controller *services.MangaController
	manga      data.Manga
	updates    <-chan services.Bindings
	removeSink func()

	bindings services.Bindings
	loaded   bool
	chapters *components.ChapterList
	keys     detailsKeys
	help     help.Model
	width    int
	height   int
	notice   string
	err      error
}

func NewDetailsScreen(deps Deps, manga data.Manga) *DetailsScreen {
	ctx, cancel := context.WithCancel(deps.Ctx)
	c := services.NewMangaController(manga, deps.Source, deps.Repo, deps.Downloader,
		services.WithControllerLogger(deps.Logger))

	list := components.NewChapterList()
	list.Downloads = deps.Downloader

	s := &DetailsScreen{
		deps:       deps,
		ctx:        ctx,
		cancel:     cancel,
		controller: c,
		manga:      manga,
		updates:    c.Subscribe(ctx),
		removeSink: deps.Downloader.AddSink(c.Events()),
		bindings:   services.Bindings{Manga: manga},
		chapters:   list,
		keys:       defaultDetailsKeys,
		help:       help.New(),
	}
	go c.Run(ctx)
	return s
}

func (s *DetailsScreen) Init() tea.Cmd {
	return tea.Batch(waitForBindings(s.controller, s.updates), s.load)
}

// Close stops the controller. Downloads keep running.
func (s *DetailsScreen) Close() {
	s.removeSink()
	s.cancel()
}

func (s *DetailsScreen) Typing() bool {
	return false
}

func (s *DetailsScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.chapters.Height = max(msg.Height-18, 3)
		s.help.Width = msg.Width

	case bindingsMsg:
		if msg.controller != s.controller {
			return s, nil
		}
		s.bindings = msg.bindings
		s.chapters.SetBindings(msg.bindings)
		return s, waitForBindings(s.controller, s.updates)

	case loadedMsg:
		s.loaded = true
		s.err = msg.err
		s.bindings = msg.bindings
		s.chapters.SetBindings(msg.bindings)
		s.chapters.JumpTo(msg.bindings.Verdict.Chapter.Key)

	case statusMsg:
		s.notice, s.err = msg.text, msg.err

	case tea.KeyMsg:
		s.notice = ""
		return s, s.handleKey(msg)
	}

	return s, nil
}

func (s *DetailsScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	b := s.bindings
	current, hasCurrent := s.chapters.Current()

	switch {
	case key.Matches(msg, s.keys.Back):
		return func() tea.Msg { return SwitchScreenMsg{Screen: "back"} }
	case key.Matches(msg, s.keys.Up):
		s.chapters.Move(-1)
	case key.Matches(msg, s.keys.Down):
		s.chapters.Move(1)
	case key.Matches(msg, s.keys.PageUp):
		s.chapters.Move(-s.chapters.Height)
	case key.Matches(msg, s.keys.PageDown):
		s.chapters.Move(s.chapters.Height)
	case key.Matches(msg, s.keys.Next):
		if b.Verdict.Kind == chapters.VerdictChapter && !s.chapters.JumpTo(b.Verdict.Chapter.Key) {
			s.notice = "The next chapter is hidden by the current filters"
		}
	case key.Matches(msg, s.keys.Sort):
		next := (b.Options.Sort + 1) % 3
		return s.recompute(func(c *services.MangaController) { c.SetSort(next, b.Options.Ascending) })
	case key.Matches(msg, s.keys.Order):
		return s.recompute(func(c *services.MangaController) { c.SetSort(b.Options.Sort, !b.Options.Ascending) })
	case key.Matches(msg, s.keys.Downloaded):
		return s.cycleFilter(chapters.FilterDownloaded)
	case key.Matches(msg, s.keys.Unread):
		return s.cycleFilter(chapters.FilterUnread)
	case key.Matches(msg, s.keys.Locked):
		return s.cycleFilter(chapters.FilterLocked)
	case key.Matches(msg, s.keys.Refresh):
		return s.refresh
	case key.Matches(msg, s.keys.Library):
		return s.toggleLibrary(b)
	case key.Matches(msg, s.keys.DownloadNext):
		return s.download(b.NextUnread(downloadNextCount, s.deps.Downloader))
	}

	if !hasCurrent {
		return nil
	}
	switch {
	case key.Matches(msg, s.keys.Read):
		if b.History[current.Key].Completed() {
			return s.action("", func(ctx context.Context) error {
				return s.controller.MarkUnread(ctx, []string{current.Key})
			})
		}
		if current.Locked && s.deps.Downloader.Status(current.ID()) != data.DownloadFinished {
			s.notice = "Locked chapters can only be marked read once downloaded"
			return nil
		}
		return s.action("", func(ctx context.Context) error {
			return s.controller.MarkRead(ctx, []string{current.Key})
		})
	case key.Matches(msg, s.keys.Previous):
		var previous []string
		for _, ch := range chapters.ReadingOrder(b.Chapters, b.Options.Ascending) {
			if ch.Key == current.Key {
				break
			}
			previous = append(previous, ch.Key)
		}
		return s.action(fmt.Sprintf("Marked %d chapter(s) read", len(previous)), func(ctx context.Context) error {
			return s.controller.MarkRead(ctx, previous)
		})
	case key.Matches(msg, s.keys.Download):
		return s.download([]data.Chapter{current})
	case key.Matches(msg, s.keys.Erase):
		if _, ok := s.deps.Downloader.Path(current.ID()); !ok {
			return nil
		}
		return s.action("Deleted "+current.Label(), func(ctx context.Context) error {
			return s.deps.Downloader.Delete(ctx, current.ID())
		})
	}
	return nil
}

// cycleFilter steps a filter type through off, include and exclude.
func (s *DetailsScreen) cycleFilter(t chapters.FilterType) tea.Cmd {
	exclude, set := s.bindings.Options.Filters[t]
	return s.recompute(func(c *services.MangaController) {
		switch {
		case !set:
			c.SetFilter(chapters.FilterOption{Type: t})
		case !exclude:
			c.SetFilter(chapters.FilterOption{Type: t, Exclude: true})
		default:
			c.RemoveFilter(t)
		}
	})
}

func (s *DetailsScreen) recompute(set func(c *services.MangaController)) tea.Cmd {
	set(s.controller)
	return func() tea.Msg {
		s.controller.Recompute(s.ctx)
		return nil
	}
}

func (s *DetailsScreen) action(done string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(s.ctx); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: done}
	}
}

type loadedMsg struct {
	bindings services.Bindings
	err      error
}

func (s *DetailsScreen) load() tea.Msg {
	m := s.manga
	if err := s.deps.Downloader.Restore(s.ctx, m.SourceKey, m.Key); err != nil {
		s.deps.Logger.Warn("failed to restore downloads", "source", m.SourceKey, "manga", m.Key, "err", err)
	}
	err := s.controller.Load(s.ctx)
	return loadedMsg{bindings: s.controller.Bindings(), err: err}
}

func (s *DetailsScreen) refresh() tea.Msg {
	err := s.controller.Refresh(s.ctx)
	return loadedMsg{bindings: s.controller.Bindings(), err: err}
}

func (s *DetailsScreen) toggleLibrary(b services.Bindings) tea.Cmd {
	return func() tea.Msg {
		var (
			text string
			err  error
		)
		if b.InLibrary {
			err = s.deps.Library.Remove(s.ctx, b.Manga.SourceKey, b.Manga.Key)
			text = "Removed from library"
		} else {
			_, _, err = s.deps.Library.Add(s.ctx, b.Manga)
			text = "Added to library"
		}
		if err == nil {
			err = s.controller.Load(s.ctx)
		}
		return statusMsg{text: text, err: err}
	}
}

// download runs on the app context so leaving the screen does not cancel it.
func (s *DetailsScreen) download(list []data.Chapter) tea.Cmd {
	if len(list) == 0 {
		s.notice = "Nothing to download"
		return nil
	}
	manga := s.bindings.Manga
	s.notice = fmt.Sprintf("Downloading %d chapter(s)", len(list))
	return func() tea.Msg {
		_, err := s.deps.Downloader.DownloadChapters(s.deps.Ctx, manga, list)
		return statusMsg{text: fmt.Sprintf("Downloaded %d chapter(s)", len(list)), err: err}
	}
}

func (s *DetailsScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}
	b := s.bindings

	header := styles.TitleStyle.Render(fmt.Sprintf("📖 %s", b.Manga.Title))

	var notice string
	switch {
	case s.err != nil:
		notice = styles.StatusError.Render(errorText(s.err, b.ErrKind)) + "\n"
	case s.notice != "":
		notice = styles.StatusCompleted.Render(s.notice) + "\n"
	}

	body := styles.StatusDownloading.Render("Loading chapters...")
	if s.loaded || len(b.Chapters) > 0 {
		body = s.chapters.View()
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s%s\n%s",
		header,
		s.renderInfo(),
		s.renderOptions(),
		notice,
		body,
		styles.HelpStyle.Render(s.help.View(s.keys)),
	)
}

func (s *DetailsScreen) renderInfo() string {
	b := s.bindings
	m := b.Manga

	status := m.Status
	if status == "" {
		status = "unknown"
	}
	library := styles.MutedStyle.Render("not in library")
	if b.InLibrary {
		library = styles.StatusCompleted.Render("in library")
	}

	desc := strings.Join(strings.Fields(m.Description), " ")
	if width := 2 * (s.width - 10); width > 3 && len([]rune(desc)) > width {
		desc = string([]rune(desc)[:width-3]) + "..."
	}

	info := lipgloss.JoinVertical(
		lipgloss.Left,
		styles.TextStyle.Render(desc),
		styles.StatusStyle(m.Status).Render(status)+styles.MutedStyle.Render(" • "+m.SourceKey+" • ")+library,
		describeVerdict(b.Verdict),
	)
	return styles.CardStyle.Width(s.width - 4).Render(info)
}

func (s *DetailsScreen) renderOptions() string {
	opts := s.bindings.Options

	order := "descending"
	if opts.Ascending {
		order = "ascending"
	}
	parts := []string{fmt.Sprintf("sort: %s %s", opts.Sort, order)}
	for _, f := range opts.Filters.Options() {
		prefix := "+"
		if f.Exclude {
			prefix = "-"
		}
		parts = append(parts, prefix+f.Type.String())
	}
	if opts.Language != nil {
		parts = append(parts, "lang: "+*opts.Language)
	}
	parts = append(parts, fmt.Sprintf("%d of %d chapters", len(s.bindings.Chapters), s.bindings.Total))
	return styles.SubtitleStyle.Render(strings.Join(parts, " • "))
}

func describeVerdict(v chapters.Verdict) string {
	switch v.Kind {
	case chapters.VerdictChapter:
		verb := "Start"
		if v.InProgress {
			verb = "Continue"
		}
		return styles.NextChapterStyle.Render(fmt.Sprintf("▶ %s %s", verb, v.Chapter.Label()))
	case chapters.VerdictAllRead:
		return styles.StatusCompleted.Render("✓ All chapters read")
	case chapters.VerdictAllLocked:
		return styles.LockedStyle.Render("🔒 Remaining chapters are locked")
	}
	return styles.MutedStyle.Render("No chapters")
}
