package screens

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/mangafeed/pkg/app/components"
	"github.com/kerbaras/mangafeed/pkg/app/styles"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/services"
)

type screenType int

const (
	libraryView screenType = iota
	searchView
	detailsView
)

type RootScreen struct {
	deps Deps

	currentView screenType
	// previous is the tab the details view returns to.
	previous screenType
	library  *LibraryScreen
	search   *SearchScreen
	details  *DetailsScreen
	progress *components.ProgressTracker

	width  int
	height int
}

func NewRootScreen(deps Deps) *RootScreen {
	return &RootScreen{
		deps:        deps,
		currentView: libraryView,
		library:     NewLibraryScreen(deps),
		search:      NewSearchScreen(deps),
		progress:    components.NewProgressTracker(80),
	}
}

func (r *RootScreen) Init() tea.Cmd {
	return tea.Batch(
		r.library.Init(),
		r.search.Init(),
		waitForProgress(r.deps.Downloader),
	)
}

// Close releases the feeds and the open controller.
func (r *RootScreen) Close() {
	r.library.Close()
	r.search.Close()
	if r.details != nil {
		r.details.Close()
	}
}

func (r *RootScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.height = msg.Height
		r.progress.SetWidth(msg.Width - 4)
		var cmds []tea.Cmd
		for _, s := range r.screens() {
			_, cmd := s.Update(msg)
			cmds = append(cmds, cmd)
		}
		return r, tea.Batch(cmds...)

	case services.DownloadProgress:
		r.progress.Update(msg)
		return r, waitForProgress(r.deps.Downloader)

	// Background updates go to their owner whichever view is active.
	case feedMsg:
		_, libraryCmd := r.library.Update(msg)
		_, searchCmd := r.search.Update(msg)
		return r, tea.Batch(libraryCmd, searchCmd)

	case spinner.TickMsg:
		_, cmd := r.search.Update(msg)
		return r, cmd

	case bindingsMsg, loadedMsg:
		if r.details == nil {
			return r, nil
		}
		_, cmd := r.details.Update(msg)
		return r, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return r, tea.Quit
		case "q":
			if !r.active().Typing() {
				return r, tea.Quit
			}
		case "ctrl+l":
			r.progress.Clear()
			return r, nil
		case "tab":
			if r.currentView == detailsView {
				break
			}
			if r.currentView == libraryView {
				return r, r.show(searchView)
			}
			return r, r.show(libraryView)
		}

	case SwitchScreenMsg:
		switch msg.Screen {
		case "library":
			return r, r.show(libraryView)
		case "search":
			return r, r.show(searchView)
		case "back":
			return r, r.show(r.previous)
		case "details":
			manga, ok := msg.Data.(data.Manga)
			if !ok {
				return r, nil
			}
			if r.details != nil {
				r.details.Close()
			}
			r.previous = r.currentView
			r.details = NewDetailsScreen(r.deps, manga)
			r.details.Update(tea.WindowSizeMsg{Width: r.width, Height: r.height})
			r.currentView = detailsView
			return r, r.details.Init()
		}
		return r, nil
	}

	_, cmd := r.active().Update(msg)
	return r, cmd
}

type screen interface {
	tea.Model
	Typing() bool
}

func (r *RootScreen) active() screen {
	switch r.currentView {
	case searchView:
		return r.search
	case detailsView:
		if r.details != nil {
			return r.details
		}
	}
	return r.library
}

func (r *RootScreen) screens() []screen {
	s := []screen{r.library, r.search}
	if r.details != nil {
		s = append(s, r.details)
	}
	return s
}

// show switches to a tab, closing the details view when leaving it.
func (r *RootScreen) show(view screenType) tea.Cmd {
	if r.currentView == detailsView && view != detailsView && r.details != nil {
		r.details.Close()
		r.details = nil
	}
	r.currentView = view
	if view == searchView {
		return r.search.Activate()
	}
	return r.library.Activate()
}

func (r *RootScreen) View() string {
	var content string
	switch r.currentView {
	case libraryView:
		content = r.library.View()
	case searchView:
		content = r.search.View()
	case detailsView:
		if r.details != nil {
			content = r.details.View()
		}
	}

	view := content
	if tabs := r.renderTabs(); tabs != "" {
		view = fmt.Sprintf("%s\n\n%s", tabs, content)
	}
	if r.progress.HasActive() {
		view += "\n" + r.progress.View()
	}
	return view
}

func (r *RootScreen) renderTabs() string {
	if r.currentView == detailsView {
		return ""
	}

	libraryTab := "Library"
	searchTab := "Search"

	if r.currentView == libraryView {
		libraryTab = styles.ActiveTabStyle.Render(libraryTab)
		searchTab = styles.InactiveTabStyle.Render(searchTab)
	} else {
		libraryTab = styles.InactiveTabStyle.Render(libraryTab)
		searchTab = styles.ActiveTabStyle.Render(searchTab)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, libraryTab, searchTab)
}
