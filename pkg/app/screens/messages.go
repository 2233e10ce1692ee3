package screens

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangafeed/pkg/config"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/feed"
	"github.com/kerbaras/mangafeed/pkg/services"
	"github.com/kerbaras/mangafeed/pkg/sources"
)

// Deps are the services shared by all screens.
type Deps struct {
	Ctx        context.Context
	Config     config.Config
	Repo       *data.Repository
	Source     sources.Source
	Library    *services.Library
	Downloader *services.Downloader
	History    *services.SearchHistory
	Logger     *slog.Logger
}

// SwitchScreenMsg asks the root screen to change view. Data carries the
// data.Manga to open for "details".
type SwitchScreenMsg struct {
	Screen string
	Data   interface{}
}

// feedMsg is a state update of the feed it came from.
type feedMsg struct {
	feed  *feed.Feed
	state feed.State
}

type bindingsMsg struct {
	controller *services.MangaController
	bindings   services.Bindings
}

// statusMsg reports the outcome of a background action.
type statusMsg struct {
	text string
	err  error
}

func waitForFeed(f *feed.Feed, updates <-chan feed.State) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-updates
		if !ok {
			return nil
		}
		return feedMsg{feed: f, state: state}
	}
}

func waitForBindings(c *services.MangaController, updates <-chan services.Bindings) tea.Cmd {
	return func() tea.Msg {
		b, ok := <-updates
		if !ok {
			return nil
		}
		return bindingsMsg{controller: c, bindings: b}
	}
}

func waitForProgress(d *services.Downloader) tea.Cmd {
	return func() tea.Msg {
		return <-d.Progress()
	}
}
