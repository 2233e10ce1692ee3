package app

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangafeed/pkg/app/screens"
	"github.com/kerbaras/mangafeed/pkg/config"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/integrations"
	"github.com/kerbaras/mangafeed/pkg/services"
	"github.com/kerbaras/mangafeed/pkg/sources"
)

type App struct {
	cfg    config.Config
	repo   *data.Repository
	source sources.Source
	logger *slog.Logger
}

func NewApp(cfg config.Config, repo *data.Repository, source sources.Source, logger *slog.Logger) *App {
	return &App{cfg: cfg, repo: repo, source: source, logger: logger}
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := []services.DownloaderOption{
		services.WithPageRate(a.cfg.PageRate),
		services.WithDownloaderLogger(a.logger),
	}
	if a.cfg.Device != "" {
		optimizer, err := integrations.NewPageOptimizer(a.cfg.Device)
		if err != nil {
			return err
		}
		opts = append(opts, services.WithPageProcessor(optimizer))
	}

	history := services.NewSearchHistory(a.repo)
	if err := history.Load(ctx); err != nil {
		a.logger.Warn("failed to load search history", "err", err)
	}

	root := screens.NewRootScreen(screens.Deps{
		Ctx:        ctx,
		Config:     a.cfg,
		Repo:       a.repo,
		Source:     a.source,
		Library:    services.NewLibrary(a.source, a.repo, a.logger),
		Downloader: services.NewDownloader(a.source, a.repo, a.cfg.DownloadDir, opts...),
		History:    history,
		Logger:     a.logger,
	})
	defer root.Close()

	a.logger.Info("starting tui")
	p := tea.NewProgram(root, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
