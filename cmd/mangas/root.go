package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kerbaras/mangafeed/pkg/app"
	"github.com/kerbaras/mangafeed/pkg/config"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/integrations"
	"github.com/kerbaras/mangafeed/pkg/services"
	"github.com/kerbaras/mangafeed/pkg/sources"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "mangas",
	Short: "A beautiful manga bookshelf CLI",
	Long:  "Follow, read and download your manga collection with a beautiful TUI and CLI",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Launch TUI by default; logs go to a file so they don't tear the screen
		s, err := openSession(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()

		return app.NewApp(s.cfg, s.repo, s.source, s.logger).Run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.Path(), "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	rootCmd.SilenceUsage = true
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// session holds what every command opens: config, logger, store and source.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	repo    *data.Repository
	source  sources.Source
	library *services.Library
	closers []io.Closer
}

func openSession(ctx context.Context, toFile bool) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}

	s := &session{cfg: cfg}
	var w io.Writer = os.Stderr
	if toFile && cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		s.closers = append(s.closers, f)
		w = f
	}
	s.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(s.logger)

	repo, err := data.OpenRepository(cfg.DBPath)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	s.repo = repo
	s.closers = append(s.closers, repo)
	s.source = sources.NewMangaDex(sources.WithRateLimit(cfg.RateLimit))
	s.library = services.NewLibrary(s.source, repo, s.logger)

	s.logger.DebugContext(ctx, "session opened", "db", cfg.DBPath, "source", s.source.Key())
	return s, nil
}

// downloader builds a downloader with the finished downloads of manga
// restored. device overrides the configured e-reader profile.
func (s *session) downloader(ctx context.Context, manga data.Manga, device string) (*services.Downloader, error) {
	opts := []services.DownloaderOption{
		services.WithPageRate(s.cfg.PageRate),
		services.WithDownloaderLogger(s.logger),
	}
	if device == "" {
		device = s.cfg.Device
	}
	if device != "" {
		optimizer, err := integrations.NewPageOptimizer(device)
		if err != nil {
			return nil, err
		}
		opts = append(opts, services.WithPageProcessor(optimizer))
	}

	d := services.NewDownloader(s.source, s.repo, s.cfg.DownloadDir, opts...)
	if err := d.Restore(ctx, manga.SourceKey, manga.Key); err != nil {
		return nil, fmt.Errorf("failed to restore downloads: %w", err)
	}
	return d, nil
}

// controller loads the chapter list of manga with its download state.
func (s *session) controller(ctx context.Context, manga data.Manga, device string) (*services.MangaController, *services.Downloader, error) {
	d, err := s.downloader(ctx, manga, device)
	if err != nil {
		return nil, nil, err
	}
	c := services.NewMangaController(manga, s.source, s.repo, d, services.WithControllerLogger(s.logger))
	if err := c.Load(ctx); err != nil {
		return nil, nil, err
	}
	return c, d, nil
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i].Close()
	}
}

func truncateString(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
