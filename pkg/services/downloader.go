package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/integrations"
	"github.com/kerbaras/mangafeed/pkg/sources"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const maxConcurrentDownloads = 3

// DownloadProgress represents the progress of a chapter download
type DownloadProgress struct {
	JobID       uuid.UUID
	Key         data.ChapterKey
	Label       string
	CurrentPage int
	TotalPages  int
	Status      data.DownloadStatus
	Path        string
	Err         error
}

// DownloadOracle reports the download state of a chapter.
type DownloadOracle interface {
	Status(key data.ChapterKey) data.DownloadStatus
}

type DownloaderOption func(*Downloader)

func WithPageProcessor(p integrations.PageProcessor) DownloaderOption {
	return func(d *Downloader) { d.processor = p }
}

// WithPageRate limits image requests per second; zero disables the limit.
func WithPageRate(perSecond float64) DownloaderOption {
	return func(d *Downloader) {
		if perSecond <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) { d.client = client }
}

func WithDownloaderLogger(logger *slog.Logger) DownloaderOption {
	return func(d *Downloader) { d.logger = logger }
}

// Downloader fetches chapter pages and packages each chapter as an EPUB.
// It is also the download status oracle for chapter views.
type Downloader struct {
	source      sources.Source
	store       DownloadStore
	downloadDir string
	client      *http.Client
	limiter     *rate.Limiter
	processor   integrations.PageProcessor
	logger      *slog.Logger

	mu       sync.Mutex
	status   map[data.ChapterKey]data.DownloadStatus
	paths    map[data.ChapterKey]string
	sinks    map[int]EventSink
	nextSink int
	progress chan DownloadProgress
}

func NewDownloader(source sources.Source, store DownloadStore, downloadDir string, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		source:      source,
		store:       store,
		downloadDir: downloadDir,
		client:      &http.Client{Timeout: time.Minute},
		limiter:     rate.NewLimiter(rate.Limit(2), 1),
		logger:      slog.Default(),
		status:      make(map[data.ChapterKey]data.DownloadStatus),
		paths:       make(map[data.ChapterKey]string),
		sinks:       make(map[int]EventSink),
		progress:    make(chan DownloadProgress, 100),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Progress returns the channel receiving progress updates. Updates are
// dropped while the channel is full.
func (d *Downloader) Progress() <-chan DownloadProgress {
	return d.progress
}

// AddSink registers sink for DownloadStatusChanged events until remove is called.
func (d *Downloader) AddSink(sink EventSink) (remove func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSink
	d.nextSink++
	d.sinks[id] = sink
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.sinks, id)
	}
}

func (d *Downloader) Status(key data.ChapterKey) data.DownloadStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status[key]
}

// Finished is a chapter predicate for finished downloads.
func (d *Downloader) Finished(ch data.Chapter) bool {
	return d.Status(ch.ID()) == data.DownloadFinished
}

// Path returns the packaged file of a finished download.
func (d *Downloader) Path(key data.ChapterKey) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	path, ok := d.paths[key]
	return path, ok
}

// Restore loads finished downloads of a manga from the store. Records
// whose file is gone are dropped.
func (d *Downloader) Restore(ctx context.Context, sourceKey, mangaKey string) error {
	downloads, err := d.store.GetDownloads(ctx, sourceKey, mangaKey)
	if err != nil {
		return err
	}
	for chapterKey, path := range downloads {
		key := data.ChapterKey{SourceKey: sourceKey, MangaKey: mangaKey, ChapterKey: chapterKey}
		if _, err := os.Stat(path); err != nil {
			d.logger.Warn("download file missing", "chapter", key.String(), "path", path)
			if err := d.store.DeleteDownload(ctx, key); err != nil {
				return err
			}
			continue
		}
		d.mu.Lock()
		d.status[key] = data.DownloadFinished
		d.paths[key] = path
		d.mu.Unlock()
	}
	return nil
}

// DownloadChapters downloads chapters with bounded concurrency. Chapters
// that are already downloaded or in progress are skipped. Failures of
// single chapters are joined into the returned error.
func (d *Downloader) DownloadChapters(ctx context.Context, manga data.Manga, chapters []data.Chapter) (uuid.UUID, error) {
	jobID := uuid.New()

	var queued []data.Chapter
	for _, ch := range chapters {
		if d.claim(jobID, ch.ID()) {
			queued = append(queued, ch)
		}
	}
	d.logger.Info("download job started", "job", jobID, "manga", manga.Title, "chapters", len(queued))

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(maxConcurrentDownloads)
	for _, ch := range queued {
		g.Go(func() error {
			if err := d.DownloadChapter(ctx, jobID, manga, ch); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", ch.Label(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	return jobID, errors.Join(errs...)
}

// DownloadChapter downloads a single chapter and streams it to an EPUB
func (d *Downloader) DownloadChapter(ctx context.Context, jobID uuid.UUID, manga data.Manga, chapter data.Chapter) (err error) {
	key := chapter.ID()
	d.setStatus(jobID, key, data.DownloadDownloading)

	builder := integrations.NewEPubBuilder(d.downloadDir)
	defer func() {
		if err != nil {
			builder.Abort()
			d.setStatus(jobID, key, data.DownloadNone)
			d.sendProgress(DownloadProgress{JobID: jobID, Key: key, Label: chapter.Label(), Status: data.DownloadNone, Err: err})
			d.logger.Error("chapter download failed", "job", jobID, "chapter", key.String(), "err", err)
		}
	}()

	pages, err := d.source.GetPages(ctx, chapter)
	if err != nil {
		return fmt.Errorf("failed to get pages: %w", err)
	}
	if len(pages) == 0 {
		return sources.ErrNoResult
	}

	if err := builder.Init(manga, chapter); err != nil {
		return fmt.Errorf("failed to initialize EPUB builder: %w", err)
	}

	if manga.CoverURL != "" {
		if cover, err := d.download(ctx, manga.CoverURL); err == nil {
			if err := builder.SetCover(integrations.CoverData{Content: cover.Content, ContentType: cover.ContentType}); err != nil {
				d.logger.Debug("cover skipped", "chapter", key.String(), "err", err)
			}
		} else {
			d.logger.Debug("cover download failed", "url", manga.CoverURL, "err", err)
		}
	}

	for i, pageURL := range pages {
		d.sendProgress(DownloadProgress{
			JobID:       jobID,
			Key:         key,
			Label:       chapter.Label(),
			CurrentPage: i + 1,
			TotalPages:  len(pages),
			Status:      data.DownloadDownloading,
		})

		image, err := d.download(ctx, pageURL)
		if err != nil {
			return fmt.Errorf("failed to download page %d: %w", i, err)
		}
		page := integrations.ImageData{Content: image.Content, ContentType: image.ContentType, Index: i}
		if d.processor != nil {
			if page, err = d.processor.Process(page); err != nil {
				return err
			}
		}
		if err := builder.Next(page); err != nil {
			return fmt.Errorf("failed to add page %d to EPUB: %w", i, err)
		}
	}

	path, err := builder.Done()
	if err != nil {
		return fmt.Errorf("failed to finalize EPUB: %w", err)
	}
	if err := d.store.SaveDownload(ctx, key, path, time.Now().Unix()); err != nil {
		return err
	}

	d.mu.Lock()
	d.paths[key] = path
	d.mu.Unlock()
	d.setStatus(jobID, key, data.DownloadFinished)
	d.sendProgress(DownloadProgress{
		JobID:       jobID,
		Key:         key,
		Label:       chapter.Label(),
		CurrentPage: len(pages),
		TotalPages:  len(pages),
		Status:      data.DownloadFinished,
		Path:        path,
	})
	return nil
}

// Delete removes a downloaded chapter file and its record.
func (d *Downloader) Delete(ctx context.Context, key data.ChapterKey) error {
	d.mu.Lock()
	path, ok := d.paths[key]
	delete(d.paths, key)
	d.mu.Unlock()

	if ok {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := d.store.DeleteDownload(ctx, key); err != nil {
		return err
	}
	d.setStatus(uuid.Nil, key, data.DownloadNone)
	return nil
}

// download fetches one image after waiting for the rate limiter.
func (d *Downloader) download(ctx context.Context, url string) (integrations.ImageData, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return integrations.ImageData{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return integrations.ImageData{}, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return integrations.ImageData{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return integrations.ImageData{}, fmt.Errorf("bad status: %s", resp.Status)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return integrations.ImageData{}, fmt.Errorf("failed to read image content: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	return integrations.ImageData{Content: content, ContentType: contentType}, nil
}

func (d *Downloader) setStatus(jobID uuid.UUID, key data.ChapterKey, status data.DownloadStatus) {
	d.mu.Lock()
	if status == data.DownloadNone {
		delete(d.status, key)
	} else {
		d.status[key] = status
	}
	sinks := d.sinkList()
	d.mu.Unlock()

	d.publish(sinks, DownloadStatusChanged{JobID: jobID, Key: key, Status: status})
}

// claim queues key unless it is already queued, downloading or finished.
func (d *Downloader) claim(jobID uuid.UUID, key data.ChapterKey) bool {
	d.mu.Lock()
	if d.status[key] != data.DownloadNone {
		d.mu.Unlock()
		return false
	}
	d.status[key] = data.DownloadQueued
	sinks := d.sinkList()
	d.mu.Unlock()

	d.publish(sinks, DownloadStatusChanged{JobID: jobID, Key: key, Status: data.DownloadQueued})
	return true
}

// sinkList copies the registered sinks. d.mu must be held.
func (d *Downloader) sinkList() []EventSink {
	sinks := make([]EventSink, 0, len(d.sinks))
	for _, sink := range d.sinks {
		sinks = append(sinks, sink)
	}
	return sinks
}

func (d *Downloader) publish(sinks []EventSink, event DownloadStatusChanged) {
	for _, sink := range sinks {
		sink.Publish(event)
	}
}

// sendProgress sends a progress update (non-blocking)
func (d *Downloader) sendProgress(progress DownloadProgress) {
	select {
	case d.progress <- progress:
	default:
	}
}
