package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kerbaras/mangafeed/pkg/chapters"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/sources"
)

// Bindings is what a chapter screen renders.
type Bindings struct {
	Manga     data.Manga
	InLibrary bool
	Options   chapters.Options
	// Chapters is the sorted and filtered list.
	Chapters []data.Chapter
	Total    int
	Verdict  chapters.Verdict
	History  map[string]data.HistoryEntry
	Err      error
	ErrKind  sources.Kind
}

// NextUnread picks up to n unlocked, unread and not yet downloaded
// chapters of the visible list in reading order.
func (b Bindings) NextUnread(n int, downloads DownloadOracle) []data.Chapter {
	var out []data.Chapter
	for _, ch := range chapters.ReadingOrder(b.Chapters, b.Options.Ascending) {
		if len(out) == n {
			break
		}
		if ch.Locked || b.History[ch.Key].Completed() || downloads.Status(ch.ID()) != data.DownloadNone {
			continue
		}
		out = append(out, ch)
	}
	return out
}

type ControllerOption func(*MangaController)

func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *MangaController) { c.logger = logger }
}

func WithClock(now func() time.Time) ControllerOption {
	return func(c *MangaController) { c.now = now }
}

// MangaController owns the chapter list of one manga together with its
// reading history and list options. Setters only record input; Recompute
// derives the visible list and the next chapter verdict.
type MangaController struct {
	source    sources.Source
	store     Store
	downloads DownloadOracle
	logger    *slog.Logger
	now       func() time.Time
	sourceKey string
	mangaKey  string

	mu        sync.Mutex
	gen       uint64 // bumped by every Load and fetch
	manga     data.Manga
	inLibrary bool
	all       []data.Chapter
	history   *chapters.ProgressIndex
	opts      chapters.Options
	saved     data.ChapterFilters
	err       error
	bindings  Bindings
	subs      map[chan Bindings]struct{}

	events chan Event
	done   chan struct{}
	once   sync.Once
}

func NewMangaController(manga data.Manga, source sources.Source, store Store, downloads DownloadOracle, opts ...ControllerOption) *MangaController {
	c := &MangaController{
		source:    source,
		store:     store,
		downloads: downloads,
		logger:    slog.Default(),
		now:       time.Now,
		sourceKey: manga.SourceKey,
		mangaKey:  manga.Key,
		manga:     manga,
		history:   chapters.NewProgressIndex(nil),
		opts:      chapters.Options{Filters: make(chapters.Filters)},
		subs:      make(map[chan Bindings]struct{}),
		events:    make(chan Event, 64),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("source", manga.SourceKey, "manga", manga.Key)
	return c
}

// Load reads the chapter list, history and saved options. Library mangas
// load from the store; others, or library mangas without stored chapters,
// load from the source.
func (c *MangaController) Load(ctx context.Context) error {
	src, key := c.sourceKey, c.mangaKey
	gen := c.begin()

	inLibrary, err := c.store.HasLibraryManga(ctx, src, key)
	if err != nil {
		return fmt.Errorf("failed to check library: %w", err)
	}
	history, err := c.store.GetReadingHistory(ctx, src, key)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	var (
		list    []data.Chapter
		filters data.ChapterFilters
	)
	if inLibrary {
		if list, err = c.store.GetChapters(ctx, src, key); err != nil {
			return fmt.Errorf("failed to load chapters: %w", err)
		}
		if filters, err = c.store.GetChapterFilters(ctx, src, key); err != nil {
			return fmt.Errorf("failed to load chapter filters: %w", err)
		}
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.logger.Debug("stale load dropped")
		return nil
	}
	c.inLibrary = inLibrary
	c.history.Replace(history)
	c.all = list
	c.err = nil
	if inLibrary {
		c.opts = chapters.OptionsFrom(filters)
		c.saved = filters
	}
	c.mu.Unlock()

	if len(list) == 0 {
		return c.fetch(ctx, false)
	}
	c.Recompute(ctx)
	return nil
}

// begin starts a new load; results of older ones are dropped.
func (c *MangaController) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

// Refresh refetches details and chapters from the source. Library mangas
// write the new set through to the store.
func (c *MangaController) Refresh(ctx context.Context) error {
	return c.fetch(ctx, true)
}

func (c *MangaController) fetch(ctx context.Context, details bool) error {
	gen := c.begin()
	c.mu.Lock()
	manga := c.manga
	c.mu.Unlock()

	updated, list, err := c.source.GetMangaUpdate(ctx, manga, details, true)
	if err != nil {
		c.logger.Warn("failed to fetch chapters", "err", err)
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return err
		}
		c.all = nil
		c.err = err
		c.mu.Unlock()
		c.Recompute(ctx)
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.logger.Debug("stale chapter list dropped")
		return nil
	}
	if details {
		c.manga = updated
	}
	c.all = list
	c.err = nil
	inLibrary := c.inLibrary
	manga = c.manga
	c.mu.Unlock()

	if inLibrary {
		if err := c.store.SaveManga(ctx, &manga); err != nil {
			return fmt.Errorf("failed to save manga: %w", err)
		}
		added, err := c.store.SetChapters(ctx, manga.SourceKey, manga.Key, list)
		if err != nil {
			return fmt.Errorf("failed to save chapters: %w", err)
		}
		if len(added) > 0 {
			c.logger.Info("new chapters", "count", len(added))
		}
	}
	c.Recompute(ctx)
	return nil
}

func (c *MangaController) SetSort(option chapters.SortOption, ascending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Sort = option
	c.opts.Ascending = ascending
}

// SetFilter replaces any filter of the same type.
func (c *MangaController) SetFilter(filter chapters.FilterOption) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Filters = cloneFilters(c.opts.Filters)
	c.opts.Filters.Set(filter)
}

func (c *MangaController) RemoveFilter(filterType chapters.FilterType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Filters = cloneFilters(c.opts.Filters)
	delete(c.opts.Filters, filterType)
}

// SetLanguage sets the language filter; nil shows every language.
func (c *MangaController) SetLanguage(language *string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Language = language
}

func (c *MangaController) SetScanlators(scanlators []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Scanlators = slices.Clone(scanlators)
}

// Recompute derives the visible chapters and the next chapter verdict from
// the current inputs, saves changed options for library mangas and
// notifies subscribers.
func (c *MangaController) Recompute(ctx context.Context) Bindings {
	c.mu.Lock()
	finished := c.finished
	full := chapters.Sort(c.all, c.opts.Sort, c.opts.Ascending)
	visible := chapters.View(c.all, c.opts, finished, c.history.Completed)
	verdict := chapters.Resolve(chapters.ResolveInput{
		Full:             full,
		Visible:          visible,
		Ascending:        c.opts.Ascending,
		History:          c.history,
		DownloadFinished: finished,
	})

	b := Bindings{
		Manga:     c.manga,
		InLibrary: c.inLibrary,
		Options:   cloneOptions(c.opts),
		Chapters:  visible,
		Total:     len(c.all),
		Verdict:   verdict,
		History:   c.history.Snapshot(),
		Err:       c.err,
		ErrKind:   sources.KindOf(c.err),
	}
	c.bindings = b

	var save *data.ChapterFilters
	if c.inLibrary {
		filters := c.opts.ToChapterFilters()
		if !equalFilters(filters, c.saved) {
			save = &filters
			c.saved = filters
		}
	}
	c.publishLocked(b)
	c.mu.Unlock()

	if save != nil {
		if err := c.store.SaveChapterFilters(ctx, c.sourceKey, c.mangaKey, *save); err != nil {
			c.logger.Warn("failed to save chapter filters", "err", err)
		}
	}
	return b
}

// Bindings returns the result of the last Recompute.
func (c *MangaController) Bindings() Bindings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bindings
}

// MarkRead marks chapters as completed. Locked chapters are skipped unless
// they are downloaded.
func (c *MangaController) MarkRead(ctx context.Context, chapterKeys []string) error {
	c.mu.Lock()
	var readable []string
	for _, ch := range c.all {
		if slices.Contains(chapterKeys, ch.Key) && (!ch.Locked || c.finished(ch)) {
			readable = append(readable, ch.Key)
		}
	}
	c.mu.Unlock()
	if len(readable) == 0 {
		return nil
	}

	ts := c.now().Unix()
	if err := c.store.AddHistory(ctx, c.sourceKey, c.mangaKey, readable, ts); err != nil {
		return fmt.Errorf("failed to mark read: %w", err)
	}
	c.mu.Lock()
	c.history.MarkCompleted(readable, ts)
	c.mu.Unlock()
	c.Recompute(ctx)
	return nil
}

func (c *MangaController) MarkUnread(ctx context.Context, chapterKeys []string) error {
	if err := c.store.RemoveHistory(ctx, c.sourceKey, c.mangaKey, chapterKeys); err != nil {
		return fmt.Errorf("failed to mark unread: %w", err)
	}
	c.mu.Lock()
	c.history.Clear(chapterKeys)
	c.mu.Unlock()
	c.Recompute(ctx)
	return nil
}

// SetProgress records the page reached in a chapter. Completed chapters
// keep their state.
func (c *MangaController) SetProgress(ctx context.Context, chapterKey string, page int) error {
	ts := c.now().Unix()
	key := data.ChapterKey{SourceKey: c.sourceKey, MangaKey: c.mangaKey, ChapterKey: chapterKey}
	if err := c.store.SetHistory(ctx, key, page, ts); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	c.mu.Lock()
	c.history.SetProgress(chapterKey, page, ts)
	c.mu.Unlock()
	c.Recompute(ctx)
	return nil
}

// TrackerSyncTarget reports whether a tracker that has read up to
// lastRead is ahead of local history, and which chapters would be marked.
func (c *MangaController) TrackerSyncTarget(lastRead float64) (bool, []data.Chapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !chapters.NeedsTrackerSync(c.all, c.history, lastRead) {
		return false, nil
	}
	return true, chapters.ChaptersUpTo(c.all, c.history, lastRead)
}

// Publish queues an event for Run. It drops the event once Run has exited.
func (c *MangaController) Publish(e Event) {
	src, key := identity(e)
	if src != c.sourceKey || key != c.mangaKey {
		return
	}
	select {
	case c.events <- e:
	case <-c.done:
	}
}

// Events returns the sink collaborators push changes into.
func (c *MangaController) Events() EventSink {
	return c
}

// Run applies published events until ctx ends. Subscriptions are closed
// when it returns.
func (c *MangaController) Run(ctx context.Context) error {
	defer c.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-c.events:
			c.apply(e)
			c.drain()
			c.Recompute(ctx)
		}
	}
}

// drain applies queued events so a burst causes one recompute.
func (c *MangaController) drain() {
	for {
		select {
		case e := <-c.events:
			c.apply(e)
		default:
			return
		}
	}
}

func (c *MangaController) apply(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e := e.(type) {
	case HistoryAdded:
		c.history.MarkCompleted(e.ChapterKeys, e.Timestamp)
	case HistoryRemoved:
		c.history.Clear(e.ChapterKeys)
	case HistorySet:
		c.history.SetProgress(e.Key.ChapterKey, e.Page, e.Timestamp)
	case HistoryCleared:
		c.history.ClearAll()
	case MangaUpdated:
		c.manga = e.Manga
	case DownloadStatusChanged:
		// status is read from the oracle on recompute
	}
}

// Subscribe returns a channel receiving bindings after every Recompute.
// Slow readers see only the latest bindings. The channel is closed when
// ctx ends or Run returns.
func (c *MangaController) Subscribe(ctx context.Context) <-chan Bindings {
	ch := make(chan Bindings, 1)
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		close(ch)
		return ch
	default:
	}
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
		}
		c.mu.Lock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
		c.mu.Unlock()
	}()
	return ch
}

func (c *MangaController) publishLocked(b Bindings) {
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- b:
		default:
		}
	}
}

func (c *MangaController) stop() {
	c.once.Do(func() {
		c.mu.Lock()
		close(c.done)
		for ch := range c.subs {
			close(ch)
		}
		c.subs = make(map[chan Bindings]struct{})
		c.mu.Unlock()
	})
}

func (c *MangaController) finished(ch data.Chapter) bool {
	return c.downloads != nil && c.downloads.Status(ch.ID()) == data.DownloadFinished
}

func cloneFilters(f chapters.Filters) chapters.Filters {
	out := make(chapters.Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func cloneOptions(o chapters.Options) chapters.Options {
	o.Filters = cloneFilters(o.Filters)
	o.Scanlators = slices.Clone(o.Scanlators)
	return o
}

func equalFilters(a, b data.ChapterFilters) bool {
	if a.Flags != b.Flags || !slices.Equal(a.Scanlators, b.Scanlators) {
		return false
	}
	if a.Language == nil || b.Language == nil {
		return a.Language == b.Language
	}
	return *a.Language == *b.Language
}
