// Package feed implements a paginated result stream with debounced queries,
// cancellation of superseded fetches and de-duplication across pages.
package feed

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/sources"
)

const DefaultDebounce = time.Second

// FetchFunc returns one page of results for q. Pages start at 1.
type FetchFunc func(ctx context.Context, q Query, page int) (data.PageResult, error)

// SourceFetch adapts a source's search to a FetchFunc.
func SourceFetch(src sources.Source) FetchFunc {
	return func(ctx context.Context, q Query, page int) (data.PageResult, error) {
		return src.SearchManga(ctx, q.Text, page, q.Filters)
	}
}

// State is a snapshot of a feed.
type State struct {
	Query       Query
	Entries     []data.Manga
	NextPage    int
	HasMore     bool
	Loading     bool
	LoadingMore bool
	Err         error
	ErrKind     sources.Kind
}

type SetOptions struct {
	// Delay waits for the debounce interval before fetching.
	Delay bool
	// Force refetches even if the query identity is unchanged.
	Force bool
}

type Option func(*Feed)

func WithDebounce(d time.Duration) Option {
	return func(f *Feed) { f.debounce = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Feed) { f.logger = logger }
}

type Feed struct {
	fetch    FetchFunc
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	seen    map[string]struct{}
	queried bool
	closed  bool

	// gen identifies the live query lineage; lineage is canceled when
	// the query is superseded.
	gen     uint64
	lineage context.Context
	cancel  context.CancelFunc
	initial chan struct{}
	more    chan struct{}

	subs []chan State
	wg   sync.WaitGroup
}

func New(fetch FetchFunc, opts ...Option) *Feed {
	f := &Feed{
		fetch:    fetch,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		seen:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetQuery replaces the query and starts fetching page 1. It is a no-op
// when the identity is unchanged unless opts.Force is set.
func (f *Feed) SetQuery(q Query, opts SetOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	if f.queried && !opts.Force && q.Identity() == f.state.Query.Identity() {
		return
	}
	f.queried = true

	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	f.lineage, f.cancel = context.WithCancel(context.Background())
	f.initial = make(chan struct{})
	f.more = nil

	f.state.Query = q
	f.state.NextPage = 1
	f.state.HasMore = true
	f.state.Loading = true
	f.state.LoadingMore = false
	f.state.Err = nil
	f.state.ErrKind = sources.KindUnknown
	f.publish()

	f.wg.Add(1)
	go f.loadFirst(f.lineage, f.gen, q, opts.Delay, f.initial)
}

func (f *Feed) loadFirst(ctx context.Context, gen uint64, q Query, delay bool, done chan struct{}) {
	defer f.wg.Done()
	defer close(done)

	if delay && f.debounce > 0 {
		timer := time.NewTimer(f.debounce)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
	if ctx.Err() != nil {
		return
	}

	f.logger.Debug("fetching page", "query", q.Text, "page", 1)
	result, err := f.fetch(ctx, q, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil || gen != f.gen {
		f.logger.Debug("discarding superseded page", "query", q.Text, "page", 1)
		return
	}

	f.state.Loading = false
	f.seen = make(map[string]struct{})
	if err != nil {
		f.logger.Warn("feed fetch failed", "query", q.Text, "page", 1, "err", err)
		f.state.Entries = nil
		f.state.HasMore = false
		f.state.Err = err
		f.state.ErrKind = sources.KindOf(err)
		f.publish()
		return
	}

	f.state.Entries = nil
	f.appendUnique(result.Entries)
	f.state.NextPage = 2
	f.state.HasMore = result.HasNextPage
	f.publish()
}

// LoadMore fetches the next page and appends its new entries. It waits for
// the initial page first and returns immediately if nothing is left to load
// or another LoadMore is running. Pages made only of duplicates are skipped.
func (f *Feed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	if !f.queried || f.closed || f.more != nil || !f.state.HasMore {
		f.mu.Unlock()
		return nil
	}
	gen, lineage, initial := f.gen, f.lineage, f.initial
	done := make(chan struct{})
	f.more = done
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		if f.more == done {
			f.more = nil
		}
		if gen == f.gen && f.state.LoadingMore {
			f.state.LoadingMore = false
			f.publish()
		}
		f.mu.Unlock()
		close(done)
	}()

	select {
	case <-initial:
	case <-lineage.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		again, err := f.loadNext(ctx, gen, lineage)
		if err != nil || !again {
			return err
		}
	}
}

// loadNext fetches one page. again reports that the page added nothing
// and more pages remain.
func (f *Feed) loadNext(ctx context.Context, gen uint64, lineage context.Context) (again bool, err error) {
	f.mu.Lock()
	if gen != f.gen || !f.state.HasMore || f.state.Loading {
		f.mu.Unlock()
		return false, nil
	}
	q, page := f.state.Query, f.state.NextPage
	f.state.LoadingMore = true
	f.publish()
	f.mu.Unlock()

	fetchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(lineage, cancel)
	f.logger.Debug("fetching page", "query", q.Text, "page", page)
	result, err := f.fetch(fetchCtx, q, page)
	stop()
	cancel()

	f.mu.Lock()
	defer f.mu.Unlock()
	if lineage.Err() != nil || gen != f.gen {
		f.logger.Debug("discarding superseded page", "query", q.Text, "page", page)
		return false, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		f.logger.Warn("feed fetch failed", "query", q.Text, "page", page, "err", err)
		f.state.Err = err
		f.state.ErrKind = sources.KindOf(err)
		f.publish()
		return false, err
	}

	added := f.appendUnique(result.Entries)
	f.state.NextPage = page + 1
	f.state.HasMore = result.HasNextPage
	f.state.Err = nil
	f.state.ErrKind = sources.KindUnknown
	if added == 0 && f.state.HasMore {
		f.logger.Debug("page had no new entries", "query", q.Text, "page", page)
		return true, nil
	}
	f.publish()
	return false, nil
}

// appendUnique adds entries not yet seen and returns how many were added.
func (f *Feed) appendUnique(entries []data.Manga) int {
	added := 0
	for _, entry := range entries {
		id := entry.Identity()
		if _, ok := f.seen[id]; ok {
			continue
		}
		f.seen[id] = struct{}{}
		f.state.Entries = append(f.state.Entries, entry)
		added++
	}
	return added
}

// Refresh refetches the current query from page 1.
func (f *Feed) Refresh() {
	f.mu.Lock()
	q := f.state.Query
	f.mu.Unlock()
	f.SetQuery(q, SetOptions{Force: true})
}

func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

// Updates returns a channel receiving the latest state after each change.
// Slow readers only see the most recent state. The channel is closed by Close.
func (f *Feed) Updates() <-chan State {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan State, 1)
	if f.closed {
		close(ch)
		return ch
	}
	ch <- f.snapshot()
	f.subs = append(f.subs, ch)
	return ch
}

// Wait blocks until no initial fetch is running.
func (f *Feed) Wait() {
	f.wg.Wait()
}

// Close cancels outstanding work and closes update channels.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.gen++
	if f.cancel != nil {
		f.cancel()
	}
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *Feed) snapshot() State {
	s := f.state
	s.Entries = slices.Clone(f.state.Entries)
	s.Query.Filters = slices.Clone(f.state.Query.Filters)
	return s
}

func (f *Feed) publish() {
	if len(f.subs) == 0 {
		return
	}
	s := f.snapshot()
	for _, ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
