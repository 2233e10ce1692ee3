package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mangas(prefix string, from, n int) []data.Manga {
	out := make([]data.Manga, n)
	for i := range out {
		out[i] = data.Manga{SourceKey: "src", Key: fmt.Sprintf("%s%d", prefix, from+i)}
	}
	return out
}

func identities(entries []data.Manga) []string {
	out := make([]string, len(entries))
	for i, m := range entries {
		out[i] = m.SourceKey + "." + m.Key
	}
	return out
}

// pagedFetch serves fixed pages and records every request.
type pagedFetch struct {
	mu    sync.Mutex
	pages map[int]data.PageResult
	errs  map[int]error
	calls []string
}

func (p *pagedFetch) fetch(_ context.Context, q Query, page int) (data.PageResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, fmt.Sprintf("%s:%d", q.Text, page))
	if err := p.errs[page]; err != nil {
		delete(p.errs, page)
		return data.PageResult{}, err
	}
	return p.pages[page], nil
}

func (p *pagedFetch) requested() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type fetchReply struct {
	result data.PageResult
	err    error
}

type fetchCall struct {
	query Query
	page  int
	reply chan fetchReply
}

func (c fetchCall) respond(result data.PageResult) {
	c.reply <- fetchReply{result: result}
}

// controlledFetch hands every request to the test, which decides when and
// how it completes. Replies are delivered even after cancellation.
type controlledFetch struct {
	calls chan fetchCall
}

func newControlledFetch() *controlledFetch {
	return &controlledFetch{calls: make(chan fetchCall)}
}

func (c *controlledFetch) fetch(_ context.Context, q Query, page int) (data.PageResult, error) {
	call := fetchCall{query: q, page: page, reply: make(chan fetchReply, 1)}
	c.calls <- call
	r := <-call.reply
	return r.result, r.err
}

func (c *controlledFetch) next(t *testing.T) fetchCall {
	t.Helper()
	select {
	case call := <-c.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fetch")
		return fetchCall{}
	}
}

func (c *controlledFetch) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case call := <-c.calls:
		t.Fatalf("unexpected fetch of %q page %d", call.query.Text, call.page)
	case <-time.After(wait):
	}
}

func TestSetQueryLoadsFirstPage(t *testing.T) {
	src := &pagedFetch{pages: map[int]data.PageResult{
		1: {Entries: mangas("n", 0, 20), HasNextPage: true},
	}}
	f := New(src.fetch)
	defer f.Close()

	f.SetQuery(Query{Text: "naruto"}, SetOptions{})
	f.Wait()

	state := f.State()
	assert.Len(t, state.Entries, 20)
	assert.Equal(t, 2, state.NextPage)
	assert.True(t, state.HasMore)
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)
	assert.Equal(t, []string{"naruto:1"}, src.requested())
}

func TestLoadMoreSkipsDuplicatePages(t *testing.T) {
	t.Run("third page has new entries", func(t *testing.T) {
		src := &pagedFetch{pages: map[int]data.PageResult{
			1: {Entries: mangas("n", 0, 20), HasNextPage: true},
			2: {Entries: mangas("n", 0, 20), HasNextPage: true},
			3: {Entries: mangas("n", 15, 10), HasNextPage: false},
		}}
		f := New(src.fetch)
		defer f.Close()

		f.SetQuery(Query{Text: "naruto"}, SetOptions{})
		f.Wait()
		require.NoError(t, f.LoadMore(context.Background()))

		state := f.State()
		assert.Equal(t, []string{"naruto:1", "naruto:2", "naruto:3"}, src.requested())
		assert.Len(t, state.Entries, 25)
		assert.Equal(t, "src.n24", state.Entries[24].SourceKey+"."+state.Entries[24].Key)
		assert.False(t, state.HasMore)
		assert.False(t, state.LoadingMore)
	})

	t.Run("everything duplicated", func(t *testing.T) {
		src := &pagedFetch{pages: map[int]data.PageResult{
			1: {Entries: mangas("n", 0, 20), HasNextPage: true},
			2: {Entries: mangas("n", 0, 20), HasNextPage: true},
			3: {Entries: mangas("n", 5, 5), HasNextPage: false},
		}}
		f := New(src.fetch)
		defer f.Close()

		f.SetQuery(Query{Text: "naruto"}, SetOptions{})
		f.Wait()
		require.NoError(t, f.LoadMore(context.Background()))

		state := f.State()
		assert.Len(t, state.Entries, 20)
		assert.False(t, state.HasMore)
		assert.Equal(t, 4, state.NextPage)
	})
}

func TestDebounceDispatchesOnlyLatestQuery(t *testing.T) {
	const debounce = 80 * time.Millisecond

	var (
		mu      sync.Mutex
		queries []string
		fetchAt time.Time
	)
	fetch := func(_ context.Context, q Query, page int) (data.PageResult, error) {
		mu.Lock()
		defer mu.Unlock()
		queries = append(queries, q.Text)
		fetchAt = time.Now()
		return data.PageResult{Entries: mangas(q.Text, 0, 1)}, nil
	}
	f := New(fetch, WithDebounce(debounce))
	defer f.Close()

	f.SetQuery(Query{Text: "a"}, SetOptions{Delay: true})
	time.Sleep(debounce / 4)
	second := time.Now()
	f.SetQuery(Query{Text: "ab"}, SetOptions{Delay: true})
	f.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ab"}, queries)
	assert.GreaterOrEqual(t, fetchAt.Sub(second), debounce)
	assert.Equal(t, []string{"src.ab0"}, identities(f.State().Entries))
}

func TestSupersededResultsAreDiscarded(t *testing.T) {
	for _, firstReplyFirst := range []bool{true, false} {
		t.Run(fmt.Sprintf("first reply first=%v", firstReplyFirst), func(t *testing.T) {
			src := newControlledFetch()
			f := New(src.fetch)
			defer f.Close()

			f.SetQuery(Query{Text: "a"}, SetOptions{})
			first := src.next(t)
			f.SetQuery(Query{Text: "b"}, SetOptions{})
			second := src.next(t)
			assert.Equal(t, "b", second.query.Text)

			if firstReplyFirst {
				first.respond(data.PageResult{Entries: mangas("old", 0, 3), HasNextPage: true})
				second.respond(data.PageResult{Entries: mangas("new", 0, 2)})
			} else {
				second.respond(data.PageResult{Entries: mangas("new", 0, 2)})
				first.respond(data.PageResult{Entries: mangas("old", 0, 3), HasNextPage: true})
			}
			f.Wait()

			state := f.State()
			assert.Equal(t, []string{"src.new0", "src.new1"}, identities(state.Entries))
			assert.False(t, state.HasMore)
			assert.Equal(t, "b", state.Query.Text)
		})
	}
}

func TestSetQueryIdentityGuard(t *testing.T) {
	src := &pagedFetch{pages: map[int]data.PageResult{1: {Entries: mangas("n", 0, 1)}}}
	f := New(src.fetch)
	defer f.Close()

	f.SetQuery(Query{Text: "naruto"}, SetOptions{})
	f.Wait()
	f.SetQuery(Query{Text: "naruto"}, SetOptions{})
	f.Wait()
	assert.Len(t, src.requested(), 1)

	f.SetQuery(Query{Text: "naruto"}, SetOptions{Force: true})
	f.Wait()
	assert.Len(t, src.requested(), 2)

	filtered := Query{Text: "naruto", Filters: []sources.FilterValue{{ID: "status", Included: []string{"ongoing"}}}}
	f.SetQuery(filtered, SetOptions{})
	f.Wait()
	assert.Len(t, src.requested(), 3)
}

func TestSetQueryCaseAndSpacingAreNewQueries(t *testing.T) {
	src := &pagedFetch{pages: map[int]data.PageResult{1: {Entries: mangas("n", 0, 1)}}}
	f := New(src.fetch)
	defer f.Close()

	for _, text := range []string{"Naruto", "naruto", "naruto  "} {
		f.SetQuery(Query{Text: text}, SetOptions{})
		f.Wait()
		assert.Equal(t, text, f.State().Query.Text)
	}
	assert.Equal(t, []string{"Naruto:1", "naruto:1", "naruto  :1"}, src.requested())
}

func TestInitialFailureClearsEntries(t *testing.T) {
	src := &pagedFetch{pages: map[int]data.PageResult{1: {Entries: mangas("n", 0, 3), HasNextPage: true}}}
	f := New(src.fetch)
	defer f.Close()

	f.SetQuery(Query{Text: "a"}, SetOptions{})
	f.Wait()
	require.Len(t, f.State().Entries, 3)

	src.errs = map[int]error{1: &sources.Error{Kind: sources.KindNetwork, Op: "search", Err: errors.New("offline")}}
	f.SetQuery(Query{Text: "b"}, SetOptions{})
	f.Wait()

	state := f.State()
	assert.Empty(t, state.Entries)
	assert.False(t, state.HasMore)
	assert.Error(t, state.Err)
	assert.Equal(t, sources.KindNetwork, state.ErrKind)

	// nothing to page through after a failed query
	assert.NoError(t, f.LoadMore(context.Background()))
	assert.Len(t, src.requested(), 2)
}

func TestLoadMoreFailureKeepsEntries(t *testing.T) {
	src := &pagedFetch{
		pages: map[int]data.PageResult{
			1: {Entries: mangas("n", 0, 3), HasNextPage: true},
			2: {Entries: mangas("n", 3, 3), HasNextPage: false},
		},
		errs: map[int]error{2: &sources.Error{Kind: sources.KindDecoding, Op: "search"}},
	}
	f := New(src.fetch)
	defer f.Close()

	f.SetQuery(Query{Text: "a"}, SetOptions{})
	f.Wait()

	err := f.LoadMore(context.Background())
	require.Error(t, err)
	state := f.State()
	assert.Len(t, state.Entries, 3)
	assert.True(t, state.HasMore)
	assert.Equal(t, 2, state.NextPage)
	assert.Equal(t, sources.KindDecoding, state.ErrKind)

	require.NoError(t, f.LoadMore(context.Background()))
	state = f.State()
	assert.Len(t, state.Entries, 6)
	assert.NoError(t, state.Err)
	assert.False(t, state.HasMore)
}

func TestLoadMoreWaitsForInitialPage(t *testing.T) {
	src := newControlledFetch()
	f := New(src.fetch)
	defer f.Close()

	f.SetQuery(Query{Text: "a"}, SetOptions{})
	first := src.next(t)
	assert.Equal(t, 1, first.page)

	done := make(chan error, 1)
	go func() { done <- f.LoadMore(context.Background()) }()

	src.none(t, 50*time.Millisecond)
	first.respond(data.PageResult{Entries: mangas("n", 0, 2), HasNextPage: true})

	second := src.next(t)
	assert.Equal(t, 2, second.page)
	second.respond(data.PageResult{Entries: mangas("n", 2, 2)})

	require.NoError(t, <-done)
	assert.Equal(t, []string{"src.n0", "src.n1", "src.n2", "src.n3"}, identities(f.State().Entries))
}

func TestLoadMoreIsSingleFlight(t *testing.T) {
	src := newControlledFetch()
	f := New(src.fetch)
	defer f.Close()

	f.SetQuery(Query{Text: "a"}, SetOptions{})
	src.next(t).respond(data.PageResult{Entries: mangas("n", 0, 1), HasNextPage: true})
	f.Wait()

	done := make(chan error, 1)
	go func() { done <- f.LoadMore(context.Background()) }()
	call := src.next(t)
	assert.True(t, f.State().LoadingMore)

	assert.NoError(t, f.LoadMore(context.Background()))
	src.none(t, 20*time.Millisecond)

	call.respond(data.PageResult{Entries: mangas("n", 1, 1)})
	require.NoError(t, <-done)
	assert.Len(t, f.State().Entries, 2)
}

func TestLoadMoreSupersededByNewQuery(t *testing.T) {
	src := newControlledFetch()
	f := New(src.fetch)
	defer f.Close()

	f.SetQuery(Query{Text: "a"}, SetOptions{})
	src.next(t).respond(data.PageResult{Entries: mangas("a", 0, 1), HasNextPage: true})
	f.Wait()

	done := make(chan error, 1)
	go func() { done <- f.LoadMore(context.Background()) }()
	more := src.next(t)

	f.SetQuery(Query{Text: "b"}, SetOptions{})
	fresh := src.next(t)
	fresh.respond(data.PageResult{Entries: mangas("b", 0, 1)})
	f.Wait()

	more.respond(data.PageResult{Entries: mangas("a", 1, 5)})
	require.NoError(t, <-done)

	state := f.State()
	assert.Equal(t, []string{"src.b0"}, identities(state.Entries))
	assert.False(t, state.LoadingMore)
}

func TestLoadMoreNoop(t *testing.T) {
	src := &pagedFetch{pages: map[int]data.PageResult{1: {Entries: mangas("n", 0, 1)}}}
	f := New(src.fetch)
	defer f.Close()

	assert.NoError(t, f.LoadMore(context.Background()))
	assert.Empty(t, src.requested())

	f.SetQuery(Query{Text: "a"}, SetOptions{})
	f.Wait()
	assert.NoError(t, f.LoadMore(context.Background()))
	assert.Equal(t, []string{"a:1"}, src.requested())
}

func TestCloseCancelsPendingDebounce(t *testing.T) {
	src := &pagedFetch{}
	f := New(src.fetch, WithDebounce(time.Hour))

	f.SetQuery(Query{Text: "a"}, SetOptions{Delay: true})
	f.Close()

	assert.Empty(t, src.requested())
}

func TestNoDuplicateIdentities(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 30; i++ {
		pages := make(map[int]data.PageResult)
		count := 1 + r.Intn(8)
		for p := 1; p <= count; p++ {
			pages[p] = data.PageResult{
				Entries:     mangas("m", r.Intn(30), r.Intn(10)),
				HasNextPage: p < count,
			}
		}
		src := &pagedFetch{pages: pages}
		f := New(src.fetch)

		f.SetQuery(Query{Text: "q"}, SetOptions{})
		f.Wait()
		for f.State().HasMore {
			require.NoError(t, f.LoadMore(context.Background()))
		}

		seen := make(map[string]bool)
		for _, id := range identities(f.State().Entries) {
			assert.False(t, seen[id], "duplicate %s", id)
			seen[id] = true
		}
		f.Close()
	}
}

func TestUpdatesReceiveLatestState(t *testing.T) {
	src := &pagedFetch{pages: map[int]data.PageResult{1: {Entries: mangas("n", 0, 2)}}}
	f := New(src.fetch)

	updates := f.Updates()
	f.SetQuery(Query{Text: "a"}, SetOptions{})
	f.Wait()

	var last State
	require.Eventually(t, func() bool {
		select {
		case last = <-updates:
		default:
		}
		return !last.Loading && len(last.Entries) == 2
	}, time.Second, 5*time.Millisecond)

	f.Close()
	_, open := <-updates
	assert.False(t, open)
}

func TestQueryIdentity(t *testing.T) {
	assert.Equal(t, Query{Text: "One Piece"}.Identity(), Query{Text: "One Piece"}.Identity())
	assert.NotEqual(t, Query{Text: "One Piece"}.Identity(), Query{Text: "one piece"}.Identity())

	a := Query{Filters: []sources.FilterValue{{ID: "tags", Included: []string{"x"}}}}
	b := Query{Filters: []sources.FilterValue{{ID: "tags", Excluded: []string{"x"}}}}
	assert.NotEqual(t, a.Identity(), b.Identity())
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, NormalizeText("One  Piece"), NormalizeText(" one piece"))
	assert.Equal(t, NormalizeText("Straße"), NormalizeText("STRASSE"))
	assert.Equal(t, NormalizeText("Pok\u00e9mon"), NormalizeText("Poke\u0301mon"))
}
