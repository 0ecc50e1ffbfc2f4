package mediacache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/hangeul/internal/assessment"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeFetcher writes a real file per fetch so eviction can be observed on
// disk. URLs listed in gates block until released or cancelled.
type fakeFetcher struct {
	dir string

	mu        sync.Mutex
	calls     map[string]int
	gates     map[string]chan struct{}
	errs      map[string]error
	cancelled map[string]bool
	paths     map[string][]string
	active    int
	maxActive int
}

func newFakeFetcher(t *testing.T) *fakeFetcher {
	return &fakeFetcher{
		dir:       t.TempDir(),
		calls:     make(map[string]int),
		gates:     make(map[string]chan struct{}),
		errs:      make(map[string]error),
		cancelled: make(map[string]bool),
		paths:     make(map[string][]string),
	}
}

func (f *fakeFetcher) gate(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[url] = make(chan struct{})
}

func (f *fakeFetcher) release(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.gates[url]; ok {
		close(ch)
		delete(f.gates, url)
	}
}

func (f *fakeFetcher) failWith(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, url)
		return
	}
	f.errs[url] = err
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, _ assessment.MediaType) (string, error) {
	f.mu.Lock()
	f.calls[url]++
	n := f.calls[url]
	gate := f.gates[url]
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			f.mu.Lock()
			f.cancelled[url] = true
			f.mu.Unlock()
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	err := f.errs[url]
	f.mu.Unlock()
	if err != nil {
		return "", err
	}

	p := filepath.Join(f.dir, fmt.Sprintf("%s-%d", filepath.Base(url), n))
	if werr := os.WriteFile(p, []byte(url), 0o644); werr != nil {
		return "", werr
	}
	f.mu.Lock()
	f.paths[url] = append(f.paths[url], p)
	f.mu.Unlock()
	return p, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeFetcher) lastPath(url string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps := f.paths[url]
	if len(ps) == 0 {
		return ""
	}
	return ps[len(ps)-1]
}

func (f *fakeFetcher) wasCancelled(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[url]
}

func (f *fakeFetcher) activeCount() (active, maxActive int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.maxActive
}

func mediaURL(i int) string {
	return fmt.Sprintf("https://cdn.example.com/m/q%d.png", i)
}

// questionsWithMedia builds n questions, question i referencing mediaURL(i).
func questionsWithMedia(n int) []assessment.Question {
	qs := make([]assessment.Question, n)
	for i := range qs {
		qs[i] = assessment.Question{
			ID:        fmt.Sprintf("q%d", i),
			Text:      "질문",
			Kind:      assessment.KindImage,
			MediaRefs: []assessment.MediaRef{{URL: mediaURL(i), Type: assessment.MediaImage}},
			Options: []assessment.Option{
				{ID: "A", Content: "가", Kind: assessment.KindText},
				{ID: "B", Content: "나", Kind: assessment.KindText},
				{ID: "C", Content: "다", Kind: assessment.KindText},
				{ID: "D", Content: "라", Kind: assessment.KindText},
			},
		}
	}
	return qs
}

func newTestCache(t *testing.T, f Fetcher, maxConcurrent int) *Cache {
	t.Helper()
	c := New(Options{Fetcher: f, MaxConcurrent: maxConcurrent})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name                     string
		n, center, back, forward int
		wantLo, wantHi           int
		wantOK                   bool
	}{
		{"empty", 0, 0, 1, 1, 0, 0, false},
		{"start", 5, 0, 1, 1, 0, 1, true},
		{"middle", 5, 2, 1, 1, 1, 3, true},
		{"end", 5, 4, 1, 2, 3, 4, true},
		{"center clamped high", 5, 9, 0, 1, 4, 4, true},
		{"center clamped low", 5, -3, 0, 1, 0, 1, true},
		{"negative sizes", 5, 2, -1, -1, 2, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, ok := Window(tt.n, tt.center, tt.back, tt.forward)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLo, lo)
			assert.Equal(t, tt.wantHi, hi)
		})
	}
}

func TestSetWindow_FetchesAndEvicts(t *testing.T) {
	f := newFakeFetcher(t)
	c := newTestCache(t, f, 4)
	qs := questionsWithMedia(5)

	c.SetWindow(qs, 0, 0, 1)
	require.Eventually(t, func() bool {
		return c.IsCached(mediaURL(0)) && c.IsCached(mediaURL(1))
	}, waitFor, tick)
	assert.False(t, c.IsCached(mediaURL(2)))

	p0 := f.lastPath(mediaURL(0))
	assert.Equal(t, p0, c.Get(mediaURL(0), assessment.MediaImage))
	assert.Equal(t, mediaURL(2), c.Get(mediaURL(2), assessment.MediaImage))

	c.SetWindow(qs, 2, 0, 1)
	require.Eventually(t, func() bool {
		return c.IsCached(mediaURL(2)) && c.IsCached(mediaURL(3))
	}, waitFor, tick)

	_, ok := c.Entry(mediaURL(0))
	assert.False(t, ok)
	_, ok = c.Entry(mediaURL(1))
	assert.False(t, ok)
	assert.False(t, fileExists(p0), "evicted file should be removed")
	assert.Equal(t, 2, c.Stats().Resident)
}

func TestSetWindow_SameWindowIsIdempotent(t *testing.T) {
	f := newFakeFetcher(t)
	c := newTestCache(t, f, 4)
	qs := questionsWithMedia(4)

	c.SetWindow(qs, 1, 1, 1)
	require.Eventually(t, func() bool { return c.Stats().Ready == 3 }, waitFor, tick)
	assert.Equal(t, 3, f.totalCalls())

	c.SetWindow(qs, 1, 1, 1)
	c.SetWindow(qs, 1, 1, 1)
	assert.Equal(t, 3, f.totalCalls())
	assert.Equal(t, 3, c.Stats().Ready)
}

func TestSetWindow_PendingFetchCoalesces(t *testing.T) {
	f := newFakeFetcher(t)
	c := newTestCache(t, f, 4)
	qs := questionsWithMedia(2)
	f.gate(mediaURL(0))

	c.SetWindow(qs, 0, 0, 0)
	c.SetWindow(qs, 0, 0, 1)
	c.SetWindow(qs, 0, 0, 0)

	require.Eventually(t, func() bool { return f.callCount(mediaURL(0)) == 1 }, waitFor, tick)
	e, ok := c.Entry(mediaURL(0))
	require.True(t, ok)
	assert.Equal(t, StatePending, e.State)

	f.release(mediaURL(0))
	require.Eventually(t, func() bool { return c.IsCached(mediaURL(0)) }, waitFor, tick)
	assert.Equal(t, 1, f.callCount(mediaURL(0)))
}

func TestSetWindow_SharedURLIsRefcounted(t *testing.T) {
	f := newFakeFetcher(t)
	c := newTestCache(t, f, 4)
	qs := questionsWithMedia(4)
	shared := "https://cdn.example.com/m/shared.mp3"
	qs[0].MediaRefs = append(qs[0].MediaRefs, assessment.MediaRef{URL: shared, Type: assessment.MediaAudio})
	qs[1].MediaRefs = append(qs[1].MediaRefs, assessment.MediaRef{URL: shared, Type: assessment.MediaAudio})

	c.SetWindow(qs, 0, 0, 1)
	require.Eventually(t, func() bool { return c.IsCached(shared) }, waitFor, tick)
	path := c.Get(shared, assessment.MediaAudio)

	// q0 leaves the window, q1 still references the shared asset.
	c.SetWindow(qs, 1, 0, 1)
	assert.True(t, c.IsCached(shared))
	assert.Equal(t, path, c.Get(shared, assessment.MediaAudio))
	assert.True(t, fileExists(path))
	assert.Equal(t, 1, f.callCount(shared))

	// Neither q2 nor q3 references it.
	c.SetWindow(qs, 2, 0, 1)
	assert.False(t, c.IsCached(shared))
	assert.False(t, fileExists(path))
}

func TestSetWindow_StaleCompletionIsDiscarded(t *testing.T) {
	f := newFakeFetcher(t)
	gone := &ignoringFetcher{fakeFetcher: f}
	c := newTestCache(t, gone, 4)
	qs := questionsWithMedia(5)
	f.gate(mediaURL(0))

	c.SetWindow(qs, 0, 0, 0)
	require.Eventually(t, func() bool { return f.callCount(mediaURL(0)) == 1 }, waitFor, tick)

	// Move away before the fetch completes. The fetcher ignores the
	// cancellation and still produces a file.
	c.SetWindow(qs, 3, 0, 0)
	f.release(mediaURL(0))

	require.Eventually(t, func() bool {
		p := f.lastPath(mediaURL(0))
		return p != "" && !fileExists(p)
	}, waitFor, tick)
	_, ok := c.Entry(mediaURL(0))
	assert.False(t, ok)
	assert.Equal(t, mediaURL(0), c.Get(mediaURL(0), assessment.MediaImage))
}

// ignoringFetcher blocks on gates without honouring ctx, modelling a
// download that finishes after it was cancelled.
type ignoringFetcher struct {
	*fakeFetcher
}

func (g *ignoringFetcher) Fetch(_ context.Context, url string, mt assessment.MediaType) (string, error) {
	return g.fakeFetcher.Fetch(context.Background(), url, mt)
}

func TestCancelAll_ClearsEverything(t *testing.T) {
	f := newFakeFetcher(t)
	c := newTestCache(t, f, 4)
	qs := questionsWithMedia(4)
	f.gate(mediaURL(1))
	f.gate(mediaURL(2))

	c.SetWindow(qs, 1, 1, 1)
	require.Eventually(t, func() bool { return c.IsCached(mediaURL(0)) }, waitFor, tick)
	readyPath := c.Get(mediaURL(0), assessment.MediaImage)

	c.CancelAll()

	assert.Equal(t, Stats{}, c.Stats())
	assert.False(t, fileExists(readyPath))
	require.Eventually(t, func() bool {
		return f.wasCancelled(mediaURL(1)) && f.wasCancelled(mediaURL(2))
	}, waitFor, tick)

	// A later window starts fresh.
	c.SetWindow(qs, 3, 0, 0)
	require.Eventually(t, func() bool { return c.IsCached(mediaURL(3)) }, waitFor, tick)
	assert.Equal(t, 1, c.Stats().Resident)
}

func TestFailure_FallsBackAndDoesNotRefetch(t *testing.T) {
	f := newFakeFetcher(t)
	c := newTestCache(t, f, 4)
	qs := questionsWithMedia(2)
	f.failWith(mediaURL(0), errors.New("boom"))

	c.SetWindow(qs, 0, 0, 0)
	require.Eventually(t, func() bool {
		e, ok := c.Entry(mediaURL(0))
		return ok && e.State == StateFailed
	}, waitFor, tick)

	e, _ := c.Entry(mediaURL(0))
	var fe *FetchError
	require.True(t, errors.As(e.Err, &fe))
	assert.Equal(t, mediaURL(0), fe.URL)
	assert.Equal(t, mediaURL(0), c.Get(mediaURL(0), assessment.MediaImage))
	assert.False(t, c.IsCached(mediaURL(0)))

	c.SetWindow(qs, 0, 0, 0)
	assert.Equal(t, 1, f.callCount(mediaURL(0)))

	f.failWith(mediaURL(0), nil)
	assert.True(t, c.Retry(mediaURL(0)))
	require.Eventually(t, func() bool { return c.IsCached(mediaURL(0)) }, waitFor, tick)
	assert.Equal(t, 2, f.callCount(mediaURL(0)))

	assert.False(t, c.Retry(mediaURL(0)), "ready entries are not retried")
	assert.False(t, c.Retry(mediaURL(1)), "out-of-window entries are not retried")
}

func TestBoundedConcurrency(t *testing.T) {
	f := newFakeFetcher(t)
	c := newTestCache(t, f, 2)
	qs := questionsWithMedia(6)
	for i := range qs {
		f.gate(mediaURL(i))
	}

	c.SetWindow(qs, 0, 0, 5)
	require.Eventually(t, func() bool {
		active, _ := f.activeCount()
		return active == 2
	}, waitFor, tick)

	// Give the waiting tasks a chance to misbehave.
	time.Sleep(20 * time.Millisecond)
	_, maxActive := f.activeCount()
	assert.Equal(t, 2, maxActive)
	assert.Equal(t, 6, c.Stats().Pending)

	for i := range qs {
		f.release(mediaURL(i))
	}
	require.Eventually(t, func() bool { return c.Stats().Ready == 6 }, waitFor, tick)
	_, maxActive = f.activeCount()
	assert.LessOrEqual(t, maxActive, 2)
}

func TestCancelAll_AbortsQueuedTasks(t *testing.T) {
	f := newFakeFetcher(t)
	c := newTestCache(t, f, 1)
	qs := questionsWithMedia(3)
	for i := range qs {
		f.gate(mediaURL(i))
	}

	c.SetWindow(qs, 0, 0, 2)
	require.Eventually(t, func() bool { return f.totalCalls() == 1 }, waitFor, tick)

	c.CancelAll()
	require.NoError(t, c.Close())

	// Tasks queued on the semaphore never reached the fetcher.
	assert.Equal(t, 1, f.totalCalls())
}

func TestSubscribe_ReceivesOutcomes(t *testing.T) {
	f := newFakeFetcher(t)
	c := newTestCache(t, f, 2)
	qs := questionsWithMedia(2)
	f.failWith(mediaURL(1), errors.New("404"))

	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.SetWindow(qs, 0, 0, 1)

	got := map[string]State{}
	timeout := time.After(waitFor)
	for len(got) < 2 {
		select {
		case ev := <-events:
			got[ev.URL] = ev.State
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, StateReady, got[mediaURL(0)])
	assert.Equal(t, StateFailed, got[mediaURL(1)])
}

func TestClose_ClosesSubscriptionsAndRejectsWork(t *testing.T) {
	f := newFakeFetcher(t)
	c := New(Options{Fetcher: f, MaxConcurrent: 1})
	events, _ := c.Subscribe()

	require.NoError(t, c.Close())
	_, open := <-events
	assert.False(t, open)

	c.SetWindow(questionsWithMedia(1), 0, 0, 0)
	assert.Equal(t, 0, f.totalCalls())
	assert.Equal(t, Stats{}, c.Stats())
	require.NoError(t, c.Close())
}

func TestSetWindow_EmptyQuestionsEvictsAll(t *testing.T) {
	f := newFakeFetcher(t)
	c := newTestCache(t, f, 2)
	c.SetWindow(questionsWithMedia(2), 0, 0, 1)
	require.Eventually(t, func() bool { return c.Stats().Ready == 2 }, waitFor, tick)

	c.SetWindow(nil, 0, 0, 1)
	assert.Equal(t, Stats{}, c.Stats())
}
