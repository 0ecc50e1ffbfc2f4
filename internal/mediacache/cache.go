// Package mediacache prefetches question media for a sliding window around
// the current question and evicts everything that leaves the window.
package mediacache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/logging"
)

// State is the lifecycle of a cache entry.
type State int

const (
	StatePending State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FetchError records why an asset could not be fetched. It never fails a
// session; Get falls back to the remote URL.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads one asset and returns the local file path.
type Fetcher interface {
	Fetch(ctx context.Context, url string, mediaType assessment.MediaType) (string, error)
}

// Entry is a snapshot of one cached asset.
type Entry struct {
	SourceURL string
	MediaType assessment.MediaType
	LocalPath string
	State     State
	Err       error
}

// Event reports a fetch outcome for a live entry.
type Event struct {
	URL   string
	State State
	Err   error
}

// Stats counts the entries currently held.
type Stats struct {
	Resident int
	Pending  int
	Ready    int
	Failed   int
}

// Options configures a Cache.
type Options struct {
	Fetcher       Fetcher
	MaxConcurrent int
	Logger        *slog.Logger
}

type entry struct {
	Entry
	epoch  uint64
	cancel context.CancelFunc
}

// Cache is a windowed media prefetch cache. All methods are safe for
// concurrent use; fetches run on background goroutines bounded by
// MaxConcurrent.
type Cache struct {
	fetcher Fetcher
	sem     *semaphore.Weighted
	logger  *slog.Logger

	mu      sync.Mutex
	epoch   uint64
	entries map[string]*entry
	subs    map[int]chan Event
	nextSub int
	closed  bool

	wg sync.WaitGroup
}

// New creates a Cache.
func New(opts Options) *Cache {
	n := opts.MaxConcurrent
	if n < 1 {
		n = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{
		fetcher: opts.Fetcher,
		sem:     semaphore.NewWeighted(int64(n)),
		logger:  logger.With("component", "mediacache"),
		entries: make(map[string]*entry),
		subs:    make(map[int]chan Event),
	}
}

// Window returns the inclusive index range [lo, hi] held for center. ok is
// false when there are no questions.
func Window(n, center, back, forward int) (lo, hi int, ok bool) {
	if n <= 0 {
		return 0, 0, false
	}
	center = min(max(center, 0), n-1)
	lo = max(center-max(back, 0), 0)
	hi = min(center+max(forward, 0), n-1)
	return lo, hi, true
}

// SetWindow makes the cache hold exactly the media of questions in the
// window around center. Newly needed assets are fetched; assets no longer
// referenced by any in-window question are cancelled and evicted. Calling
// it again with the same window starts no new fetches.
func (c *Cache) SetWindow(questions []assessment.Question, center, back, forward int) {
	type want struct {
		url string
		mt  assessment.MediaType
	}
	refs := make(map[string]int)
	var order []want

	if lo, hi, ok := Window(len(questions), center, back, forward); ok {
		for i := lo; i <= hi; i++ {
			for _, a := range questions[i].Assets() {
				if refs[a.URL] == 0 {
					order = append(order, want{a.URL, a.Type})
				}
				refs[a.URL]++
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.epoch++

	for url, e := range c.entries {
		if refs[url] > 0 {
			e.epoch = c.epoch
			continue
		}
		c.evictLocked(url, e)
	}

	started := 0
	for _, w := range order {
		if _, ok := c.entries[w.url]; ok {
			continue
		}
		c.startLocked(w.url, w.mt)
		started++
	}

	c.logger.Debug("window set",
		"center", center,
		"epoch", c.epoch,
		"resident", len(c.entries),
		"started", started)
}

// Get returns the local path of a ready asset, or url itself otherwise.
func (c *Cache) Get(url string, mediaType assessment.MediaType) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[url]; ok && e.State == StateReady {
		return e.LocalPath
	}
	c.logger.Debug("cache miss", "url", url, "type", mediaType)
	return url
}

// IsCached reports whether url is ready locally.
func (c *Cache) IsCached(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	return ok && e.State == StateReady
}

// Entry returns a snapshot of the entry for url.
func (c *Cache) Entry(url string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	if !ok {
		return Entry{}, false
	}
	return e.Entry, true
}

// Stats returns entry counts.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Resident: len(c.entries)}
	for _, e := range c.entries {
		switch e.State {
		case StatePending:
			s.Pending++
		case StateReady:
			s.Ready++
		case StateFailed:
			s.Failed++
		}
	}
	return s
}

// Retry re-fetches a failed in-window asset. It reports whether a fetch
// was started.
func (c *Cache) Retry(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	if !ok || c.closed || e.State != StateFailed {
		return false
	}
	delete(c.entries, url)
	c.startLocked(url, e.MediaType)
	return true
}

// CancelAll cancels every pending fetch and drops all entries.
func (c *Cache) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelAllLocked()
}

// Subscribe returns a channel of fetch outcomes and a func that ends the
// subscription. Events are dropped when the subscriber falls behind.
func (c *Cache) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Event, 16)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close cancels all work, waits for background fetches to return and
// releases the fetcher's storage.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.cancelAllLocked()
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.wg.Wait()

	if closer, ok := c.fetcher.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (c *Cache) cancelAllLocked() {
	c.epoch++
	for url, e := range c.entries {
		c.evictLocked(url, e)
	}
}

func (c *Cache) evictLocked(url string, e *entry) {
	e.cancel()
	if e.State == StateReady {
		c.removeFile(e.LocalPath)
	}
	delete(c.entries, url)
}

func (c *Cache) startLocked(url string, mt assessment.MediaType) {
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		Entry:  Entry{SourceURL: url, MediaType: mt, State: StatePending},
		epoch:  c.epoch,
		cancel: cancel,
	}
	c.entries[url] = e

	c.wg.Add(1)
	go c.fetch(ctx, e)
}

func (c *Cache) fetch(ctx context.Context, e *entry) {
	defer c.wg.Done()
	defer e.cancel()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.complete(e, "", err)
		return
	}
	if err := ctx.Err(); err != nil {
		c.sem.Release(1)
		c.complete(e, "", err)
		return
	}
	path, err := c.fetcher.Fetch(ctx, e.SourceURL, e.MediaType)
	c.sem.Release(1)

	c.complete(e, path, err)
}

// complete applies a fetch outcome if e is still the live entry of the
// current epoch. Otherwise the produced file is deleted.
func (c *Cache) complete(e *entry, path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := !c.closed && c.entries[e.SourceURL] == e && e.epoch == c.epoch
	if !live {
		c.removeFile(path)
		return
	}

	ev := Event{URL: e.SourceURL}
	if err != nil {
		e.State = StateFailed
		e.Err = &FetchError{URL: e.SourceURL, Err: err}
		ev.Err = e.Err
		c.logger.Warn("media fetch failed", "url", e.SourceURL, "error", err)
	} else {
		e.State = StateReady
		e.LocalPath = path
	}
	ev.State = e.State

	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *Cache) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("remove cached file", "path", path, "error", err)
	}
}
