// Package session runs one timed assessment attempt: question navigation,
// answer capture, the countdown and submission.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/abhisek/hangeul/internal/api"
	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/events"
	"github.com/abhisek/hangeul/internal/logging"
)

// Backend is the part of the remote API a session needs.
type Backend interface {
	AssessmentQuestions(ctx context.Context, assessmentID string) ([]assessment.Question, error)
	SubmitAssessment(ctx context.Context, assessmentID string, req assessment.SubmitRequest) (*assessment.Result, error)
}

// MediaWindow holds prefetched media around the current question.
type MediaWindow interface {
	SetWindow(questions []assessment.Question, center, back, forward int)
	CancelAll()
}

// Options configures a Controller.
type Options struct {
	Backend Backend

	// Media is optional.
	Media MediaWindow

	// Events is optional.
	Events events.Publisher

	// Clock drives the countdown. Defaults to the real clock.
	Clock clockwork.Clock

	// Back and Forward size the prefetch window.
	Back    int
	Forward int

	Logger *slog.Logger
}

// Controller owns the state of one session at a time. Every operation is
// serialized by one mutex; network work runs on goroutines and reports back
// through the same lock. Operations never block on the network.
type Controller struct {
	backend Backend
	media   MediaWindow
	events  events.Publisher
	clock   clockwork.Clock
	back    int
	forward int
	logger  *slog.Logger
	timer   *Timer

	mu         sync.Mutex
	generation uint64
	sessionID  string
	assessment assessment.Assessment
	status     Status
	questions  []assessment.Question
	byID       map[string]assessment.Question
	index      int
	answers    *AnswerStore
	startedAt  time.Time
	remaining  int
	active     time.Duration // countdown time used before the current run
	resumedAt  time.Time
	submitRev  int  // answer revision the last submit was keyed with
	revised    bool // answers changed since the last submit attempt
	expired    bool
	auto       bool
	timeTaken  int
	result     *assessment.Result
	err        error
	errFrom    Status
	timerRun   uint64
	cancel     context.CancelFunc
	closed     bool

	subs    map[int]chan State
	nextSub int

	wg sync.WaitGroup
}

// NewController creates an idle Controller.
func NewController(opts Options) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	pub := opts.Events
	if pub == nil {
		pub = events.Nop{}
	}
	return &Controller{
		backend: opts.Backend,
		media:   opts.Media,
		events:  pub,
		clock:   clock,
		back:    max(opts.Back, 0),
		forward: max(opts.Forward, 0),
		logger:  logger.With("component", "session"),
		timer:   NewTimer(clock),
		answers: NewAnswerStore(),
		subs:    make(map[int]chan State),
	}
}

// Start begins a new attempt at a. Valid from Idle and Error. Questions are
// loaded in the background; observers see Loading, then InProgress or Error.
func (c *Controller) Start(a assessment.Assessment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.status != StatusIdle && c.status != StatusError {
		return c.invalid("start")
	}

	c.teardownLocked()
	c.clearLocked()
	c.generation++
	c.sessionID = uuid.NewString()
	c.assessment = a

	c.logger.Info("session start",
		"session_id", c.sessionID,
		"assessment_id", a.ID,
		"duration_s", a.DurationSeconds)

	c.loadLocked()
	return nil
}

// Answer records optionID for questionID. Re-answering replaces the earlier
// choice. Valid only in InProgress and before the countdown expired.
func (c *Controller) Answer(questionID, optionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.status != StatusInProgress {
		return c.invalid("answer")
	}
	if c.expired {
		return ErrTimeExpired
	}
	q, ok := c.byID[questionID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, questionID)
	}
	if !q.HasOption(optionID) {
		return fmt.Errorf("%w: %q on question %q", ErrUnknownOption, optionID, questionID)
	}

	if prev, ok := c.answers.Get(questionID); ok && prev == optionID {
		return nil
	}
	c.answers.Upsert(questionID, optionID)
	if c.submitRev > 0 {
		c.revised = true
	}
	c.notifyLocked()
	return nil
}

// GoTo moves to question i, clamped to the question range.
func (c *Controller) GoTo(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goToLocked("goto", i)
}

// Next moves forward one question. It is a no-op on the last question.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goToLocked("next", c.index+1)
}

// Previous moves back one question. It is a no-op on the first question.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goToLocked("previous", c.index-1)
}

// Finish submits the current answers. It shares the submit path with the
// countdown expiry. A second call while Submitting or Completed is a no-op.
func (c *Controller) Finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	switch c.status {
	case StatusSubmitting, StatusCompleted:
		return nil
	case StatusInProgress:
		c.submitLocked(c.expired)
		return nil
	default:
		return c.invalid("finish")
	}
}

// Retry redoes the failed operation: a load from Error(Loading), a submit
// from Error(Submitting), or a submit from InProgress after a surfaced
// submit failure.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	switch {
	case c.status == StatusError && c.errFrom == StatusLoading:
		c.logger.Info("retry load", "session_id", c.sessionID)
		c.loadLocked()
		return nil
	case c.status == StatusError && c.errFrom == StatusSubmitting:
		c.logger.Info("retry submit", "session_id", c.sessionID)
		c.submitLocked(c.auto || c.expired)
		return nil
	case c.status == StatusInProgress && c.err != nil:
		c.logger.Info("retry submit", "session_id", c.sessionID)
		c.submitLocked(c.auto || c.expired)
		return nil
	default:
		return c.invalid("retry")
	}
}

// Reset discards the session from any status: the timer stops, in-flight
// requests are abandoned, all media work is cancelled and answers cleared.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// Close resets, waits for background goroutines, and closes the media
// cache if it is closable. Observers' channels are closed.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.resetLocked()
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.wg.Wait()

	if closer, ok := c.media.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel carrying the latest state after every change,
// starting with the current one. Slow readers only see the newest snapshot.
// The returned func ends the subscription.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 1)
	if c.closed {
		ch <- c.snapshotLocked()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()

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

func (c *Controller) invalid(op string) error {
	err := &TransitionError{Op: op, From: c.status}
	c.logger.Warn("invalid transition", "op", op, "status", c.status.String())
	return err
}

func (c *Controller) goToLocked(op string, i int) error {
	if c.closed {
		return ErrClosed
	}
	if c.status != StatusInProgress {
		return c.invalid(op)
	}
	i = min(max(i, 0), len(c.questions)-1)
	if i == c.index {
		return nil
	}
	c.index = i
	c.refreshWindowLocked()
	c.notifyLocked()
	return nil
}

func (c *Controller) loadLocked() {
	c.status = StatusLoading
	c.err = nil
	c.errFrom = StatusIdle
	c.startedAt = c.clock.Now()
	c.index = 0
	c.remaining = max(c.assessment.DurationSeconds, 0)
	c.active = 0
	c.submitRev = 0
	c.revised = false

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	gen := c.generation
	id := c.assessment.ID

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		qs, err := c.backend.AssessmentQuestions(ctx, id)
		c.loaded(gen, qs, err)
	}()

	c.notifyLocked()
}

func (c *Controller) loaded(gen uint64, qs []assessment.Question, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.status != StatusLoading {
		c.logger.Debug("discard stale load", "generation", gen)
		return
	}
	c.cancel = nil

	if err == nil && len(qs) == 0 {
		err = ErrNoQuestions
	}
	if err != nil {
		c.status = StatusError
		c.errFrom = StatusLoading
		c.err = fmt.Errorf("load questions: %w", err)
		c.logger.Warn("load failed", "session_id", c.sessionID, "error", err)

		ev := c.newEvent(events.TypeLoadFailed)
		ev.Error = err.Error()
		ev.Network = errors.Is(err, api.ErrNetwork)
		c.publishLocked(ev)
		c.notifyLocked()
		return
	}

	c.questions = qs
	c.byID = make(map[string]assessment.Question, len(qs))
	for _, q := range qs {
		c.byID[q.ID] = q
	}
	c.status = StatusInProgress
	c.index = 0
	c.startTimerLocked()
	c.refreshWindowLocked()

	c.logger.Info("session in progress",
		"session_id", c.sessionID,
		"questions", len(qs),
		"timed", c.timed())

	ev := c.newEvent(events.TypeStarted)
	ev.QuestionCount = len(qs)
	c.publishLocked(ev)
	c.notifyLocked()
}

func (c *Controller) submitLocked(auto bool) {
	c.pauseTimerLocked()
	c.status = StatusSubmitting
	c.err = nil
	c.errFrom = StatusIdle
	c.auto = auto

	c.timeTaken = c.timeTakenLocked()

	req := assessment.SubmitRequest{
		Answers:          c.answers.Ordered(c.questions),
		TimeTakenSeconds: c.timeTaken,
		AutoSubmitted:    auto,
	}

	ctx, cancel := context.WithCancel(api.WithIdempotencyKey(context.Background(), c.submitKeyLocked()))
	c.cancel = cancel
	gen := c.generation
	id := c.assessment.ID

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		res, err := c.backend.SubmitAssessment(ctx, id, req)
		c.submitted(gen, req, res, err)
	}()

	c.logger.Info("submitting",
		"session_id", c.sessionID,
		"answered", len(req.Answers),
		"auto", auto)

	ev := c.newEvent(events.TypeSubmitting)
	ev.Answered = len(req.Answers)
	ev.TimeTakenSeconds = req.TimeTakenSeconds
	ev.AutoSubmitted = auto
	c.publishLocked(ev)
	c.notifyLocked()
}

// submitKeyLocked returns the idempotency key for the next submit. Retries
// with unchanged answers reuse the key so the backend counts them once; a
// retry after the answers changed gets a new key so the backend scores the
// new answers instead of replaying the earlier result.
func (c *Controller) submitKeyLocked() string {
	if c.submitRev == 0 || c.revised {
		c.submitRev++
		c.revised = false
	}
	if c.submitRev == 1 {
		return c.sessionID
	}
	return fmt.Sprintf("%s.%d", c.sessionID, c.submitRev)
}

func (c *Controller) submitted(gen uint64, req assessment.SubmitRequest, res *assessment.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.status != StatusSubmitting {
		c.logger.Debug("discard stale submit", "generation", gen)
		return
	}
	c.cancel = nil

	if err == nil && res == nil {
		err = fmt.Errorf("%w: empty result", api.ErrInvalidPayload)
	}
	if err == nil {
		c.status = StatusCompleted
		c.result = res
		if c.media != nil {
			c.media.CancelAll()
		}
		c.logger.Info("session completed",
			"session_id", c.sessionID,
			"score", res.Score,
			"passed", res.Passed)

		ev := c.newEvent(events.TypeCompleted)
		ev.Answered = len(req.Answers)
		ev.TimeTakenSeconds = req.TimeTakenSeconds
		ev.AutoSubmitted = req.AutoSubmitted
		ev.Result = res
		c.publishLocked(ev)
		c.notifyLocked()
		return
	}

	network := errors.Is(err, api.ErrNetwork)
	c.err = fmt.Errorf("submit answers: %w", err)
	if c.timed() && c.remaining == 0 {
		c.expired = true
	}
	expiredNow := false
	if network {
		// Answers and remaining time are kept; the countdown resumes
		// unless it already ran out. Partial seconds used before each
		// failed submit still count.
		c.status = StatusInProgress
		if c.timed() && !c.expired {
			c.remaining = min(c.remaining, c.countdownLocked())
			expiredNow = c.remaining == 0
		}
		c.startTimerLocked()
	} else {
		c.status = StatusError
		c.errFrom = StatusSubmitting
	}
	c.logger.Warn("submit failed",
		"session_id", c.sessionID,
		"network", network,
		"error", err)

	ev := c.newEvent(events.TypeSubmitFailed)
	ev.Answered = len(req.Answers)
	ev.AutoSubmitted = req.AutoSubmitted
	ev.Error = err.Error()
	ev.Network = network
	c.publishLocked(ev)

	if expiredNow {
		c.expired = true
		c.logger.Info("time expired", "session_id", c.sessionID)
		c.submitLocked(true)
		return
	}
	c.notifyLocked()
}

func (c *Controller) onTick(run uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if run != c.timerRun || c.status != StatusInProgress || c.remaining <= 0 {
		return
	}
	c.remaining = max(min(c.remaining-1, c.countdownLocked()), 0)
	if c.remaining == 0 {
		c.expired = true
		c.logger.Info("time expired", "session_id", c.sessionID)
		c.submitLocked(true)
		return
	}
	c.notifyLocked()
}

func (c *Controller) startTimerLocked() {
	if !c.timed() || c.remaining <= 0 {
		return
	}
	c.resumedAt = c.clock.Now()
	c.timerRun = c.timer.Start(c.onTick)
}

// pauseTimerLocked stops the countdown and banks the time it ran.
func (c *Controller) pauseTimerLocked() {
	if c.timer.Running() {
		c.active += c.clock.Since(c.resumedAt)
	}
	c.timer.Stop()
}

// countdownLocked derives the remaining whole seconds from the countdown
// time used so far, so restarting the ticker never hands back a second.
func (c *Controller) countdownLocked() int {
	used := c.active
	if c.timer.Running() {
		used += c.clock.Since(c.resumedAt)
	}
	return max(c.assessment.DurationSeconds-int(used/time.Second), 0)
}

func (c *Controller) timed() bool {
	return c.assessment.DurationSeconds > 0
}

func (c *Controller) timeTakenLocked() int {
	secs := int(c.clock.Since(c.startedAt) / time.Second)
	if c.timed() {
		secs = min(secs, c.assessment.DurationSeconds)
	}
	return max(secs, 0)
}

func (c *Controller) refreshWindowLocked() {
	if c.media == nil || len(c.questions) == 0 {
		return
	}
	c.media.SetWindow(c.questions, c.index, c.back, c.forward)
}

func (c *Controller) resetLocked() {
	from := c.status
	hadSession := c.sessionID != ""

	c.teardownLocked()
	c.generation++

	if hadSession {
		c.logger.Info("session reset", "session_id", c.sessionID, "from", from.String())
		ev := c.newEvent(events.TypeReset)
		ev.Answered = c.answers.Len()
		c.publishLocked(ev)
	}
	c.clearLocked()
	c.assessment = assessment.Assessment{}
	c.sessionID = ""
	c.notifyLocked()
}

// teardownLocked stops the timer, abandons in-flight requests, cancels all
// media work and then clears answers, in that order.
func (c *Controller) teardownLocked() {
	c.pauseTimerLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.media != nil {
		c.media.CancelAll()
	}
	c.answers.Clear()
}

func (c *Controller) clearLocked() {
	c.status = StatusIdle
	c.questions = nil
	c.byID = nil
	c.index = 0
	c.startedAt = time.Time{}
	c.remaining = 0
	c.active = 0
	c.submitRev = 0
	c.revised = false
	c.expired = false
	c.auto = false
	c.timeTaken = 0
	c.result = nil
	c.err = nil
	c.errFrom = StatusIdle
}

func (c *Controller) snapshotLocked() State {
	return State{
		Generation:       c.generation,
		SessionID:        c.sessionID,
		Assessment:       c.assessment,
		Status:           c.status,
		Questions:        c.questions,
		CurrentIndex:     c.index,
		Answers:          c.answers.Snapshot(),
		StartedAt:        c.startedAt,
		RemainingSeconds: c.remaining,
		Timed:            c.timed(),
		Expired:          c.expired,
		TimeTakenSeconds: c.timeTaken,
		AutoSubmitted:    c.auto,
		Result:           c.result,
		Err:              c.err,
		ErrFrom:          c.errFrom,
	}
}

func (c *Controller) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}
	s := c.snapshotLocked()
	for _, ch := range c.subs {
		// Latest wins: replace an unread snapshot.
		select {
		case ch <- s:
			continue
		default:
		}
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

func (c *Controller) newEvent(typ events.Type) events.SessionEvent {
	ev := events.New(typ, c.sessionID, c.assessment.ID, c.clock.Now())
	ev.Title = c.assessment.Title
	return ev
}

func (c *Controller) publishLocked(ev events.SessionEvent) {
	if err := c.events.Publish(context.Background(), ev); err != nil {
		c.logger.Warn("publish lifecycle event", "event_type", ev.Type, "error", err)
	}
}
