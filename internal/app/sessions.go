package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/config"
	"github.com/abhisek/hangeul/internal/events"
	"github.com/abhisek/hangeul/internal/logging"
	"github.com/abhisek/hangeul/internal/mediacache"
	"github.com/abhisek/hangeul/internal/screen"
	sessionscreen "github.com/abhisek/hangeul/internal/screens/session"
	"github.com/abhisek/hangeul/internal/session"
)

// SessionOptions configures a Sessions factory.
type SessionOptions struct {
	Backend session.Backend
	Events  events.Publisher
	Media   config.MediaConfig
	Logger  *slog.Logger

	// NewFetcher overrides the HTTP media fetcher.
	NewFetcher func() (mediacache.Fetcher, error)
}

// Sessions builds one controller and media cache per attempt and keeps
// track of them so they can be closed when the program exits.
type Sessions struct {
	opts   SessionOptions
	logger *slog.Logger

	mu   sync.Mutex
	live []*session.Controller
}

// NewSessions creates a Sessions factory.
func NewSessions(opts SessionOptions) *Sessions {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &Sessions{opts: opts, logger: logger}
}

// Open creates a controller with its own media cache. The cache directory
// is removed when the controller is closed.
func (s *Sessions) Open() (*session.Controller, *mediacache.Cache, error) {
	fetcher, err := s.fetcher()
	if err != nil {
		return nil, nil, err
	}
	cache := mediacache.New(mediacache.Options{
		Fetcher:       fetcher,
		MaxConcurrent: s.opts.Media.MaxConcurrent,
		Logger:        s.logger,
	})
	ctrl := session.NewController(session.Options{
		Backend: s.opts.Backend,
		Media:   cache,
		Events:  s.opts.Events,
		Back:    s.opts.Media.Back,
		Forward: s.opts.Media.Forward,
		Logger:  s.logger,
	})

	s.mu.Lock()
	s.live = append(s.live, ctrl)
	s.mu.Unlock()
	return ctrl, cache, nil
}

// Screen opens a session for a and wraps it in a session screen.
func (s *Sessions) Screen(a assessment.Assessment) (screen.Screen, error) {
	ctrl, cache, err := s.Open()
	if err != nil {
		return nil, err
	}
	return sessionscreen.New(ctrl, cache, a), nil
}

// Close closes every controller opened so far. Controllers already closed
// by their screen are skipped.
func (s *Sessions) Close() error {
	s.mu.Lock()
	live := s.live
	s.live = nil
	s.mu.Unlock()

	var errs []error
	for _, c := range live {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Sessions) fetcher() (mediacache.Fetcher, error) {
	if s.opts.NewFetcher != nil {
		return s.opts.NewFetcher()
	}
	f, err := mediacache.NewHTTPFetcher(mediacache.FetcherOptions{
		Dir:      s.opts.Media.Dir,
		MaxBytes: s.opts.Media.MaxBytes,
		Timeout:  s.opts.Media.FetchTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("media cache: %w", err)
	}
	return f, nil
}
