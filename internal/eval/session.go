package eval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrEngineUnavailable is returned when the engine process cannot be
	// started, or the session was already closed.
	ErrEngineUnavailable = errors.New("chess engine not loaded")
	// ErrEngineTimeout is returned when a search does not finish within its
	// time budget plus the grace margin.
	ErrEngineTimeout = errors.New("chess engine timed out")
	// ErrEngineFailed is returned when a running engine fails a command.
	ErrEngineFailed = errors.New("chess engine error")
	// ErrInvalidQuery is returned for a query with no FEN or a non-positive
	// time budget.
	ErrInvalidQuery = errors.New("invalid engine query")
)

// Query is one timed search. Strength settings apply to this query only.
type Query struct {
	FEN      string
	MoveTime time.Duration
	Elo      int // limit playing strength to this rating (0 = full strength)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Factory Factory
	Logger  zerolog.Logger
	Grace   time.Duration // extra wait past MoveTime before a search times out
}

// Session owns the single engine process shared by every analysis call.
// The process is started on first use, discarded on failure, restarted
// lazily on the next query and stopped once by Close.
type Session struct {
	factory Factory
	log     zerolog.Logger
	grace   time.Duration

	// sem admits one engine command sequence at a time.
	sem *semaphore.Weighted

	// Guarded by sem.
	engine Engine

	mu        sync.Mutex // guards closed and sessionID for Status
	closed    bool
	sessionID string

	// Stats
	starts   int64
	queries  int64
	timeouts int64
	failures int64
}

// NewSession creates a session. No process is started until first use.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("engine factory required")
	}
	if cfg.Grace == 0 {
		cfg.Grace = 2 * time.Second
	}
	return &Session{
		factory: cfg.Factory,
		log:     cfg.Logger,
		grace:   cfg.Grace,
		sem:     semaphore.NewWeighted(1),
	}, nil
}

// Acquire makes sure the engine process is running, starting it if needed.
func (s *Session) Acquire(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)

	_, err := s.ensureEngine()
	return err
}

// Search runs one query against the engine, waiting for exclusive access
// first. Waiting honours ctx; once sent, a search runs to completion or
// until MoveTime plus the grace margin has elapsed.
func (s *Session) Search(ctx context.Context, q Query) (*SearchResult, error) {
	if q.FEN == "" {
		return nil, fmt.Errorf("%w: empty FEN", ErrInvalidQuery)
	}
	if q.MoveTime <= 0 {
		return nil, fmt.Errorf("%w: time budget must be positive, got %s", ErrInvalidQuery, q.MoveTime)
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	engine, err := s.ensureEngine()
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&s.queries, 1)

	type outcome struct {
		res *SearchResult
		err error
	}
	done := make(chan outcome, 1)
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		res, err := runQuery(engine, q)
		done <- outcome{res: res, err: err}
	}()

	timer := time.NewTimer(q.MoveTime + s.grace)
	defer timer.Stop()

	select {
	case o := <-done:
		if o.err != nil {
			atomic.AddInt64(&s.failures, 1)
			s.discardEngine("query failed", o.err, idle)
			return nil, fmt.Errorf("%w: %v", ErrEngineFailed, o.err)
		}
		return o.res, nil
	case <-timer.C:
		atomic.AddInt64(&s.timeouts, 1)
		s.discardEngine("query timed out", nil, idle)
		return nil, fmt.Errorf("%w after %s", ErrEngineTimeout, q.MoveTime+s.grace)
	}
}

// runQuery applies the per-query strength limit, searches and resets the
// limit so it never leaks into the next query.
func runQuery(engine Engine, q Query) (*SearchResult, error) {
	if q.Elo > 0 {
		if err := engine.SetOption("UCI_LimitStrength", true); err != nil {
			return nil, fmt.Errorf("set UCI_LimitStrength: %w", err)
		}
		if err := engine.SetOption("UCI_Elo", q.Elo); err != nil {
			return nil, fmt.Errorf("set UCI_Elo: %w", err)
		}
	}

	res, err := engine.Search(q.FEN, q.MoveTime)

	if q.Elo > 0 {
		if rerr := engine.SetOption("UCI_LimitStrength", false); rerr != nil && err == nil {
			err = fmt.Errorf("reset UCI_LimitStrength: %w", rerr)
		}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ensureEngine returns the running engine, starting one if there is none.
// Caller must hold sem.
func (s *Session) ensureEngine() (Engine, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: session closed", ErrEngineUnavailable)
	}
	if s.engine != nil {
		return s.engine, nil
	}

	engine, err := s.factory()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to start engine")
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	id := uuid.NewString()
	n := atomic.AddInt64(&s.starts, 1)
	s.engine = engine
	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()

	s.log.Info().Str("session_id", id).Int64("starts", n).Msg("engine started")
	return engine, nil
}

// discardEngine drops the current process so the next query starts a fresh
// one. The process is closed once idle is closed, so Close never runs
// alongside a command still being written to it. Caller must hold sem.
func (s *Session) discardEngine(reason string, cause error, idle <-chan struct{}) {
	engine := s.engine
	s.engine = nil

	s.mu.Lock()
	id := s.sessionID
	s.sessionID = ""
	s.mu.Unlock()

	s.log.Warn().Err(cause).Str("session_id", id).Str("reason", reason).Msg("discarding engine")
	if engine != nil {
		log := s.log.With().Str("session_id", id).Logger()
		go func() {
			<-idle
			engine.Close()
			log.Debug().Msg("discarded engine closed")
		}()
	}
}

// Close stops the engine process. It waits for an in-flight query to
// finish. Calling Close more than once is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer s.sem.Release(1)

	if s.engine != nil {
		s.engine.Close()
		s.engine = nil
		s.log.Info().Msg("engine shut down")
	}
	s.mu.Lock()
	s.sessionID = ""
	s.mu.Unlock()
	return nil
}

// Status describes the session for the status endpoint.
type Status struct {
	Running   bool   `json:"running"`
	Closed    bool   `json:"closed"`
	SessionID string `json:"session_id,omitempty"`
	Starts    int64  `json:"starts"`
	Restarts  int64  `json:"restarts"`
	Queries   int64  `json:"queries"`
	Timeouts  int64  `json:"timeouts"`
	Failures  int64  `json:"failures"`
}

// GetStatus returns the current session status without waiting for an
// in-flight query.
func (s *Session) GetStatus() Status {
	s.mu.Lock()
	id := s.sessionID
	closed := s.closed
	s.mu.Unlock()

	starts := atomic.LoadInt64(&s.starts)
	restarts := starts - 1
	if restarts < 0 {
		restarts = 0
	}
	return Status{
		Running:   id != "",
		Closed:    closed,
		SessionID: id,
		Starts:    starts,
		Restarts:  restarts,
		Queries:   atomic.LoadInt64(&s.queries),
		Timeouts:  atomic.LoadInt64(&s.timeouts),
		Failures:  atomic.LoadInt64(&s.failures),
	}
}
