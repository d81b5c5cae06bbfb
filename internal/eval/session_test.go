package eval_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/blunderboard/internal/board"
	"github.com/freeeve/blunderboard/internal/eval"
	"github.com/freeeve/blunderboard/internal/eval/evaltest"
)

func newSession(t *testing.T, factory eval.Factory, grace time.Duration) *eval.Session {
	t.Helper()
	s, err := eval.NewSession(eval.SessionConfig{
		Factory: factory,
		Logger:  zerolog.Nop(),
		Grace:   grace,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionLazyStartAndReuse(t *testing.T) {
	fake := evaltest.New()
	starts := 0
	s := newSession(t, fake.Factory(&starts), time.Second)

	if starts != 0 {
		t.Fatalf("engine started before first use")
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Search(context.Background(), eval.Query{FEN: board.StartFEN, MoveTime: time.Millisecond}); err != nil {
			t.Fatalf("Search %d: %v", i, err)
		}
	}
	if starts != 1 {
		t.Errorf("starts = %d, want 1", starts)
	}
	st := s.GetStatus()
	if !st.Running || st.Queries != 3 || st.SessionID == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestSessionUnavailable(t *testing.T) {
	attempts := 0
	s := newSession(t, func() (eval.Engine, error) {
		attempts++
		return nil, errors.New("exec: stockfish: not found")
	}, time.Second)

	for i := 0; i < 2; i++ {
		_, err := s.Search(context.Background(), eval.Query{FEN: board.StartFEN, MoveTime: time.Millisecond})
		if !errors.Is(err, eval.ErrEngineUnavailable) {
			t.Fatalf("Search error = %v, want ErrEngineUnavailable", err)
		}
	}
	// Each request tries once, lazily.
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	fake := evaltest.New()
	s := newSession(t, fake.Factory(nil), time.Second)

	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if fake.Closed() != 1 {
		t.Errorf("engine closed %d times, want 1", fake.Closed())
	}

	_, err := s.Search(context.Background(), eval.Query{FEN: board.StartFEN, MoveTime: time.Millisecond})
	if !errors.Is(err, eval.ErrEngineUnavailable) {
		t.Errorf("Search after Close error = %v, want ErrEngineUnavailable", err)
	}
}

func TestSessionTimeoutRestartsLazily(t *testing.T) {
	fake := evaltest.New()
	fake.Delay = 200 * time.Millisecond
	starts := 0
	s := newSession(t, fake.Factory(&starts), 10*time.Millisecond)

	_, err := s.Search(context.Background(), eval.Query{FEN: board.StartFEN, MoveTime: time.Millisecond})
	if !errors.Is(err, eval.ErrEngineTimeout) {
		t.Fatalf("Search error = %v, want ErrEngineTimeout", err)
	}
	if st := s.GetStatus(); st.Running || st.Timeouts != 1 {
		t.Errorf("status after timeout = %+v", st)
	}

	fake.SetDelay(0)
	if _, err := s.Search(context.Background(), eval.Query{FEN: board.StartFEN, MoveTime: time.Millisecond}); err != nil {
		t.Fatalf("Search after timeout: %v", err)
	}
	if starts != 2 {
		t.Errorf("starts = %d, want 2", starts)
	}
	if st := s.GetStatus(); st.Restarts != 1 {
		t.Errorf("restarts = %d, want 1", st.Restarts)
	}
}

func TestSessionEngineError(t *testing.T) {
	fake := evaltest.New()
	fake.Err = errors.New("broken pipe")
	s := newSession(t, fake.Factory(nil), time.Second)

	_, err := s.Search(context.Background(), eval.Query{FEN: board.StartFEN, MoveTime: time.Millisecond})
	if !errors.Is(err, eval.ErrEngineFailed) {
		t.Fatalf("Search error = %v, want ErrEngineFailed", err)
	}
	if st := s.GetStatus(); st.Failures != 1 || st.Running {
		t.Errorf("status = %+v", st)
	}
}

func TestSessionInvalidQuery(t *testing.T) {
	s := newSession(t, evaltest.New().Factory(nil), time.Second)

	if _, err := s.Search(context.Background(), eval.Query{FEN: board.StartFEN}); !errors.Is(err, eval.ErrInvalidQuery) {
		t.Errorf("zero budget error = %v, want ErrInvalidQuery", err)
	}
	if _, err := s.Search(context.Background(), eval.Query{MoveTime: time.Second}); !errors.Is(err, eval.ErrInvalidQuery) {
		t.Errorf("empty FEN error = %v, want ErrInvalidQuery", err)
	}
}

func TestSessionStrengthIsScopedToQuery(t *testing.T) {
	fake := evaltest.New()
	s := newSession(t, fake.Factory(nil), time.Second)

	if _, err := s.Search(context.Background(), eval.Query{FEN: board.StartFEN, MoveTime: time.Millisecond, Elo: 1500}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].Options["UCI_LimitStrength"] != true || calls[0].Options["UCI_Elo"] != 1500 {
		t.Errorf("options during search = %v", calls[0].Options)
	}
	if fake.Option("UCI_LimitStrength") != false {
		t.Errorf("UCI_LimitStrength after search = %v, want false", fake.Option("UCI_LimitStrength"))
	}
}

type countingEngine struct {
	*evaltest.Engine
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (c *countingEngine) Search(fen string, movetime time.Duration) (*eval.SearchResult, error) {
	c.mu.Lock()
	c.active++
	if c.active > c.maxSeen {
		c.maxSeen = c.active
	}
	c.mu.Unlock()

	time.Sleep(2 * time.Millisecond)
	res, err := c.Engine.Search(fen, movetime)

	c.mu.Lock()
	c.active--
	c.mu.Unlock()
	return res, err
}

func TestSessionSerialisesQueries(t *testing.T) {
	ce := &countingEngine{Engine: evaltest.New()}
	s := newSession(t, func() (eval.Engine, error) { return ce, nil }, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Search(context.Background(), eval.Query{FEN: board.StartFEN, MoveTime: time.Millisecond})
		}()
	}
	wg.Wait()

	if ce.maxSeen != 1 {
		t.Errorf("max concurrent searches = %d, want 1", ce.maxSeen)
	}
}

func TestSearchResultMove(t *testing.T) {
	tests := []struct {
		res  eval.SearchResult
		want string
	}{
		{eval.SearchResult{PV: []string{"g1f3", "d7d5"}, BestMove: "e2e4"}, "g1f3"},
		{eval.SearchResult{BestMove: "e2e4"}, "e2e4"},
		{eval.SearchResult{BestMove: "(none)"}, ""},
		{eval.SearchResult{}, ""},
	}
	for _, tt := range tests {
		if got := tt.res.Move(); got != tt.want {
			t.Errorf("%+v.Move() = %q, want %q", tt.res, got, tt.want)
		}
	}
}

// stuckEngine blocks every search until release is closed and records
// whether Close overlapped a search.
type stuckEngine struct {
	*evaltest.Engine
	release chan struct{}
	closed  chan struct{}

	mu        sync.Mutex
	searching bool
	overlap   bool
}

func (e *stuckEngine) Search(fen string, movetime time.Duration) (*eval.SearchResult, error) {
	e.mu.Lock()
	e.searching = true
	e.mu.Unlock()

	<-e.release

	e.mu.Lock()
	e.searching = false
	e.mu.Unlock()
	return e.Engine.Search(fen, movetime)
}

func (e *stuckEngine) Close() {
	e.mu.Lock()
	e.overlap = e.overlap || e.searching
	e.mu.Unlock()
	close(e.closed)
}

func TestSessionTimeoutClosesEngineOnceIdle(t *testing.T) {
	stuck := &stuckEngine{
		Engine:  evaltest.New(),
		release: make(chan struct{}),
		closed:  make(chan struct{}),
	}
	s := newSession(t, func() (eval.Engine, error) { return stuck, nil }, 10*time.Millisecond)

	_, err := s.Search(context.Background(), eval.Query{FEN: board.StartFEN, MoveTime: time.Millisecond})
	if !errors.Is(err, eval.ErrEngineTimeout) {
		t.Fatalf("Search error = %v, want ErrEngineTimeout", err)
	}

	select {
	case <-stuck.closed:
		t.Fatal("engine closed while its search was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(stuck.release)
	select {
	case <-stuck.closed:
	case <-time.After(time.Second):
		t.Fatal("engine not closed after the search returned")
	}

	stuck.mu.Lock()
	defer stuck.mu.Unlock()
	if stuck.overlap {
		t.Error("Close overlapped a running search")
	}
}
