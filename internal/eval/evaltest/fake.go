// Package evaltest provides a scripted in-memory Engine for tests.
package evaltest

import (
	"strings"
	"sync"
	"time"

	"github.com/freeeve/blunderboard/internal/eval"
)

// Call records one Search.
type Call struct {
	FEN      string
	MoveTime time.Duration
	Options  map[string]any // options in effect during the search
}

// Engine is a fake eval.Engine. Responses are looked up by FEN prefix
// (the board and side-to-move fields), falling back to Default.
type Engine struct {
	mu sync.Mutex

	// Responses maps "<board> <side>" to a result.
	Responses map[string]*eval.SearchResult
	// Default answers positions without a scripted response. A nil Default
	// returns a 0 cp result with bestmove from Moves.
	Default func(fen string) *eval.SearchResult

	// Delay blocks every search for this long.
	Delay time.Duration
	// Err is returned by every search when set.
	Err error
	// OptionErr is returned by SetOption when set.
	OptionErr error

	options map[string]any
	calls   []Call
	closed  int
}

// New returns an empty fake engine.
func New() *Engine {
	return &Engine{
		Responses: make(map[string]*eval.SearchResult),
		options:   make(map[string]any),
	}
}

// Key returns the lookup key for a FEN.
func Key(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return fen
	}
	return fields[0] + " " + fields[1]
}

// Set scripts the response for a FEN.
func (e *Engine) Set(fen string, res *eval.SearchResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Responses[Key(fen)] = res
}

// SetDelay changes Delay while searches may be running.
func (e *Engine) SetDelay(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Delay = d
}

func (e *Engine) SetOption(name string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.OptionErr != nil {
		return e.OptionErr
	}
	e.options[name] = value
	return nil
}

func (e *Engine) Search(fen string, movetime time.Duration) (*eval.SearchResult, error) {
	e.mu.Lock()
	opts := make(map[string]any, len(e.options))
	for k, v := range e.options {
		opts[k] = v
	}
	e.calls = append(e.calls, Call{FEN: fen, MoveTime: movetime, Options: opts})
	delay, err := e.Delay, e.Err
	res, ok := e.Responses[Key(fen)]
	def := e.Default
	e.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if ok {
		cp := *res
		return &cp, nil
	}
	if def != nil {
		return def(fen), nil
	}
	return &eval.SearchResult{BestMove: "e2e4", PV: []string{"e2e4"}, Score: eval.CP(0), Depth: 1}, nil
}

func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
}

// Calls returns the searches performed so far.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Option returns the current value of an engine option.
func (e *Engine) Option(name string) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.options[name]
}

// Closed returns how many times Close was called.
func (e *Engine) Closed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Factory returns an eval.Factory that always hands out e and counts starts.
func (e *Engine) Factory(starts *int) eval.Factory {
	var mu sync.Mutex
	return func() (eval.Engine, error) {
		mu.Lock()
		defer mu.Unlock()
		if starts != nil {
			*starts++
		}
		return e, nil
	}
}
