package analysis

import "errors"

var (
	ErrNoMovesProvided = errors.New("no moves provided for analysis")
	ErrNoData          = errors.New("no analysis data provided")
	ErrGameAlreadyOver = errors.New("game is already over")
	ErrNoMoveFound     = errors.New("engine could not find a move")
	ErrInvalidBudget   = errors.New("time budget must be positive")
)
