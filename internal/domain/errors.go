package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence wraps storage write failures. The in-memory state that
	// accompanies it is still valid.
	ErrPersistence = errors.New("persistence write failed")
	// ErrUnknownCategory is returned for a leaderboard window that does not exist.
	ErrUnknownCategory = errors.New("unknown ranking category")
	// ErrInvalidInput marks caller programming errors such as negative counts.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoContentTypes is returned by GameSettings.Validate for an empty content set.
	ErrNoContentTypes = fmt.Errorf("%w: at least one content type must be enabled", ErrInvalidInput)
	// ErrSessionNotFound is returned when a player has no ledger loaded.
	ErrSessionNotFound = errors.New("player session not found")
	// ErrNoActiveSession is returned when ending a game session that was never started.
	ErrNoActiveSession = errors.New("no active game session")
)
