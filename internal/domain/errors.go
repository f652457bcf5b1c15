package domain

import "errors"

var (
	// ErrMissingIdentity is returned when no player identity has been stored
	// by the entry flow; the session cannot start without one.
	ErrMissingIdentity = errors.New("player identity not found")
	// ErrNoEligibleQuestions indicates the backend has no verified question
	// matching the session's difficulty and filters.
	ErrNoEligibleQuestions = errors.New("no eligible questions")
	// ErrSessionNotFound is returned when the backend does not recognize the
	// session identifier.
	ErrSessionNotFound = errors.New("game session not found")
)
