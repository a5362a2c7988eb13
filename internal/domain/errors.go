package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrDefinitionUnavailable indicates the definition failed to load or has no questions.
	ErrDefinitionUnavailable = errors.New("quiz definition unavailable")
	// ErrAttemptNotFound is returned when no attempt exists for the given ID.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptFinished is returned when a store operation targets a terminal attempt.
	ErrAttemptFinished = errors.New("attempt already finished")
	// ErrSubmissionFailed indicates the final scoring call could not be completed.
	// The attempt stays in progress and the caller may retry.
	ErrSubmissionFailed = errors.New("submission failed")
	// ErrSubmissionInFlight rejects a finish while a prior submission is pending.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrStaleResult marks a scoring response that arrived after its session ended.
	ErrStaleResult = errors.New("stale submission result")
)
