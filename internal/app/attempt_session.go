package app

import (
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// AttemptSession is the in-memory state machine for one attempt. It is the
// single source of truth for answers, position, and status while the user is
// on the quiz screen; all mutations are pure of I/O.
type AttemptSession struct {
	attemptID  string
	definition domain.QuizDefinition
	now        func() time.Time

	mu          sync.RWMutex
	status      domain.AttemptStatus
	index       int
	answers     domain.AnswerMap
	accumulated time.Duration
	resumedAt   time.Time
	results     *domain.Results
	submitting  bool
}

// NewAttemptSession builds a session from a stored projection, supporting
// resume of an attempt that already has answers and a position.
func NewAttemptSession(definition domain.QuizDefinition, snapshot domain.AttemptSnapshot) *AttemptSession {
	return newAttemptSessionWithClock(definition, snapshot, time.Now)
}

// NewAttemptSessionWithClock is test-only for deterministic timing.
func NewAttemptSessionWithClock(definition domain.QuizDefinition, snapshot domain.AttemptSnapshot, now func() time.Time) *AttemptSession {
	return newAttemptSessionWithClock(definition, snapshot, now)
}

func newAttemptSessionWithClock(definition domain.QuizDefinition, snapshot domain.AttemptSnapshot, now func() time.Time) *AttemptSession {
	status := snapshot.Status
	if status == "" {
		status = domain.AttemptInProgress
	}
	index := snapshot.CurrentQuestionIndex
	if index < 0 {
		index = 0
	}
	if max := len(definition.Questions) - 1; max >= 0 && index > max {
		index = max
	}
	answers := snapshot.Answers.Clone()
	if answers == nil {
		answers = make(domain.AnswerMap)
	}
	return &AttemptSession{
		attemptID:   snapshot.AttemptID,
		definition:  definition,
		now:         now,
		status:      status,
		index:       index,
		answers:     answers,
		accumulated: snapshot.TimeSpent,
		resumedAt:   now(),
		results:     snapshot.Results,
	}
}

// AttemptID returns the attempt this session drives.
func (s *AttemptSession) AttemptID() string {
	return s.attemptID
}

// Definition returns the immutable quiz content for this session.
func (s *AttemptSession) Definition() domain.QuizDefinition {
	return s.definition
}

// SelectAnswer applies a selection to the current answer set. Single-select
// questions replace the set; multi-select questions toggle membership.
// Calls on a terminal attempt, an unknown question, or an unknown option are
// ignored: the UI disables input, this is only a defensive guard.
func (s *AttemptSession) SelectAnswer(questionID, optionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return
	}
	question := s.questionByID(questionID)
	if question == nil || !hasOption(question, optionID) {
		return
	}

	if !question.IsMultiple {
		s.answers[questionID] = []string{optionID}
		return
	}
	s.answers[questionID] = toggle(s.answers[questionID], optionID)
}

// toggle flips membership of optionID in the selection, preserving the
// order of the remaining selections.
func toggle(selected []string, optionID string) []string {
	for i, id := range selected {
		if id == optionID {
			return append(append([]string(nil), selected[:i]...), selected[i+1:]...)
		}
	}
	return append(append([]string(nil), selected...), optionID)
}

func (s *AttemptSession) questionByID(id string) *domain.Question {
	for i := range s.definition.Questions {
		if s.definition.Questions[i].ID == id {
			return &s.definition.Questions[i]
		}
	}
	return nil
}

func hasOption(q *domain.Question, optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// CurrentQuestion returns the question at the current index, or nil when the
// index is out of range (empty quiz or index drift).
func (s *AttemptSession) CurrentQuestion() *domain.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentQuestionLocked()
}

func (s *AttemptSession) currentQuestionLocked() *domain.Question {
	if s.index < 0 || s.index >= len(s.definition.Questions) {
		return nil
	}
	q := s.definition.Questions[s.index]
	return &q
}

// IsFirstQuestion reports whether the session is on the first question.
func (s *AttemptSession) IsFirstQuestion() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index == 0
}

// IsLastQuestion reports whether advancing would finish the attempt.
func (s *AttemptSession) IsLastQuestion() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index == len(s.definition.Questions)-1
}

// IsCompleted reports whether the attempt has been submitted (review mode).
func (s *AttemptSession) IsCompleted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status == domain.AttemptSubmitted
}

// Progress returns the percentage of questions reached, clamped to [0,100].
func (s *AttemptSession) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := len(s.definition.Questions)
	if total == 0 {
		return 0
	}
	p := float64(s.index+1) / float64(total) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// SelectedAnswers returns the selection for the current question.
func (s *AttemptSession) SelectedAnswers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.currentQuestionLocked()
	if q == nil {
		return nil
	}
	return append([]string(nil), s.answers[q.ID]...)
}

// advance moves forward one question. Returns false at the last question.
func (s *AttemptSession) advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.definition.Questions)-1 {
		return false
	}
	s.index++
	return true
}

// retreat moves back one question. Returns false at the first question.
func (s *AttemptSession) retreat() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index <= 0 {
		return false
	}
	s.index--
	return true
}

// currentAnswered reports whether the current question has a selection.
func (s *AttemptSession) currentAnswered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.currentQuestionLocked()
	if q == nil {
		return false
	}
	return len(s.answers[q.ID]) > 0
}

// beginSubmit claims the in-flight slot. At most one submission runs at a
// time; concurrent finishes are rejected until endSubmit.
func (s *AttemptSession) beginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return domain.ErrAttemptFinished
	}
	if s.submitting {
		return domain.ErrSubmissionInFlight
	}
	s.submitting = true
	return nil
}

func (s *AttemptSession) endSubmit() {
	s.mu.Lock()
	s.submitting = false
	s.mu.Unlock()
}

// completeSubmit merges an authoritative scoring result. The result is
// discarded if it targets a different attempt or the session already reached
// a terminal state (stale response guard).
func (s *AttemptSession) completeSubmit(results domain.Results) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if results.AttemptID != s.attemptID || s.status.Terminal() {
		return domain.ErrStaleResult
	}
	s.accumulated = s.timeSpentLocked()
	s.status = domain.AttemptSubmitted
	r := results
	s.results = &r
	return nil
}

// Abandon transitions to the terminal abandoned state. No-op once terminal.
func (s *AttemptSession) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.accumulated = s.timeSpentLocked()
	s.status = domain.AttemptAbandoned
}

// TimeSpent returns the accumulated in-progress duration. It grows
// monotonically until the attempt reaches a terminal state.
func (s *AttemptSession) TimeSpent() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeSpentLocked()
}

func (s *AttemptSession) timeSpentLocked() time.Duration {
	if s.status.Terminal() {
		return s.accumulated
	}
	return s.accumulated + s.now().Sub(s.resumedAt)
}

// Results returns the scored outcome, or nil while in progress.
func (s *AttemptSession) Results() *domain.Results {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results
}

// Snapshot captures the current projection for persistence or the UI.
func (s *AttemptSession) Snapshot() domain.AttemptSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.AttemptSnapshot{
		AttemptID:            s.attemptID,
		QuizID:               s.definition.ID,
		Status:               s.status,
		CurrentQuestionIndex: s.index,
		Answers:              s.answers.Clone(),
		TimeSpent:            s.timeSpentLocked(),
		Results:              s.results,
	}
}
