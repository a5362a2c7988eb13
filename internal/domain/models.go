package domain

import "time"

// AttemptStatus enumerates the lifecycle states of an attempt.
// Submitted and abandoned are terminal.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// Terminal reports whether no further answer mutation is accepted.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptAbandoned
}

// Option represents a possible answer for a question. Correct is only
// populated on the store side; it is never sent to clients mid-attempt.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

// Question models a single quiz question. IsMultiple switches answer
// selection from replace semantics to toggle semantics.
type Question struct {
	ID         string   `json:"id"`
	Prompt     string   `json:"prompt"`
	Options    []Option `json:"options"`
	IsMultiple bool     `json:"isMultiple"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	Points     int      `json:"points"` // defaults to 1 if zero
}

// QuizDefinition is the static ordered set of questions for a quiz.
// It is immutable for the lifetime of a session.
type QuizDefinition struct {
	ID             string     `json:"id"`
	Questions      []Question `json:"questions"`
	IsExerciseMode bool       `json:"isExerciseMode"`
}

// AnswerMap maps question IDs to the set of selected option IDs.
type AnswerMap map[string][]string

// Clone returns a deep copy so callers cannot alias session state.
func (m AnswerMap) Clone() AnswerMap {
	if m == nil {
		return nil
	}
	out := make(AnswerMap, len(m))
	for qid, opts := range m {
		out[qid] = append([]string(nil), opts...)
	}
	return out
}

// AttemptSnapshot is the durable projection of one attempt. Stores persist
// it; sessions rebuild their in-memory state from it on resume.
type AttemptSnapshot struct {
	AttemptID            string        `json:"attemptId"`
	QuizID               string        `json:"quizId"`
	Status               AttemptStatus `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	Answers              AnswerMap     `json:"answers"`
	TimeSpent            time.Duration `json:"timeSpent"`
	Results              *Results      `json:"results,omitempty"`
}

// Submission is the one-shot scoring payload sent to the attempt store.
type Submission struct {
	AttemptID string        `json:"attemptId"`
	Answers   AnswerMap     `json:"answers"`
	TimeSpent time.Duration `json:"timeSpent"`
}

// QuestionResult carries per-question correctness detail for the review UI.
type QuestionResult struct {
	QuestionID     string   `json:"questionId"`
	Correct        bool     `json:"correct"`
	Selected       []string `json:"selected"`
	CorrectOptions []string `json:"correctOptions"`
	Earned         int      `json:"earned"`
	Possible       int      `json:"possible"`
}

// ResultsCompleted is the status a store reports for a scored attempt.
const ResultsCompleted = "completed"

// Results is the scored outcome of a submitted attempt. It is immutable
// once produced for a given submission.
type Results struct {
	AttemptID string           `json:"attemptId"`
	Status    string           `json:"status"`
	Score     float64          `json:"score"` // percentage, two decimals
	TimeSpent time.Duration    `json:"timeSpent"`
	Questions []QuestionResult `json:"questions"`
}
