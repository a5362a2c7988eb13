package domain

import "math"

// Score applies the authoritative scoring rules an attempt store uses when
// a submission arrives. A question is correct when the selected option set
// equals the correct option set; each question is worth its Points value,
// defaulting to 1. The overall score is the earned share of possible points
// as a percentage, rounded to two decimals.
func Score(definition QuizDefinition, submission Submission) Results {
	var earned, possible int
	questions := make([]QuestionResult, 0, len(definition.Questions))

	for _, q := range definition.Questions {
		points := q.Points
		if points == 0 {
			points = 1
		}
		possible += points

		selected := submission.Answers[q.ID]
		correctOptions := correctOptionIDs(q)
		correct := sameSet(selected, correctOptions)
		if correct {
			earned += points
		}

		questions = append(questions, QuestionResult{
			QuestionID:     q.ID,
			Correct:        correct,
			Selected:       append([]string(nil), selected...),
			CorrectOptions: correctOptions,
			Earned:         boolPoints(correct, points),
			Possible:       points,
		})
	}

	score := 0.0
	if possible > 0 {
		score = math.Round(float64(earned)/float64(possible)*100*100) / 100
	}

	return Results{
		AttemptID: submission.AttemptID,
		Status:    ResultsCompleted,
		Score:     score,
		TimeSpent: submission.TimeSpent,
		Questions: questions,
	}
}

func correctOptionIDs(q Question) []string {
	ids := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		if opt.Correct {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// sameSet compares two ID slices as sets.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	if len(seen) != len(b) {
		return false
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}

func boolPoints(correct bool, points int) int {
	if correct {
		return points
	}
	return 0
}
