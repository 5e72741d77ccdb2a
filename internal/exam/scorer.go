package exam

import (
	"math"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// Score is the outcome of a finished session.
type Score struct {
	Score   int  `json:"score"`
	Passed  bool `json:"passed"`
	Correct int  `json:"correct"`
	Total   int  `json:"total"`
}

// ScoreSession grades chosen answers against the full question set.
// Unanswered questions count as incorrect; the denominator is always
// len(questions). An empty set scores 0 and does not pass.
func ScoreSession(questions []model.Question, chosen map[uuid.UUID]uuid.UUID) Score {
	total := len(questions)
	if total == 0 {
		return Score{}
	}

	correct := 0
	for i := range questions {
		answerID, ok := chosen[questions[i].ID]
		if ok && IsCorrect(&questions[i], answerID) {
			correct++
		}
	}

	score := int(math.Round(100 * float64(correct) / float64(total)))
	return Score{
		Score:   score,
		Passed:  score >= PassThreshold,
		Correct: correct,
		Total:   total,
	}
}

// IsCorrect reports whether answerID is the question's correctness-flagged
// answer. A question without a flagged answer is never correct.
func IsCorrect(q *model.Question, answerID uuid.UUID) bool {
	correctID, ok := q.CorrectAnswerID()
	return ok && correctID == answerID
}
