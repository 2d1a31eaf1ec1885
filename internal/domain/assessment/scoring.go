package assessment

import (
	"math"
	"strings"
)

// PassPercentage is the inclusive pass threshold.
const PassPercentage = 50

// Result is the outcome of scoring one submission.
type Result struct {
	Score      int
	TotalMarks int

	// Percentage is rounded to two decimals; 0 when TotalMarks is 0.
	Percentage float64
	Passed     bool
}

// AnswerMatches compares trimmed answers case-insensitively.
func AnswerMatches(given, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(correct))
}

// Score grades answers against the frozen questions. Missing answers and
// answers for unknown question ids earn nothing.
func Score(questions []Question, answers map[string]string) Result {
	var r Result
	for _, q := range questions {
		r.TotalMarks += q.Marks
		if given, ok := answers[q.ID]; ok && AnswerMatches(given, q.CorrectAnswer) {
			r.Score += q.Marks
		}
	}

	if r.TotalMarks > 0 {
		raw := float64(r.Score) * 100 / float64(r.TotalMarks)
		r.Percentage = math.Round(raw*100) / 100
		r.Passed = r.Score*100 >= PassPercentage*r.TotalMarks
	}
	return r
}
