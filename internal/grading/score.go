package grading

import (
	"fmt"
	"math"
	"strings"

	"github.com/mind-engage/mindengage-academy/internal/errs"
)

// Unanswered marks an answer slot with no selection. It never matches.
const Unanswered = -1

// Q is the minimal view of a question needed for grading.
type Q struct {
	Points  int
	Correct int // 0-based option index
}

// Result is the outcome of grading a full answer vector.
type Result struct {
	EarnedPoints int `json:"earned_points"`
	TotalPoints  int `json:"total_points"`
	Percentage   int `json:"percentage"`
}

// Score grades answers against questions. answers[i] is the chosen option
// for questions[i], or Unanswered. It has no side effects.
func Score(questions []Q, answers []int) (Result, error) {
	if len(questions) == 0 {
		return Result{}, fmt.Errorf("%w: exam has no questions", errs.ErrDegenerateExam)
	}
	if len(answers) != len(questions) {
		return Result{}, fmt.Errorf("%w: %d answers for %d questions", errs.ErrInvalidInput, len(answers), len(questions))
	}

	var res Result
	for i, q := range questions {
		res.TotalPoints += q.Points
		if a := answers[i]; a != Unanswered && a >= 0 && a == q.Correct {
			res.EarnedPoints += q.Points
		}
	}
	if res.TotalPoints <= 0 {
		return Result{}, errs.ErrDegenerateExam
	}
	res.Percentage = int(math.Round(100 * float64(res.EarnedPoints) / float64(res.TotalPoints)))
	return res, nil
}

// Passed reports whether a percentage meets the threshold. Ties pass.
func Passed(percentage, passingScore int) bool {
	return percentage >= passingScore
}

// ValidateQuestion is applied when a question is written, so grading never
// sees malformed point values or answer keys.
func ValidateQuestion(text string, options []string, correct, points int) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: question text required", errs.ErrInvalidInput)
	}
	if len(options) < 2 {
		return fmt.Errorf("%w: at least two options required", errs.ErrInvalidInput)
	}
	for i, o := range options {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("%w: option %d is empty", errs.ErrInvalidInput, i)
		}
	}
	if correct < 0 || correct >= len(options) {
		return fmt.Errorf("%w: correct index %d out of range", errs.ErrInvalidInput, correct)
	}
	if points < 1 {
		return fmt.Errorf("%w: points must be a positive integer", errs.ErrInvalidInput)
	}
	return nil
}

// ValidateExam checks exam-level settings at write time.
func ValidateExam(title string, durationMinutes, passingScore int) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: exam title required", errs.ErrInvalidInput)
	}
	if durationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", errs.ErrInvalidInput)
	}
	if passingScore < 0 || passingScore > 100 {
		return fmt.Errorf("%w: passing score must be within [0,100]", errs.ErrInvalidInput)
	}
	return nil
}
