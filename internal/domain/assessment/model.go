package assessment

import (
	"errors"
	"fmt"
	"math"

	"github.com/kalinga/kalinga/internal/domain/course"
)

// PassMark is the minimum score that passes any assessment.
const PassMark = 80

var (
	ErrNoQuestions = errors.New("assessment has no questions")
	ErrAnswerCount = errors.New("answer count does not match question count")
	ErrScoreRange  = errors.New("score must be between 0 and 100")
	ErrNotEligible = errors.New("final assessment not passed")
	ErrUnknownType = errors.New("unknown assessment type")
)

// Status colours for the grade report.
const (
	ColourGreen  = "green"
	ColourOrange = "orange"
	ColourRed    = "red"
	ColourMuted  = "muted"
)

// Grade scores answers against questions. An answer is an option index;
// anything out of range counts as wrong.
func Grade(questions []course.Question, answers []int) (score, correct int, err error) {
	if len(questions) == 0 {
		return 0, 0, ErrNoQuestions
	}
	if len(answers) != len(questions) {
		return 0, 0, fmt.Errorf("%w: %d answers for %d questions", ErrAnswerCount, len(answers), len(questions))
	}
	for i, q := range questions {
		if answers[i] == q.Answer {
			correct++
		}
	}
	return roundPercent(correct, len(questions)), correct, nil
}

func roundPercent(n, total int) int {
	return int(math.Round(100 * float64(n) / float64(total)))
}

// Overall is the rounded mean of the scores that are present. It is nil
// when none are.
func Overall(scores ...*int) *int {
	sum, n := 0, 0
	for _, s := range scores {
		if s != nil {
			sum += *s
			n++
		}
	}
	if n == 0 {
		return nil
	}
	v := int(math.Round(float64(sum) / float64(n)))
	return &v
}

func StatusColour(overall *int) string {
	switch {
	case overall == nil:
		return ColourMuted
	case *overall >= PassMark:
		return ColourGreen
	case *overall >= 60:
		return ColourOrange
	}
	return ColourRed
}

// CourseGrade is one row of the grade report.
type CourseGrade struct {
	CourseID           int    `json:"courseId"`
	Title              string `json:"title"`
	Pretest            *int   `json:"pretest"`
	Quiz               *int   `json:"quiz"`
	Final              *int   `json:"final"`
	Overall            *int   `json:"overall"`
	Colour             string `json:"colour"`
	Unlocked           bool   `json:"unlocked"`
	FinalPassed        bool   `json:"finalPassed"`
	CertificateClaimed bool   `json:"certificateClaimed"`
	CanClaim           bool   `json:"canClaim"`
}

type Certificate struct {
	CourseID      int    `json:"courseId"`
	Title         string `json:"title"`
	DateCompleted string `json:"dateCompleted"`
}

type SubmitRequest struct {
	Answers []int `json:"answers" validate:"required"`
}

type RecordRequest struct {
	Score *int `json:"score" validate:"required,min=0,max=100"`
}

type Outcome struct {
	Score      int                    `json:"score"`
	Correct    int                    `json:"correct"`
	Total      int                    `json:"total"`
	Passed     bool                   `json:"passed"`
	Completion *course.CompleteResult `json:"completion,omitempty"`
}
