package assessment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/domain/course"
	"github.com/kalinga/kalinga/internal/platform/progress"
	"github.com/kalinga/kalinga/internal/platform/timer"
)

// Completer advances the course outline once an assessment is taken.
type Completer interface {
	CompleteAssessment(ctx context.Context, learnerID string, courseID int, t course.AssessmentType) (*course.CompleteResult, error)
}

type Service struct {
	catalog   *course.Catalog
	store     *progress.Store
	completer Completer
	clock     timer.Clock
	logger    zerolog.Logger
}

func NewService(catalog *course.Catalog, store *progress.Store, completer Completer, clock timer.Clock, logger zerolog.Logger) *Service {
	return &Service{
		catalog:   catalog,
		store:     store,
		completer: completer,
		clock:     clock,
		logger:    logger.With().Str("component", "assessment").Logger(),
	}
}

// Questions returns a question set. Answers never leave the server.
func (s *Service) Questions(courseID int, t course.AssessmentType) ([]course.Question, error) {
	c, err := s.catalog.Get(courseID)
	if err != nil {
		return nil, err
	}
	qs := c.Questions(t)
	if qs == nil {
		qs = []course.Question{}
	}
	return qs, nil
}

// Submit grades answers, records the result and then tries to complete the
// matching outline item. The result is kept even when the item is still
// locked.
func (s *Service) Submit(ctx context.Context, learnerID string, courseID int, t course.AssessmentType, answers []int) (*Outcome, error) {
	qs, err := s.Questions(courseID, t)
	if err != nil {
		return nil, err
	}
	score, correct, err := Grade(qs, answers)
	if err != nil {
		return nil, err
	}
	r, err := s.RecordResult(ctx, learnerID, courseID, t, score)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Score: score, Correct: correct, Total: len(qs), Passed: r.Passed}

	out.Completion, err = s.completer.CompleteAssessment(ctx, learnerID, courseID, t)
	switch {
	case errors.Is(err, course.ErrSectionLocked), errors.Is(err, course.ErrItemLocked):
		s.logger.Info().Str("learner", learnerID).Int("course", courseID).Str("type", string(t)).
			Msg("result recorded, outline item still locked")
	case err != nil:
		return nil, fmt.Errorf("complete %s item: %w", t, err)
	}
	return out, nil
}

// RecordResult stores a score; passed is derived from PassMark.
func (s *Service) RecordResult(ctx context.Context, learnerID string, courseID int, t course.AssessmentType, score int) (progress.Result, error) {
	if _, err := s.catalog.Get(courseID); err != nil {
		return progress.Result{}, err
	}
	if score < 0 || score > 100 {
		return progress.Result{}, ErrScoreRange
	}
	r := progress.Result{Score: score, Passed: score >= PassMark, CompletedAt: s.clock.Now().UTC()}
	err := s.store.Do(ctx, learnerID, func(tx *progress.Tx) error {
		return tx.SetResult(courseID, string(t), r)
	})
	if err != nil {
		return progress.Result{}, fmt.Errorf("record result: %w", err)
	}
	s.logger.Info().Str("learner", learnerID).Int("course", courseID).Str("type", string(t)).
		Int("score", score).Bool("passed", r.Passed).Msg("assessment result recorded")
	return r, nil
}

// ReadResult returns nil when the learner has no result of that type.
func (s *Service) ReadResult(ctx context.Context, learnerID string, courseID int, t course.AssessmentType) (*progress.Result, error) {
	if _, err := s.catalog.Get(courseID); err != nil {
		return nil, err
	}
	var r *progress.Result
	err := s.store.View(ctx, learnerID, func(tx *progress.Tx) error {
		var err error
		r, err = tx.Result(courseID, string(t))
		return err
	})
	return r, err
}

func scoreOf(results map[string]progress.Result, courseID int, t course.AssessmentType) *int {
	r, ok := results[progress.ResultKey(courseID, string(t))]
	if !ok {
		return nil
	}
	v := r.Score
	return &v
}

func finalPassed(results map[string]progress.Result, courseID int) bool {
	r, ok := results[progress.ResultKey(courseID, string(course.Final))]
	return ok && r.Passed
}

// Report builds one grade row per catalog course.
func (s *Service) Report(ctx context.Context, learnerID string) ([]CourseGrade, error) {
	var (
		results  map[string]progress.Result
		unlocked []string
		certs    map[string]bool
	)
	err := s.store.View(ctx, learnerID, func(tx *progress.Tx) error {
		var err error
		if results, err = tx.Results(); err != nil {
			return err
		}
		if unlocked, err = tx.UnlockedModules(); err != nil {
			return err
		}
		certs, err = tx.Certificates()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("grade report: %w", err)
	}

	courses := s.catalog.List()
	out := make([]CourseGrade, 0, len(courses))
	for _, c := range courses {
		g := CourseGrade{
			CourseID: c.ID,
			Title:    c.Title,
			Pretest:  scoreOf(results, c.ID, course.Pretest),
			Quiz:     scoreOf(results, c.ID, course.Quiz),
			Final:    scoreOf(results, c.ID, course.Final),
			Unlocked: course.UnlockedByCompletion(unlocked, c.ID),
		}
		g.Overall = Overall(g.Pretest, g.Quiz, g.Final)
		g.Colour = StatusColour(g.Overall)
		g.FinalPassed = finalPassed(results, c.ID)
		g.CertificateClaimed = certs[strconv.Itoa(c.ID)]
		g.CanClaim = g.FinalPassed && !g.CertificateClaimed
		out = append(out, g)
	}
	return out, nil
}

// Claim records a certificate. It needs a passed final; claiming twice
// changes nothing and reports false.
func (s *Service) Claim(ctx context.Context, learnerID string, courseID int) (bool, error) {
	if _, err := s.catalog.Get(courseID); err != nil {
		return false, err
	}
	claimed := false
	err := s.store.Do(ctx, learnerID, func(tx *progress.Tx) error {
		results, err := tx.Results()
		if err != nil {
			return err
		}
		if !finalPassed(results, courseID) {
			return ErrNotEligible
		}
		certs, err := tx.Certificates()
		if err != nil {
			return err
		}
		if certs[strconv.Itoa(courseID)] {
			return nil
		}
		claimed = true
		return tx.SetCertificate(courseID, true)
	})
	if err != nil {
		return false, err
	}
	if claimed {
		s.logger.Info().Str("learner", learnerID).Int("course", courseID).Msg("certificate claimed")
	}
	return claimed, nil
}

// Revoke clears a claim whatever the score history.
func (s *Service) Revoke(ctx context.Context, learnerID string, courseID int) error {
	if _, err := s.catalog.Get(courseID); err != nil {
		return err
	}
	return s.store.Do(ctx, learnerID, func(tx *progress.Tx) error {
		return tx.SetCertificate(courseID, false)
	})
}

// Certificates lists claimed certificates in catalog order. The completion
// date is the day the final was recorded, or "-" when there is none.
func (s *Service) Certificates(ctx context.Context, learnerID string) ([]Certificate, error) {
	var (
		results map[string]progress.Result
		certs   map[string]bool
	)
	err := s.store.View(ctx, learnerID, func(tx *progress.Tx) error {
		var err error
		if results, err = tx.Results(); err != nil {
			return err
		}
		certs, err = tx.Certificates()
		return err
	})
	if err != nil {
		return nil, err
	}
	out := []Certificate{}
	for _, c := range s.catalog.List() {
		if !certs[strconv.Itoa(c.ID)] {
			continue
		}
		date := "-"
		if r, ok := results[progress.ResultKey(c.ID, string(course.Final))]; ok {
			date = r.CompletedAt.Format("2006-01-02")
		}
		out = append(out, Certificate{CourseID: c.ID, Title: c.Title, DateCompleted: date})
	}
	return out, nil
}
