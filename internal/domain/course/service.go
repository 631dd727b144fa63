package course

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/platform/blobstore"
	"github.com/kalinga/kalinga/internal/platform/progress"
	"github.com/kalinga/kalinga/internal/platform/timer"
)

// ItemState is derived from the persisted completion lists.
type ItemState string

const (
	StateLocked    ItemState = "locked"
	StateAvailable ItemState = "available"
	StateCompleted ItemState = "completed"
)

type ItemView struct {
	Item
	Index int       `json:"index"`
	State ItemState `json:"state"`
	Route string    `json:"route"`
}

type SectionView struct {
	Name      string     `json:"name"`
	Unlocked  bool       `json:"unlocked"`
	Completed int        `json:"completed"`
	Total     int        `json:"total"`
	Items     []ItemView `json:"items"`
}

// Access reports both unlock paths and their OR.
type Access struct {
	UnlockedByCompletion bool `json:"unlockedByCompletion"`
	UnlockedByQuiz       bool `json:"unlockedByQuiz"`
	Unlocked             bool `json:"unlocked"`
}

type Outline struct {
	*Course
	Sections []SectionView `json:"sections"`
	Access   Access        `json:"access"`
}

type OpenResult struct {
	Route          string   `json:"route"`
	Item           ItemView `json:"item"`
	DwellRemaining int      `json:"dwellRemaining"`
	Bypassed       bool     `json:"bypassed"`
}

type CompleteResult struct {
	Item             ItemView `json:"item"`
	AlreadyCompleted bool     `json:"alreadyCompleted"`
	UnlockedCourses  []int    `json:"unlockedCourses"`
	Redirect         string   `json:"redirect,omitempty"`
}

// Service is the course progress state machine.
type Service struct {
	catalog *Catalog
	store   *progress.Store
	dwell   *DwellGate
	blobs   blobstore.BlobStore
	clock   timer.Clock
	logger  zerolog.Logger
}

func NewService(catalog *Catalog, store *progress.Store, dwell *DwellGate, blobs blobstore.BlobStore, clock timer.Clock, logger zerolog.Logger) *Service {
	return &Service{
		catalog: catalog,
		store:   store,
		dwell:   dwell,
		blobs:   blobs,
		clock:   clock,
		logger:  logger.With().Str("component", "course").Logger(),
	}
}

func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// UnlockedByCompletion is the sequential path: the course id is in the
// learner's unlocked set, put there by finishing this course or the one
// before it.
func UnlockedByCompletion(unlocked []string, courseID int) bool {
	id := strconv.Itoa(courseID)
	for _, u := range unlocked {
		if u == id {
			return true
		}
	}
	return false
}

// UnlockedByQuiz is the bypass path: a passed quiz opens the course without
// finishing the outline. The permissiveness is intended.
func UnlockedByQuiz(results map[string]progress.Result, courseID int) bool {
	r, ok := results[progress.ResultKey(courseID, string(Quiz))]
	return ok && r.Passed
}

func accessFor(tx *progress.Tx, courseID int) (Access, error) {
	unlocked, err := tx.UnlockedModules()
	if err != nil {
		return Access{}, err
	}
	results, err := tx.Results()
	if err != nil {
		return Access{}, err
	}
	a := Access{
		UnlockedByCompletion: UnlockedByCompletion(unlocked, courseID),
		UnlockedByQuiz:       UnlockedByQuiz(results, courseID),
	}
	a.Unlocked = a.UnlockedByCompletion || a.UnlockedByQuiz
	return a, nil
}

func sectionComplete(c *Course, p progress.CourseProgress, section string) bool {
	for _, it := range c.Items(section) {
		if !p.Has(section, it.Slug) {
			return false
		}
	}
	return true
}

func sectionUnlocked(c *Course, p progress.CourseProgress, section string) bool {
	for _, prev := range progress.Sections {
		if prev == section {
			return true
		}
		if !sectionComplete(c, p, prev) {
			return false
		}
	}
	return false
}

func itemAvailable(c *Course, p progress.CourseProgress, section string, i int) bool {
	return i == 0 || p.Has(section, c.Items(section)[i-1].Slug)
}

func itemState(c *Course, p progress.CourseProgress, section string, i int) ItemState {
	switch {
	case p.Has(section, c.Items(section)[i].Slug):
		return StateCompleted
	case sectionUnlocked(c, p, section) && itemAvailable(c, p, section, i):
		return StateAvailable
	}
	return StateLocked
}

func allComplete(c *Course, p progress.CourseProgress) bool {
	for _, sec := range progress.Sections {
		if !sectionComplete(c, p, sec) {
			return false
		}
	}
	return true
}

func (s *Service) view(c *Course, p progress.CourseProgress, section string, i int) ItemView {
	it := c.Items(section)[i]
	return ItemView{Item: it, Index: i, State: itemState(c, p, section, i), Route: Route(c.ID, section, it)}
}

func (s *Service) lookup(courseID int, section string, index int) (*Course, Item, error) {
	c, err := s.catalog.Get(courseID)
	if err != nil {
		return nil, Item{}, err
	}
	if !knownSection(section) {
		return nil, Item{}, fmt.Errorf("section %q: %w", section, ErrItemNotFound)
	}
	items := c.Items(section)
	if index < 0 || index >= len(items) {
		return nil, Item{}, fmt.Errorf("%s[%d]: %w", section, index, ErrItemNotFound)
	}
	return c, items[index], nil
}

// checkReachable applies the two navigation gates in order.
func checkReachable(c *Course, p progress.CourseProgress, section string, index int) error {
	if !sectionUnlocked(c, p, section) {
		return ErrSectionLocked
	}
	if !itemAvailable(c, p, section, index) {
		return ErrItemLocked
	}
	return nil
}

// Outline returns the course with every item's derived state.
func (s *Service) Outline(ctx context.Context, learnerID string, courseID int) (*Outline, error) {
	c, err := s.catalog.Get(courseID)
	if err != nil {
		return nil, err
	}
	out := &Outline{Course: c}
	err = s.store.View(ctx, learnerID, func(tx *progress.Tx) error {
		p, err := tx.CourseProgress(courseID)
		if err != nil {
			return err
		}
		if out.Access, err = accessFor(tx, courseID); err != nil {
			return err
		}
		for _, sec := range progress.Sections {
			sv := SectionView{Name: sec, Unlocked: sectionUnlocked(c, p, sec), Items: []ItemView{}}
			for i := range c.Items(sec) {
				v := s.view(c, p, sec, i)
				if v.State == StateCompleted {
					sv.Completed++
				}
				sv.Items = append(sv.Items, v)
			}
			sv.Total = len(sv.Items)
			out.Sections = append(out.Sections, sv)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("outline course %d: %w", courseID, err)
	}
	return out, nil
}

// Access evaluates the two unlock predicates for a course.
func (s *Service) Access(ctx context.Context, learnerID string, courseID int) (Access, error) {
	if _, err := s.catalog.Get(courseID); err != nil {
		return Access{}, err
	}
	var a Access
	err := s.store.View(ctx, learnerID, func(tx *progress.Tx) error {
		var err error
		a, err = accessFor(tx, courseID)
		return err
	})
	return a, err
}

// Open navigates to an item. Locked items are refused without touching any
// state, unless the course is already unlocked, in which case navigation
// (never completion) skips the sequence. Info and module pages complete on
// entry; timed lessons start their dwell window.
func (s *Service) Open(ctx context.Context, learnerID string, courseID int, section string, index int) (*OpenResult, error) {
	c, it, err := s.lookup(courseID, section, index)
	if err != nil {
		return nil, err
	}
	k := dwellKey{learner: learnerID, course: courseID, section: section, index: index}

	var res *OpenResult
	err = s.store.Do(ctx, learnerID, func(tx *progress.Tx) error {
		p, err := tx.CourseProgress(courseID)
		if err != nil {
			return err
		}
		res = &OpenResult{Route: Route(courseID, section, it)}
		if p.Has(section, it.Slug) {
			res.Item = s.view(c, p, section, index)
			return nil
		}

		if gate := checkReachable(c, p, section, index); gate != nil {
			access, err := accessFor(tx, courseID)
			if err != nil {
				return err
			}
			if !access.Unlocked {
				return gate
			}
			res.Bypassed = true
			res.Item = s.view(c, p, section, index)
			return nil
		}

		if it.Kind == KindInfo || it.Kind == KindModule {
			p.Add(section, it.Slug)
			if err := tx.SetCourseProgress(courseID, p); err != nil {
				return err
			}
		} else if it.MinDwellSeconds > 0 {
			s.dwell.Enter(k, it.MinDwellSeconds)
			res.DwellRemaining = it.MinDwellSeconds
		}
		res.Item = s.view(c, p, section, index)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DwellRemaining is the seconds left on an item's dwell window; completed
// items report zero.
func (s *Service) DwellRemaining(ctx context.Context, learnerID string, courseID int, section string, index int) (int, error) {
	_, it, err := s.lookup(courseID, section, index)
	if err != nil {
		return 0, err
	}
	done := false
	err = s.store.View(ctx, learnerID, func(tx *progress.Tx) error {
		p, err := tx.CourseProgress(courseID)
		done = p.Has(section, it.Slug)
		return err
	})
	if err != nil || done {
		return 0, err
	}
	return s.dwell.Remaining(dwellKey{learner: learnerID, course: courseID, section: section, index: index}, it.MinDwellSeconds), nil
}

// Complete marks an item completed. It is refused while the item is locked
// or its dwell window is open. Completing an already completed item changes
// nothing. Finishing the last training item with the whole outline done
// unlocks this course and the next one and redirects to the quiz.
func (s *Service) Complete(ctx context.Context, learnerID string, courseID int, section string, index int) (*CompleteResult, error) {
	c, it, err := s.lookup(courseID, section, index)
	if err != nil {
		return nil, err
	}
	k := dwellKey{learner: learnerID, course: courseID, section: section, index: index}

	var res *CompleteResult
	err = s.store.Do(ctx, learnerID, func(tx *progress.Tx) error {
		p, err := tx.CourseProgress(courseID)
		if err != nil {
			return err
		}
		res, err = s.completeLocked(tx, c, p, section, index, k)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !res.AlreadyCompleted {
		s.logger.Info().Str("learner", learnerID).Int("course", courseID).
			Str("section", section).Str("item", it.Slug).Ints("unlocked", res.UnlockedCourses).
			Msg("item completed")
	}
	return res, nil
}

// completeLocked runs inside the learner's lock.
func (s *Service) completeLocked(tx *progress.Tx, c *Course, p progress.CourseProgress, section string, index int, k dwellKey) (*CompleteResult, error) {
	it := c.Items(section)[index]
	res := &CompleteResult{UnlockedCourses: []int{}}
	if p.Has(section, it.Slug) {
		res.AlreadyCompleted = true
		res.Item = s.view(c, p, section, index)
		return res, nil
	}
	if err := checkReachable(c, p, section, index); err != nil {
		return nil, err
	}
	if rem := s.dwell.Remaining(k, it.MinDwellSeconds); rem > 0 {
		return nil, fmt.Errorf("%w: %d seconds remaining", ErrDwellPending, rem)
	}

	p.Add(section, it.Slug)
	if err := tx.SetCourseProgress(c.ID, p); err != nil {
		return nil, err
	}
	s.dwell.Leave(k)
	res.Item = s.view(c, p, section, index)

	items := c.Items(section)
	if section == progress.TrainingMaterials && index == len(items)-1 && allComplete(c, p) {
		added, err := tx.Unlock(c.ID, c.ID+1)
		if err != nil {
			return nil, err
		}
		if added > 0 {
			res.UnlockedCourses = []int{c.ID, c.ID + 1}
		}
		res.Redirect = AssessmentRoute(c.ID, Quiz)
		return res, nil
	}
	if index+1 < len(items) {
		res.Redirect = Route(c.ID, section, items[index+1])
	}
	return res, nil
}

// CompleteAssessment completes the training item that stands for t, if the
// course has one. A course without such an item yields a nil result.
func (s *Service) CompleteAssessment(ctx context.Context, learnerID string, courseID int, t AssessmentType) (*CompleteResult, error) {
	c, err := s.catalog.Get(courseID)
	if err != nil {
		return nil, err
	}
	section, index, ok := c.AssessmentItem(t)
	if !ok {
		return nil, nil
	}
	return s.Complete(ctx, learnerID, courseID, section, index)
}

func activity(c *Course, slug string) (string, int, error) {
	if section, index, ok := c.ActivityItem(slug); ok {
		return section, index, nil
	}
	if _, _, ok := c.Locate(slug); ok {
		return "", 0, fmt.Errorf("%q: %w", slug, ErrNotActivity)
	}
	return "", 0, fmt.Errorf("activity %q: %w", slug, ErrItemNotFound)
}

// SubmissionKey is the blob key of a learner's activity upload.
func SubmissionKey(learnerID string, courseID int, slug string) string {
	return "learner:" + learnerID + ":" + progress.SubmissionKey(courseID, slug)
}

type SubmitResult struct {
	Submission progress.Submission `json:"submission"`
	Completion *CompleteResult     `json:"completion"`
}

// SubmitActivity validates and stores an activity upload, then completes the
// activity item. Locked activities are refused before any bytes are stored.
// A resubmission replaces the previous file.
func (s *Service) SubmitActivity(ctx context.Context, learnerID string, courseID int, slug string, meta blobstore.Metadata, content io.Reader) (*SubmitResult, error) {
	c, err := s.catalog.Get(courseID)
	if err != nil {
		return nil, err
	}
	section, index, err := activity(c, slug)
	if err != nil {
		return nil, err
	}
	k := dwellKey{learner: learnerID, course: courseID, section: section, index: index}

	resubmit := false
	err = s.store.View(ctx, learnerID, func(tx *progress.Tx) error {
		p, err := tx.CourseProgress(courseID)
		if err != nil {
			return err
		}
		if p.Has(section, slug) {
			resubmit = true
			return nil
		}
		return checkReachable(c, p, section, index)
	})
	if err != nil {
		return nil, err
	}

	if err := blobstore.Validate(meta); err != nil {
		return nil, err
	}
	meta.CreatedBy = learnerID
	blobKey := SubmissionKey(learnerID, courseID, slug)
	stored, err := s.blobs.Put(ctx, blobKey, meta, content)
	if err != nil {
		return nil, err
	}

	out := &SubmitResult{Submission: progress.Submission{
		Name:        stored.FileName,
		ContentType: stored.ContentType,
		Size:        stored.Size,
		SHA256:      stored.Hash,
		BlobKey:     stored.Key,
		SubmittedAt: s.clock.Now().UTC(),
	}}
	// The metadata is written only once the item is completed.
	err = s.store.Do(ctx, learnerID, func(tx *progress.Tx) error {
		p, err := tx.CourseProgress(courseID)
		if err != nil {
			return err
		}
		out.Completion, err = s.completeLocked(tx, c, p, section, index, k)
		if err != nil {
			return err
		}
		return tx.SetSubmission(courseID, slug, out.Submission)
	})
	if err != nil {
		if !resubmit {
			if derr := s.blobs.Delete(ctx, blobKey); derr != nil {
				s.logger.Warn().Err(derr).Str("learner", learnerID).Str("activity", slug).Msg("discard orphaned upload")
			}
		}
		return nil, err
	}
	s.logger.Info().Str("learner", learnerID).Int("course", courseID).Str("activity", slug).
		Int64("size", stored.Size).Msg("activity submitted")
	return out, nil
}

// Submission returns the stored metadata for an activity, or nil.
func (s *Service) Submission(ctx context.Context, learnerID string, courseID int, slug string) (*progress.Submission, error) {
	c, err := s.catalog.Get(courseID)
	if err != nil {
		return nil, err
	}
	if _, _, err := activity(c, slug); err != nil {
		return nil, err
	}
	var sub *progress.Submission
	err = s.store.View(ctx, learnerID, func(tx *progress.Tx) error {
		var err error
		sub, err = tx.Submission(courseID, slug)
		return err
	})
	return sub, err
}

// SubmissionFile streams a learner's uploaded file.
func (s *Service) SubmissionFile(ctx context.Context, learnerID string, courseID int, slug string) (io.ReadCloser, *blobstore.Metadata, error) {
	return s.blobs.Get(ctx, SubmissionKey(learnerID, courseID, slug))
}
