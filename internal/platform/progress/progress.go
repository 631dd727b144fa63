// Package progress owns every persisted learner key. Domain code never
// touches the kv store directly: it reads through the typed getters here and
// writes inside Do, which serialises read-modify-write per learner.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kalinga/kalinga/internal/platform/kv"
)

// Section names, in the order they unlock.
const (
	GeneralInfo       = "generalInfo"
	HelpfulMaterials  = "helpfulMaterials"
	TrainingMaterials = "trainingMaterials"
)

// Sections lists the three outline sections in unlock order.
var Sections = []string{GeneralInfo, HelpfulMaterials, TrainingMaterials}

// CourseProgress holds the completed item ids of one course, per section, in
// first-completion order.
type CourseProgress struct {
	GeneralInfo       []string `json:"generalInfo"`
	HelpfulMaterials  []string `json:"helpfulMaterials"`
	TrainingMaterials []string `json:"trainingMaterials"`
}

func emptyCourseProgress() CourseProgress {
	return CourseProgress{GeneralInfo: []string{}, HelpfulMaterials: []string{}, TrainingMaterials: []string{}}
}

func (p *CourseProgress) list(section string) *[]string {
	switch section {
	case GeneralInfo:
		return &p.GeneralInfo
	case HelpfulMaterials:
		return &p.HelpfulMaterials
	case TrainingMaterials:
		return &p.TrainingMaterials
	}
	return nil
}

// Completed returns the completion list of a section; nil for unknown names.
func (p CourseProgress) Completed(section string) []string {
	l := p.list(section)
	if l == nil {
		return nil
	}
	return *l
}

// Has reports whether id is in the section's completion list.
func (p CourseProgress) Has(section, id string) bool {
	for _, c := range p.Completed(section) {
		if c == id {
			return true
		}
	}
	return false
}

// Add appends id unless already present. It returns false when nothing changed.
func (p *CourseProgress) Add(section, id string) bool {
	l := p.list(section)
	if l == nil || p.Has(section, id) {
		return false
	}
	*l = append(*l, id)
	return true
}

// Result is a graded assessment attempt.
type Result struct {
	Score       int       `json:"score"`
	Passed      bool      `json:"passed"`
	CompletedAt time.Time `json:"completedAt"`
}

// Submission is the metadata of an uploaded activity file.
type Submission struct {
	Name        string    `json:"name"`
	ContentType string    `json:"type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	BlobKey     string    `json:"blobKey"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// ResultKey is the assessmentResults map key for a course and type.
func ResultKey(courseID int, kind string) string {
	return strconv.Itoa(courseID) + "-" + kind
}

// SubmissionKey is the per-activity key suffix.
func SubmissionKey(courseID int, slug string) string {
	return fmt.Sprintf("module-%d-activity-%s", courseID, slug)
}

const (
	keyUnlocked     = "unlocked-modules"
	keyResults      = "assessmentResults"
	keyCertificates = "certificates"
	keyLoggedIn     = "isLoggedIn"
)

func courseKey(courseID int) string {
	return "course-progress-" + strconv.Itoa(courseID)
}

// Store is the single owner of the persisted schema.
type Store struct {
	kv     kv.Store
	logger zerolog.Logger
	locks  sync.Map // learnerID -> *sync.Mutex
}

func New(store kv.Store, logger zerolog.Logger) *Store {
	return &Store{kv: store, logger: logger.With().Str("component", "progress").Logger()}
}

func (s *Store) lock(learnerID string) func() {
	m, _ := s.locks.LoadOrStore(learnerID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Do runs fn with the learner's lock held. All writes happen here.
func (s *Store) Do(ctx context.Context, learnerID string, fn func(tx *Tx) error) error {
	unlock := s.lock(learnerID)
	defer unlock()
	return fn(&Tx{ctx: ctx, s: s, learner: learnerID})
}

// View is Do for read-only callers; multi-key reads see one snapshot.
func (s *Store) View(ctx context.Context, learnerID string, fn func(tx *Tx) error) error {
	return s.Do(ctx, learnerID, fn)
}

// Tx is a learner-scoped handle valid only inside Do.
type Tx struct {
	ctx     context.Context
	s       *Store
	learner string
}

func (tx *Tx) key(k string) string {
	return "learner:" + tx.learner + ":" + k
}

// readJSON decodes the value at k into dst. Missing keys and malformed JSON
// both leave dst untouched; only backend errors are returned.
func (tx *Tx) readJSON(k string, dst interface{}) error {
	raw, ok, err := tx.s.kv.Get(tx.ctx, tx.key(k))
	if err != nil {
		return fmt.Errorf("read %s: %w", k, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		tx.s.logger.Debug().Err(err).Str("key", tx.key(k)).Msg("discarding unparseable value")
	}
	return nil
}

func (tx *Tx) writeJSON(k string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", k, err)
	}
	if err := tx.s.kv.Set(tx.ctx, tx.key(k), string(b)); err != nil {
		return fmt.Errorf("write %s: %w", k, err)
	}
	return nil
}

func (tx *Tx) CourseProgress(courseID int) (CourseProgress, error) {
	var p CourseProgress
	if err := tx.readJSON(courseKey(courseID), &p); err != nil {
		return emptyCourseProgress(), err
	}
	// A partial or null document still yields three non-nil lists.
	for _, sec := range Sections {
		if l := p.list(sec); *l == nil {
			*l = []string{}
		}
	}
	return p, nil
}

func (tx *Tx) SetCourseProgress(courseID int, p CourseProgress) error {
	return tx.writeJSON(courseKey(courseID), p)
}

// UnlockedModules returns the unlocked course ids in insertion order.
func (tx *Tx) UnlockedModules() ([]string, error) {
	ids := []string{}
	if err := tx.readJSON(keyUnlocked, &ids); err != nil {
		return []string{}, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Unlock adds the given course ids to the unlocked set, skipping ones already
// present. It reports how many were added.
func (tx *Tx) Unlock(courseIDs ...int) (int, error) {
	ids, err := tx.UnlockedModules()
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	added := 0
	for _, c := range courseIDs {
		id := strconv.Itoa(c)
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, tx.writeJSON(keyUnlocked, ids)
}

func (tx *Tx) Results() (map[string]Result, error) {
	m := map[string]Result{}
	if err := tx.readJSON(keyResults, &m); err != nil {
		return map[string]Result{}, err
	}
	if m == nil {
		m = map[string]Result{}
	}
	return m, nil
}

// Result returns the stored result for a course and type, or nil.
func (tx *Tx) Result(courseID int, kind string) (*Result, error) {
	m, err := tx.Results()
	if err != nil {
		return nil, err
	}
	r, ok := m[ResultKey(courseID, kind)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (tx *Tx) SetResult(courseID int, kind string, r Result) error {
	m, err := tx.Results()
	if err != nil {
		return err
	}
	m[ResultKey(courseID, kind)] = r
	return tx.writeJSON(keyResults, m)
}

func (tx *Tx) Certificates() (map[string]bool, error) {
	m := map[string]bool{}
	if err := tx.readJSON(keyCertificates, &m); err != nil {
		return map[string]bool{}, err
	}
	if m == nil {
		m = map[string]bool{}
	}
	return m, nil
}

// SetCertificate stores the claimed flag; false deletes the entry.
func (tx *Tx) SetCertificate(courseID int, claimed bool) error {
	m, err := tx.Certificates()
	if err != nil {
		return err
	}
	id := strconv.Itoa(courseID)
	if claimed {
		m[id] = true
	} else {
		delete(m, id)
	}
	return tx.writeJSON(keyCertificates, m)
}

func (tx *Tx) Submission(courseID int, slug string) (*Submission, error) {
	var sub *Submission
	if err := tx.readJSON(SubmissionKey(courseID, slug), &sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (tx *Tx) SetSubmission(courseID int, slug string, sub Submission) error {
	return tx.writeJSON(SubmissionKey(courseID, slug), sub)
}

func (tx *Tx) LoggedIn() (bool, error) {
	var v bool
	if err := tx.readJSON(keyLoggedIn, &v); err != nil {
		return false, err
	}
	return v, nil
}

// SetLoggedIn writes the login flag; logging out removes the key.
func (tx *Tx) SetLoggedIn(v bool) error {
	if !v {
		if err := tx.s.kv.Remove(tx.ctx, tx.key(keyLoggedIn)); err != nil {
			return fmt.Errorf("remove %s: %w", keyLoggedIn, err)
		}
		return nil
	}
	return tx.writeJSON(keyLoggedIn, true)
}

// LoggedIn is the lock-taking shortcut used by the route guard.
func (s *Store) LoggedIn(ctx context.Context, learnerID string) (bool, error) {
	var v bool
	err := s.View(ctx, learnerID, func(tx *Tx) error {
		var err error
		v, err = tx.LoggedIn()
		return err
	})
	return v, err
}
