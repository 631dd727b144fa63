package course

import (
	"errors"

	"github.com/kalinga/kalinga/internal/platform/progress"
)

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrItemNotFound   = errors.New("item not found")
	ErrSectionLocked  = errors.New("section locked")
	ErrItemLocked     = errors.New("item locked")
	ErrDwellPending   = errors.New("minimum time on this item has not elapsed")
	ErrNotActivity    = errors.New("item is not an activity")
)

// Blocking messages shown when navigation is refused.
const (
	MsgSectionLocked = "Please complete the previous section first."
	MsgItemLocked    = "Please complete the previous lesson before proceeding."
)

// Kind is what an outline item renders as.
type Kind string

const (
	KindInfo       Kind = "info"
	KindModule     Kind = "module"
	KindLesson     Kind = "lesson"
	KindAssessment Kind = "assessment"
	KindActivity   Kind = "activity"
)

// AssessmentType names one of the three question sets.
type AssessmentType string

const (
	Pretest AssessmentType = "pretest"
	Quiz    AssessmentType = "quiz"
	Final   AssessmentType = "final"
)

var AssessmentTypes = []AssessmentType{Pretest, Quiz, Final}

// ParseAssessmentType accepts the stored names and the route slugs.
func ParseAssessmentType(s string) (AssessmentType, bool) {
	switch s {
	case "pretest", "pre-test":
		return Pretest, true
	case "quiz":
		return Quiz, true
	case "final", "final-assessment":
		return Final, true
	}
	return "", false
}

// Slug is the route segment for the assessment page.
func (t AssessmentType) Slug() string {
	switch t {
	case Pretest:
		return "pre-test"
	case Final:
		return "final-assessment"
	}
	return string(t)
}

type Item struct {
	Title           string         `yaml:"title" json:"title"`
	Slug            string         `yaml:"-" json:"slug"`
	Kind            Kind           `yaml:"kind" json:"kind"`
	Assessment      AssessmentType `yaml:"assessment,omitempty" json:"assessment,omitempty"`
	MinDwellSeconds int            `yaml:"minDwellSeconds,omitempty" json:"minDwellSeconds"`
}

type Question struct {
	Question string   `yaml:"question" json:"question"`
	Options  []string `yaml:"options" json:"options"`
	Answer   int      `yaml:"answer" json:"-"`
}

type Material struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
	Link string `yaml:"link" json:"link"`
}

type Course struct {
	ID                  int                           `yaml:"id" json:"id"`
	Title               string                        `yaml:"title" json:"title"`
	ActivityDescription string                        `yaml:"activityDescription" json:"activityDescription,omitempty"`
	Materials           []Material                    `yaml:"materials" json:"materials,omitempty"`
	Sections            map[string][]Item             `yaml:"sections" json:"-"`
	Assessments         map[AssessmentType][]Question `yaml:"assessments" json:"-"`
}

// Items returns a section's items in order; unknown sections have none.
func (c *Course) Items(section string) []Item {
	return c.Sections[section]
}

// ItemCount totals the items across all sections.
func (c *Course) ItemCount() int {
	n := 0
	for _, s := range progress.Sections {
		n += len(c.Sections[s])
	}
	return n
}

// Questions returns the question set for t, possibly empty.
func (c *Course) Questions(t AssessmentType) []Question {
	return c.Assessments[t]
}

// AssessmentItem locates the training item that stands for t.
func (c *Course) AssessmentItem(t AssessmentType) (string, int, bool) {
	for i, it := range c.Sections[progress.TrainingMaterials] {
		if it.Kind == KindAssessment && it.Assessment == t {
			return progress.TrainingMaterials, i, true
		}
	}
	return "", 0, false
}

// Locate finds any item by slug.
func (c *Course) Locate(slug string) (string, int, bool) {
	for _, s := range progress.Sections {
		for i, it := range c.Sections[s] {
			if it.Slug == slug {
				return s, i, true
			}
		}
	}
	return "", 0, false
}

// ActivityItem locates an activity item by slug in any section.
func (c *Course) ActivityItem(slug string) (string, int, bool) {
	for _, s := range progress.Sections {
		for i, it := range c.Sections[s] {
			if it.Kind == KindActivity && it.Slug == slug {
				return s, i, true
			}
		}
	}
	return "", 0, false
}
