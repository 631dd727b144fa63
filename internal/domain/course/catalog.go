package course

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kalinga/kalinga/internal/platform/progress"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the static course reference data, keyed by id.
type Catalog struct {
	courses map[int]*Course
	order   []int
}

type catalogFile struct {
	Courses []*Course `yaml:"courses"`
}

// LoadCatalog reads path, or the embedded catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	cat := &Catalog{courses: make(map[int]*Course, len(f.Courses))}
	for _, c := range f.Courses {
		if err := prepareCourse(c); err != nil {
			return nil, err
		}
		if _, dup := cat.courses[c.ID]; dup {
			return nil, fmt.Errorf("course %d: duplicate id", c.ID)
		}
		cat.courses[c.ID] = c
		cat.order = append(cat.order, c.ID)
	}
	sort.Ints(cat.order)
	return cat, nil
}

func prepareCourse(c *Course) error {
	if c.ID <= 0 {
		return fmt.Errorf("course id must be positive, got %d", c.ID)
	}
	if c.Title == "" {
		return fmt.Errorf("course %d: title is required", c.ID)
	}
	if c.Sections == nil {
		c.Sections = map[string][]Item{}
	}
	for name := range c.Sections {
		if !knownSection(name) {
			return fmt.Errorf("course %d: unknown section %q", c.ID, name)
		}
	}
	for _, sec := range progress.Sections {
		seen := map[string]bool{}
		items := c.Sections[sec]
		for i := range items {
			it := &items[i]
			if it.Title == "" {
				return fmt.Errorf("course %d: %s[%d] has no title", c.ID, sec, i)
			}
			it.Slug = Slugify(it.Title)
			if seen[it.Slug] {
				return fmt.Errorf("course %d: %s has duplicate item %q", c.ID, sec, it.Slug)
			}
			seen[it.Slug] = true
			if err := checkItem(c.ID, sec, i, it); err != nil {
				return err
			}
		}
	}
	if c.Assessments == nil {
		c.Assessments = map[AssessmentType][]Question{}
	}
	for t, qs := range c.Assessments {
		if _, ok := ParseAssessmentType(string(t)); !ok {
			return fmt.Errorf("course %d: unknown assessment type %q", c.ID, t)
		}
		for i, q := range qs {
			if q.Answer < 0 || q.Answer >= len(q.Options) {
				return fmt.Errorf("course %d: %s question %d answer %d out of range", c.ID, t, i, q.Answer)
			}
		}
	}
	return nil
}

func checkItem(id int, sec string, i int, it *Item) error {
	switch it.Kind {
	case KindInfo, KindModule, KindActivity:
	case KindLesson:
		if it.MinDwellSeconds < 0 {
			return fmt.Errorf("course %d: %s[%d] negative dwell", id, sec, i)
		}
	case KindAssessment:
		if _, ok := ParseAssessmentType(string(it.Assessment)); !ok {
			return fmt.Errorf("course %d: %s[%d] assessment type %q", id, sec, i, it.Assessment)
		}
	default:
		return fmt.Errorf("course %d: %s[%d] unknown kind %q", id, sec, i, it.Kind)
	}
	return nil
}

func knownSection(name string) bool {
	for _, s := range progress.Sections {
		if s == name {
			return true
		}
	}
	return false
}

// Get returns a course by id.
func (c *Catalog) Get(id int) (*Course, error) {
	course, ok := c.courses[id]
	if !ok {
		return nil, fmt.Errorf("course %d: %w", id, ErrCourseNotFound)
	}
	return course, nil
}

// List returns all courses ordered by id.
func (c *Catalog) List() []*Course {
	out := make([]*Course, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.courses[id])
	}
	return out
}
