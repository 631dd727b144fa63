package course

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kalinga/kalinga/internal/platform/progress"
)

// Slugify lowercases s and collapses every run of characters outside
// [a-z0-9] into one "-", trimming dashes at either end.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Route is the client path an item opens.
func Route(courseID int, section string, it Item) string {
	base := fmt.Sprintf("/modules/%d", courseID)
	if section != progress.TrainingMaterials {
		return base + "/info/" + it.Slug
	}
	switch it.Kind {
	case KindAssessment:
		return base + "/assessment/" + it.Assessment.Slug()
	case KindActivity:
		return base + "/activitypage"
	}
	return base + "/activity/" + it.Slug
}

// AssessmentRoute is the path of an assessment page.
func AssessmentRoute(courseID int, t AssessmentType) string {
	return fmt.Sprintf("/modules/%d/assessment/%s", courseID, t.Slug())
}
