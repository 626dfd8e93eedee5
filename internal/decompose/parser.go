package decompose

import (
	"regexp"
	"strings"

	"github.com/ShayCichocki/stepwise/pkg/models"
)

// StepsMarker is the heading that introduces the numbered step list in a
// decomposition response.
const StepsMarker = "## 执行步骤"

// stepPattern matches `<n>. **<title>**: <description>` up to the end of the
// line. Full-width colons are accepted as well.
var stepPattern = regexp.MustCompile(`\d+\.\s*\*\*([^*]+)\*\*\s*[:：]\s*([^\n]+)`)

// Parser extracts ordered task lists from decomposition responses.
type Parser struct {
	// Marker is the heading that must precede the step list.
	Marker string
}

// DefaultParser uses StepsMarker.
var DefaultParser = Parser{Marker: StepsMarker}

// ExtractTasks parses response with DefaultParser.
func ExtractTasks(response string) []models.Task {
	return DefaultParser.Extract(response)
}

// HasMarker reports whether response contains the step-list heading.
func (p Parser) HasMarker(response string) bool {
	return strings.Contains(response, p.marker())
}

// Extract returns the tasks listed after the marker, in document order.
// It returns nil when the marker is absent, which means the decomposition
// is not ready yet rather than an error. Items whose title or description
// is empty after trimming are skipped; IDs are assigned 1..n over the
// items that were kept.
func (p Parser) Extract(response string) []models.Task {
	marker := p.marker()
	idx := strings.Index(response, marker)
	if idx < 0 {
		return nil
	}
	section := response[idx+len(marker):]

	var tasks []models.Task
	for _, m := range stepPattern.FindAllStringSubmatch(section, -1) {
		title := strings.TrimSpace(m[1])
		description := strings.TrimSpace(m[2])
		if title == "" || description == "" {
			continue
		}
		tasks = append(tasks, models.Task{
			ID:          len(tasks) + 1,
			Title:       title,
			Description: description,
			Status:      models.TaskStatusPending,
			Confirmed:   true,
		})
	}
	return tasks
}

func (p Parser) marker() string {
	if p.Marker == "" {
		return StepsMarker
	}
	return p.Marker
}
