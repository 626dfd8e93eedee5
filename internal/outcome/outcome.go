// Package outcome turns free-form text into task verdicts.
//
// Two inputs are recognized: execution output produced by whatever ran a
// task, and a human reply to a "is this done?" inquiry. Both are matched
// against small fixed phrase sets; anything unrecognized is indeterminate
// and leaves the task pending.
package outcome

import (
	"strings"

	"github.com/ShayCichocki/stepwise/pkg/models"
)

// CompletionMarkers signal that an execution finished successfully.
var CompletionMarkers = []string{
	"任务完成",
	"任务已完成",
	"✅",
	"task complete",
	"task completed",
}

// FailureMarkers signal that an execution could not be finished.
var FailureMarkers = []string{
	"无法完成",
	"任务失败",
	"执行失败",
	"❌",
	"cannot complete",
	"can't complete",
	"unable to complete",
	"failed",
}

// Classifier matches execution output against marker sets.
type Classifier struct {
	Completion []string
	Failure    []string
}

// Default uses CompletionMarkers and FailureMarkers.
var Default = Classifier{Completion: CompletionMarkers, Failure: FailureMarkers}

// Classify interprets execution output with the default markers.
func Classify(text string) models.Verdict {
	return Default.Classify(text)
}

// Classify returns failed if any failure marker is present, otherwise
// completed if any completion marker is present, otherwise indeterminate.
func (c Classifier) Classify(text string) models.Verdict {
	lower := strings.ToLower(text)
	if containsAny(lower, c.Failure) {
		return models.VerdictFailed
	}
	if containsAny(lower, c.Completion) {
		return models.VerdictCompleted
	}
	return models.VerdictIndeterminate
}

// Markers returns the marker that decided the verdict, or "" when none did.
func (c Classifier) Markers(text string) (models.Verdict, string) {
	lower := strings.ToLower(text)
	if m := firstMatch(lower, c.Failure); m != "" {
		return models.VerdictFailed, m
	}
	if m := firstMatch(lower, c.Completion); m != "" {
		return models.VerdictCompleted, m
	}
	return models.VerdictIndeterminate, ""
}

func containsAny(lower string, markers []string) bool {
	return firstMatch(lower, markers) != ""
}

func firstMatch(lower string, markers []string) string {
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return m
		}
	}
	return ""
}
