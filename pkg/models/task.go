// Package models holds the data types shared across stepwise packages.
package models

import "unicode/utf8"

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not reached a verdict yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task was reported as not completable.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// MaxResultLength is the default bound, in characters, on Task.ExecutionResult.
const MaxResultLength = 500

// Task is one step of a decomposed goal.
type Task struct {
	// ID is the 1-based position of the task in its decomposition.
	ID int `json:"id"`
	// Title is the short label of the step.
	Title string `json:"title"`
	// Description elaborates what the step has to do.
	Description string `json:"description"`
	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`
	// Confirmed is set for every task produced by the decomposition parser.
	Confirmed bool `json:"confirmed"`
	// ExecutionResult is the truncated text of the latest applied attempt.
	// Nil until the first attempt reaches a verdict.
	ExecutionResult *string `json:"execution_result,omitempty"`
}

// IsPending reports whether the task is still waiting for a verdict.
func (t *Task) IsPending() bool {
	return t.Status == TaskStatusPending
}

// Result returns the stored execution result, or "" when absent.
func (t *Task) Result() string {
	if t.ExecutionResult == nil {
		return ""
	}
	return *t.ExecutionResult
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	if t.ExecutionResult != nil {
		r := *t.ExecutionResult
		t.ExecutionResult = &r
	}
	return t
}

// Truncate shortens s to at most limit characters (runes, not bytes).
// A non-positive limit returns s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
