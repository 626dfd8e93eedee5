package models

import (
	"testing"
)

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"completed is valid", TaskStatusCompleted, true},
		{"failed is valid", TaskStatusFailed, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"unknown status is invalid", TaskStatus("in_progress"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	if TaskStatusPending.Terminal() {
		t.Error("pending should not be terminal")
	}
	if !TaskStatusCompleted.Terminal() || !TaskStatusFailed.Terminal() {
		t.Error("completed and failed should be terminal")
	}
}

func TestTask_Clone(t *testing.T) {
	result := "done"
	orig := Task{ID: 1, Title: "a", Description: "b", Status: TaskStatusCompleted, ExecutionResult: &result}

	clone := orig.Clone()
	*clone.ExecutionResult = "changed"

	if orig.Result() != "done" {
		t.Errorf("Clone shares ExecutionResult with original: got %q", orig.Result())
	}
}

func TestTask_ResultAbsent(t *testing.T) {
	task := Task{ID: 1}
	if task.Result() != "" {
		t.Errorf("Result() = %q, want empty", task.Result())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"shorter than limit", "abc", 5, "abc"},
		{"exact limit", "abcde", 5, "abcde"},
		{"ascii cut", "abcdef", 3, "abc"},
		{"cjk counted as characters", "任务已完成了", 4, "任务已完"},
		{"zero limit keeps text", "abc", 0, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.limit); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}
}

func TestVerdict_Status(t *testing.T) {
	tests := []struct {
		verdict Verdict
		want    TaskStatus
		ok      bool
	}{
		{VerdictCompleted, TaskStatusCompleted, true},
		{VerdictFailed, TaskStatusFailed, true},
		{VerdictIndeterminate, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.verdict), func(t *testing.T) {
			got, ok := tt.verdict.Status()
			if got != tt.want || ok != tt.ok {
				t.Errorf("%s.Status() = (%q, %v), want (%q, %v)", tt.verdict, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestComplexity_Valid(t *testing.T) {
	if !ComplexitySimple.Valid() || !ComplexityComplex.Valid() {
		t.Error("known complexities should be valid")
	}
	if Complexity("medium").Valid() {
		t.Error("unknown complexity should be invalid")
	}
}
