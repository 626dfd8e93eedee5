package models

// Verdict is the classified outcome of a piece of free-form text.
type Verdict string

const (
	// VerdictCompleted means the text reports the task as done.
	VerdictCompleted Verdict = "completed"
	// VerdictFailed means the text reports the task as not completable.
	VerdictFailed Verdict = "failed"
	// VerdictIndeterminate means no decision could be read from the text.
	VerdictIndeterminate Verdict = "indeterminate"
)

// Valid returns true if the verdict is a known value.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictCompleted, VerdictFailed, VerdictIndeterminate:
		return true
	default:
		return false
	}
}

// Status maps a terminal verdict to the task status it produces.
// The second return value is false for VerdictIndeterminate.
func (v Verdict) Status() (TaskStatus, bool) {
	switch v {
	case VerdictCompleted:
		return TaskStatusCompleted, true
	case VerdictFailed:
		return TaskStatusFailed, true
	default:
		return "", false
	}
}
