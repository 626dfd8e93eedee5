package models

// ExecutionRecord captures one applied execution attempt. Records are only
// ever appended to a session's log, never edited.
type ExecutionRecord struct {
	TaskID          int        `json:"task_id"`
	TaskTitle       string     `json:"task_title"`
	TaskDescription string     `json:"task_description"`
	ExecutionResult string     `json:"execution_result"`
	Status          TaskStatus `json:"status"`
}

// NewExecutionRecord builds the record for task with the full, untruncated output.
func NewExecutionRecord(task Task, output string, status TaskStatus) ExecutionRecord {
	return ExecutionRecord{
		TaskID:          task.ID,
		TaskTitle:       task.Title,
		TaskDescription: task.Description,
		ExecutionResult: output,
		Status:          status,
	}
}
