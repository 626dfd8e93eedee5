package orchestrator

import (
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// PriorResult is a bounded view of one execution record.
type PriorResult struct {
	TaskID int               `json:"task_id"`
	Title  string            `json:"title"`
	Status models.TaskStatus `json:"status"`
	Result string            `json:"result"`
}

// ExecutionContext is everything an executor needs for one task.
type ExecutionContext struct {
	Task  models.Task   `json:"task"`
	Prior []PriorResult `json:"prior"`
}

func newPriorResults(records []models.ExecutionRecord, limit int) []PriorResult {
	out := make([]PriorResult, 0, len(records))
	for _, r := range records {
		out = append(out, PriorResult{
			TaskID: r.TaskID,
			Title:  r.TaskTitle,
			Status: r.Status,
			Result: models.Truncate(r.ExecutionResult, limit),
		})
	}
	return out
}
