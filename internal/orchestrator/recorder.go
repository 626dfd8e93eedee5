package orchestrator

import (
	"github.com/ShayCichocki/stepwise/internal/session"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

// Recorder persists what the orchestrator applies. Failures are logged and
// never stop the loop.
type Recorder interface {
	RecordExecution(sessionID string, rec models.ExecutionRecord) error
	SaveSnapshot(sessionID string, snap session.Snapshot) error
}
