package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/stepwise/pkg/models"
)

// Snapshot is the serialized form of State.
type Snapshot struct {
	ConfirmedTaskList         []models.Task            `json:"confirmed_task_list"`
	ExecuteResult             []models.ExecutionRecord `json:"execute_result"`
	CurrentExecutingTaskID    *int                     `json:"current_executing_task_id"`
	TaskDecompositionComplete bool                     `json:"task_decomposition_complete"`
}

// Snapshot returns a deep copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ConfirmedTaskList:         cloneTasks(s.tasks),
		ExecuteResult:             append([]models.ExecutionRecord{}, s.records...),
		TaskDecompositionComplete: s.decompositionComplete,
	}
	if snap.ConfirmedTaskList == nil {
		snap.ConfirmedTaskList = []models.Task{}
	}
	if s.current != nil {
		id := *s.current
		snap.CurrentExecutingTaskID = &id
	}
	return snap
}

// Restore builds a State from a snapshot after validating it.
func Restore(snap Snapshot) (*State, error) {
	if err := validate(snap.ConfirmedTaskList, snap.ExecuteResult, snap.CurrentExecutingTaskID, snap.TaskDecompositionComplete); err != nil {
		return nil, err
	}
	st := &State{
		tasks:                 cloneTasks(snap.ConfirmedTaskList),
		records:               append([]models.ExecutionRecord(nil), snap.ExecuteResult...),
		decompositionComplete: snap.TaskDecompositionComplete,
	}
	if snap.CurrentExecutingTaskID != nil {
		id := *snap.CurrentExecutingTaskID
		st.current = &id
	}
	return st, nil
}

// MarshalJSON encodes the state as a Snapshot.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// Decode parses and validates a JSON snapshot. Unknown keys are rejected.
func Decode(data []byte) (*State, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return Restore(snap)
}
