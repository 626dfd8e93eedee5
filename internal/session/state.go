// Package session holds the per-conversation task lifecycle state.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ShayCichocki/stepwise/pkg/models"
)

// ErrCorruptState is returned when session state is internally inconsistent.
var ErrCorruptState = errors.New("corrupt session state")

// ErrTaskNotFound is returned when an operation names an unknown task id.
var ErrTaskNotFound = errors.New("task not found")

// ErrTaskNotPending is returned when settling a task that already has a verdict.
var ErrTaskNotPending = errors.New("task is not pending")

// State is the typed session record: the task list, the append-only
// execution log, the current-task slot, and the decomposition flag.
// All methods are safe for concurrent use.
type State struct {
	mu                    sync.Mutex
	tasks                 []models.Task
	records               []models.ExecutionRecord
	current               *int
	decompositionComplete bool
}

// New returns an empty state.
func New() *State {
	return &State{}
}

// Tasks returns a copy of the task list.
func (s *State) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTasks(s.tasks)
}

// Len returns the number of tasks.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Task returns a copy of the task with the given id.
func (s *State) Task(id int) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.find(id); t != nil {
		return t.Clone(), true
	}
	return models.Task{}, false
}

// Records returns a copy of the execution log.
func (s *State) Records() []models.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ExecutionRecord(nil), s.records...)
}

// RecentRecords returns at most n of the latest records, oldest first.
func (s *State) RecentRecords(n int) []models.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if n >= 0 && len(s.records) > n {
		start = len(s.records) - n
	}
	return append([]models.ExecutionRecord(nil), s.records[start:]...)
}

// Current returns the id in the current-task slot.
func (s *State) Current() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0, false
	}
	return *s.current, true
}

// CurrentTask returns a copy of the task holding the current slot. ok is
// false when the slot is empty; a slot naming an unknown task is reported
// as ErrCorruptState.
func (s *State) CurrentTask() (t models.Task, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.Task{}, false, nil
	}
	found := s.find(*s.current)
	if found == nil {
		return models.Task{}, false, fmt.Errorf("%w: current slot points at missing task %d", ErrCorruptState, *s.current)
	}
	return found.Clone(), true, nil
}

// DecompositionComplete reports whether a task list has been accepted.
func (s *State) DecompositionComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decompositionComplete
}

// ReplaceTasks installs a new task list and marks decomposition complete.
// The execution log and current slot are reset because they refer to the
// previous list.
func (s *State) ReplaceTasks(tasks []models.Task) error {
	if err := validateTasks(tasks); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = cloneTasks(tasks)
	s.records = nil
	s.current = nil
	s.decompositionComplete = true
	return nil
}

// ClaimCurrent sets the current slot to id if it is empty. It returns false
// when another task already holds the slot.
func (s *State) ClaimCurrent(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return false, nil
	}
	t := s.find(id)
	if t == nil {
		return false, fmt.Errorf("claim task %d: %w", id, ErrTaskNotFound)
	}
	if !t.IsPending() {
		return false, fmt.Errorf("claim task %d (%s): %w", id, t.Status, ErrTaskNotPending)
	}
	claimed := id
	s.current = &claimed
	return true, nil
}

// ReleaseCurrent clears the slot if it holds id.
func (s *State) ReleaseCurrent(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || *s.current != id {
		return false
	}
	s.current = nil
	return true
}

// Settle applies a terminal status to a pending task: the result is stored
// truncated to limit characters, the full output is appended to the log,
// and the slot is released if the task held it.
func (s *State) Settle(id int, status models.TaskStatus, output string, limit int) (models.ExecutionRecord, error) {
	if !status.Terminal() {
		return models.ExecutionRecord{}, fmt.Errorf("settle task %d with non-terminal status %q", id, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.find(id)
	if t == nil {
		return models.ExecutionRecord{}, fmt.Errorf("settle task %d: %w", id, ErrTaskNotFound)
	}
	if !t.IsPending() {
		return models.ExecutionRecord{}, fmt.Errorf("settle task %d (%s): %w", id, t.Status, ErrTaskNotPending)
	}

	result := models.Truncate(output, limit)
	t.Status = status
	t.ExecutionResult = &result

	rec := models.NewExecutionRecord(*t, output, status)
	s.records = append(s.records, rec)

	if s.current != nil && *s.current == id {
		s.current = nil
	}
	return rec, nil
}

// Validate checks the structural invariants and returns an error wrapping
// ErrCorruptState on the first violation.
func (s *State) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return validate(s.tasks, s.records, s.current, s.decompositionComplete)
}

func (s *State) find(id int) *models.Task {
	// IDs match positions, but scan so a corrupt list is never indexed blindly.
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return &s.tasks[i]
		}
	}
	return nil
}

func validateTasks(tasks []models.Task) error {
	for i, t := range tasks {
		if t.ID != i+1 {
			return fmt.Errorf("%w: task at position %d has id %d", ErrCorruptState, i+1, t.ID)
		}
		if t.Title == "" || t.Description == "" {
			return fmt.Errorf("%w: task %d has empty title or description", ErrCorruptState, t.ID)
		}
		if !t.Status.Valid() {
			return fmt.Errorf("%w: task %d has unknown status %q", ErrCorruptState, t.ID, t.Status)
		}
		if !t.Confirmed {
			return fmt.Errorf("%w: task %d is not confirmed", ErrCorruptState, t.ID)
		}
	}
	return nil
}

func validate(tasks []models.Task, records []models.ExecutionRecord, current *int, decomposed bool) error {
	if err := validateTasks(tasks); err != nil {
		return err
	}
	if len(tasks) > 0 && !decomposed {
		return fmt.Errorf("%w: %d tasks present but decomposition not complete", ErrCorruptState, len(tasks))
	}
	for i, r := range records {
		if r.TaskID < 1 || r.TaskID > len(tasks) {
			return fmt.Errorf("%w: record %d refers to unknown task %d", ErrCorruptState, i, r.TaskID)
		}
		if !r.Status.Terminal() {
			return fmt.Errorf("%w: record %d has non-terminal status %q", ErrCorruptState, i, r.Status)
		}
	}
	if current != nil {
		id := *current
		if id < 1 || id > len(tasks) {
			return fmt.Errorf("%w: current slot points at unknown task %d", ErrCorruptState, id)
		}
		if !tasks[id-1].IsPending() {
			return fmt.Errorf("%w: current slot points at %s task %d", ErrCorruptState, tasks[id-1].Status, id)
		}
	}
	return nil
}

func cloneTasks(tasks []models.Task) []models.Task {
	if tasks == nil {
		return nil
	}
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
