// Package orchestrator drives a decomposed task list to completion.
//
// The orchestrator is re-entered once per external turn. Next selects the
// first pending task, claims the current-task slot for it, and returns the
// instruction for whichever collaborator executes it. Report classifies the
// collaborator's output and applies the verdict: completed and failed are
// terminal for the task, indeterminate leaves it current so the next turn
// dispatches it again. A failed task never blocks the tasks after it.
//
// Two drivers sit on top of the state machine:
//   - Runner executes tasks automatically through an Executor.
//   - Monitor asks a human, one task at a time, whether the task is done.
//
// Coordinator ties classification, decomposition, and the Runner together
// for a single goal.
package orchestrator
