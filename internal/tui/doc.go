// Package tui provides the terminal interface for stepwise's confirmation mode.
//
// The confirmation model asks the human about one pending task at a time,
// reads a free-form reply ("done", "not done", "failed", ...) and applies it
// through orchestrator.Monitor until every task has a verdict.
//
// Usage:
//
//	model := tui.NewConfirmModel(orchestrator.NewMonitor(orch))
//	program := tea.NewProgram(model)
//	final, err := program.Run()
//
// The model quits on its own once the completion report is shown. Users can
// leave early with Ctrl+C or Esc; the session keeps its state.
package tui
