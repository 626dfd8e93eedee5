package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/stepwise/internal/signals"
)

var signalCmd = &cobra.Command{
	Use:   "signal <stop|pause|resume|clear>",
	Short: "Control a running 'stepwise run' from another terminal",
	Long: `Write or remove signal files watched by a running 'stepwise run'.

  stop    end the run after the current step (the session stays resumable)
  pause   hold dispatch of the next step
  resume  remove the pause file
  clear   remove every signal file`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"stop", "pause", "resume", "clear"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()
		dir := a.cfg.Signals.Dir

		switch args[0] {
		case "stop":
			err = signals.SendStop(dir)
		case "pause":
			err = signals.SendPause(dir)
		case "resume":
			err = signals.Resume(dir)
		case "clear":
			err = signals.ClearSignals(dir)
		default:
			return fmt.Errorf("unknown signal %q", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Printf("Signal %q written to %s\n", args[0], dir)
		return nil
	},
}
