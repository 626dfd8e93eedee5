package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var classifyJSON bool

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Show how a request would be routed",
	Long: `Classify a request as simple (answered directly) or complex (decomposed
into steps) and explain which signals decided it. No model is called.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		classifier, err := a.classifier()
		if err != nil {
			return err
		}
		c := classifier.Explain(strings.Join(args, " "))

		if classifyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"complexity":    c.Complexity,
				"simple_score":  c.SimpleScore,
				"complex_score": c.ComplexScore,
				"long_text":     c.LongText,
				"multi_step":    c.MultiStep,
				"reason":        c.Reason,
			})
		}

		fmt.Printf("%s\n", c.Complexity)
		fmt.Printf("  simple keywords:  %d\n", c.SimpleScore)
		fmt.Printf("  complex keywords: %d\n", c.ComplexScore)
		fmt.Printf("  long text:        %t\n", c.LongText)
		fmt.Printf("  multi-step:       %t\n", c.MultiStep)
		fmt.Printf("  reason:           %s\n", c.Reason)
		return nil
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print the classification as JSON")
}
