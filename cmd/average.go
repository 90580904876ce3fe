package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var averageCmd = &cobra.Command{
	Use:   "average <name>",
	Short: "Print the mean embedding of a person",
	Long: `Print the normalized mean of every embedding stored for a person.

Examples:
  face-recognizer average "Alice"
  face-recognizer average --json "Alice" > alice.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAverage,
}

func init() {
	rootCmd.AddCommand(averageCmd)
	averageCmd.Flags().Bool("json", false, "Output as JSON")
}

// AverageOutput is the JSON form of a mean embedding.
type AverageOutput struct {
	Name      string    `json:"name"`
	Count     int       `json:"count"`
	Dimension int       `json:"dimension"`
	Embedding []float64 `json:"embedding"`
}

func runAverage(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	name := args[0]
	ctx := context.Background()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	avg, err := a.service.GetAverageEmbedding(name)
	if err != nil {
		return err
	}

	out := AverageOutput{Name: name, Count: a.store.Count(name), Dimension: avg.Dim(), Embedding: avg}
	if jsonOutput {
		return outputJSON(out)
	}

	fmt.Printf("%s: mean of %d embedding(s), dimension %d\n", out.Name, out.Count, out.Dimension)
	parts := make([]string, len(avg))
	for i, v := range avg {
		parts[i] = fmt.Sprintf("%.6f", v)
	}
	fmt.Printf("[%s]\n", strings.Join(parts, ", "))
	return nil
}
