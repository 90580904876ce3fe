package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/face-recognizer/internal/identity"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show identity store statistics",
	Long: `Show the number of people and embeddings in the identity store, with the
per-person embedding counts in enrollment order.

Examples:
  face-recognizer stats
  face-recognizer stats --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	st := a.service.GetStatistics()
	if jsonOutput {
		return outputJSON(st)
	}
	printStats(a, st)
	return nil
}

func printStats(a *app, st identity.Statistics) {
	fmt.Printf("Store:      %s\n", a.store.Location())
	fmt.Printf("Dimension:  %d\n", a.store.Dimension())
	fmt.Printf("Metric:     %s (threshold %.4f)\n", a.service.Metric(), a.service.Threshold())
	fmt.Printf("People:     %d\n", st.IdentityCount)
	fmt.Printf("Embeddings: %d\n", st.TotalEmbeddings)
	if len(st.PerIdentity) == 0 {
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tEMBEDDINGS")
	for _, c := range st.PerIdentity {
		fmt.Fprintf(w, "%s\t%d\n", c.Label, c.Count)
	}
	w.Flush()
}
