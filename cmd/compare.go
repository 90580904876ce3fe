package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare <image-a> <image-b>",
	Short: "Compare the primary faces of two images",
	Long: `Extract the primary face of both images and report their cosine similarity,
euclidean distance and a same-person verdict. The store is not consulted.

Examples:
  face-recognizer compare a.jpg b.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().Bool("json", false, "Output as JSON")
}

// CompareOutput is the JSON form of a comparison.
type CompareOutput struct {
	CosineSimilarity  float64 `json:"cosine_similarity"`
	EuclideanDistance float64 `json:"euclidean_distance"`
	Verdict           string  `json:"verdict"`
}

func runCompare(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()

	imageA, err := readImage(args[0])
	if err != nil {
		return err
	}
	imageB, err := readImage(args[1])
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	c, err := a.service.Compare(ctx, imageA, imageB)
	if err != nil {
		return err
	}

	out := CompareOutput{
		CosineSimilarity:  c.Cosine,
		EuclideanDistance: c.Euclidean,
		Verdict:           string(c.Verdict),
	}
	if jsonOutput {
		return outputJSON(out)
	}
	fmt.Printf("Cosine similarity:  %.4f\n", out.CosineSimilarity)
	fmt.Printf("Euclidean distance: %.4f\n", out.EuclideanDistance)
	fmt.Printf("Verdict:            %s\n", out.Verdict)
	return nil
}
