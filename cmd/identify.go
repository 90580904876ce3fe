package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>...",
	Short: "Identify the people in one or more images",
	Long: `Detect every face in each image and search it against the identity store.

With several faces in one image the first recognized face (in detection order)
names the image.

Examples:
  face-recognizer identify group.jpg
  face-recognizer identify --threshold 0.5 a.jpg b.jpg
  face-recognizer identify --json photo.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
	identifyCmd.Flags().Bool("json", false, "Output as JSON")
}

// IdentifyOutput is the JSON form of one identification.
type IdentifyOutput struct {
	Image      string                 `json:"image"`
	Name       string                 `json:"name"`
	Confidence float64                `json:"confidence"`
	Status     string                 `json:"status"`
	Faces      []facematch.FaceResult `json:"faces,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if a.store.Dimension() == 0 && !jsonOutput {
		fmt.Println("Warning: the identity store is empty, nobody can be recognized")
	}

	results := make([]IdentifyOutput, 0, len(args))
	for _, path := range args {
		out := IdentifyOutput{Image: path}
		data, err := readImage(path)
		if err == nil {
			var d facematch.Decision
			if d, err = a.service.Identify(ctx, data); err == nil {
				out.Name = d.Name
				out.Confidence = d.Confidence
				out.Status = string(d.Status)
				out.Faces = d.Faces
			}
		}
		if err != nil {
			out.Status = "error"
			out.Error = err.Error()
		}
		results = append(results, out)

		if !jsonOutput {
			printIdentifyOutput(out)
		}
	}

	if jsonOutput {
		return outputJSON(results)
	}
	return nil
}

func printIdentifyOutput(out IdentifyOutput) {
	fmt.Printf("%s\n", out.Image)
	if out.Error != "" {
		fmt.Printf("  Error: %s\n", out.Error)
		return
	}
	fmt.Printf("  Name:       %s\n", out.Name)
	fmt.Printf("  Confidence: %.4f\n", out.Confidence)
	fmt.Printf("  Status:     %s\n", out.Status)
	if len(out.Faces) > 1 {
		fmt.Printf("  Faces (%d):\n", len(out.Faces))
		for _, f := range out.Faces {
			mark := " "
			if f.Recognized {
				mark = "*"
			}
			fmt.Printf("   %s #%d %-24s %.4f  [%.0f %.0f %.0f %.0f]\n",
				mark, f.Index, f.Name, f.Confidence, f.Region[0], f.Region[1], f.Region[2], f.Region[3])
		}
	}
}
