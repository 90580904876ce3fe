package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-recognizer/internal/extractor"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <name> <image>...",
	Short: "Enroll a person from one or more images",
	Long: `Extract the primary face of every image and store it under <name>.

A single image fails when no face is found. With several images the faces are
extracted in parallel and every image that yields a face is kept; the others
are reported as failures.

Examples:
  face-recognizer add "Alice" alice.jpg
  face-recognizer add "Bob" bob1.jpg bob2.jpg bob3.png
  face-recognizer add --json "Carol" carol/*.jpg`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().Bool("json", false, "Output as JSON")
}

// AddOutput is the JSON form of an enrollment.
type AddOutput struct {
	Success          bool     `json:"success"`
	Name             string   `json:"name"`
	BatchID          string   `json:"batch_id,omitempty"`
	Added            int      `json:"added"`
	Failed           int      `json:"failed"`
	FailedReasons    []string `json:"failed_reasons,omitempty"`
	PersonEmbeddings int      `json:"person_embeddings"`
	TotalPeople      int      `json:"total_people"`
	TotalEmbeddings  int      `json:"total_embeddings"`
}

func runAdd(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	name, paths := args[0], args[1:]
	ctx := context.Background()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	images := make([][]byte, len(paths))
	for i, p := range paths {
		if images[i], err = readImage(p); err != nil {
			return err
		}
	}

	var out AddOutput
	if len(images) == 1 {
		out, err = addSingle(ctx, a.service, name, images[0])
	} else {
		out, err = addMultiple(ctx, a.service, name, images, paths)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(out)
	}

	if out.BatchID != "" {
		fmt.Printf("Batch %s\n", out.BatchID)
	}
	fmt.Printf("Added %d embedding(s) for %s\n", out.Added, out.Name)
	for _, reason := range out.FailedReasons {
		fmt.Printf("  Skipped: %s\n", reason)
	}
	fmt.Printf("%s now has %d embedding(s); store holds %d people, %d embeddings\n",
		out.Name, out.PersonEmbeddings, out.TotalPeople, out.TotalEmbeddings)
	if !out.Success {
		return errors.New("no faces were detected in any image")
	}
	return nil
}

func addSingle(ctx context.Context, svc *recognition.Service, name string, image []byte) (AddOutput, error) {
	counts, err := svc.EnrollImage(ctx, name, image)
	if errors.Is(err, extractor.ErrNoFaceDetected) {
		return AddOutput{}, fmt.Errorf("no face detected in the image for %s", name)
	}
	if err != nil {
		return AddOutput{}, err
	}
	return AddOutput{
		Success:          true,
		Name:             name,
		Added:            1,
		PersonEmbeddings: counts.PersonEmbeddings,
		TotalPeople:      counts.TotalPeople,
		TotalEmbeddings:  counts.TotalEmbeddings,
	}, nil
}

func addMultiple(ctx context.Context, svc *recognition.Service, name string, images [][]byte, paths []string) (AddOutput, error) {
	res, err := svc.AddPersonMultiple(ctx, name, images)
	if err != nil {
		return AddOutput{}, err
	}
	out := AddOutput{
		Success:          res.Added > 0,
		Name:             name,
		BatchID:          res.BatchID,
		Added:            res.Added,
		Failed:           res.Failed,
		PersonEmbeddings: res.Counts.PersonEmbeddings,
		TotalPeople:      res.Counts.TotalPeople,
		TotalEmbeddings:  res.Counts.TotalEmbeddings,
	}
	for _, f := range res.Failures {
		label := fmt.Sprintf("Image %d", f.Index)
		if f.Index >= 1 && f.Index <= len(paths) {
			label = paths[f.Index-1]
		}
		out.FailedReasons = append(out.FailedReasons, fmt.Sprintf("%s: %s", label, f.Reason))
	}
	return out, nil
}
