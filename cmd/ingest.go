package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Enroll every person found in a directory tree",
	Long: `Enroll people from a directory with one subdirectory per person.

Each subdirectory name is used as the identity label and every image inside it
(jpg, jpeg, png, bmp, webp, gif) is enrolled for that person. Images without a
detectable face are skipped and counted.

  people/
    Alice/ a1.jpg a2.jpg
    Bob/   b1.png

Examples:
  face-recognizer ingest ./people
  face-recognizer ingest --json ./people`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true, ".gif": true,
}

// IngestResult summarizes a directory ingest.
type IngestResult struct {
	Success         bool           `json:"success"`
	People          int            `json:"people"`
	ImagesScanned   int            `json:"images_scanned"`
	EmbeddingsAdded int            `json:"embeddings_added"`
	Failed          int            `json:"failed"`
	PerPerson       map[string]int `json:"per_person"`
	Errors          []string       `json:"errors,omitempty"`
	DurationMs      int64          `json:"duration_ms"`
	DurationHuman   string         `json:"duration_human,omitempty"`
}

// listPeople returns the person directories under root and their images,
// both sorted by name.
func listPeople(root string) (map[string][]string, []string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", root, err)
	}

	people := make(map[string][]string)
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, e.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", dir, err)
		}
		var images []string
		for _, f := range files {
			if f.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			images = append(images, filepath.Join(dir, f.Name()))
		}
		if len(images) == 0 {
			continue
		}
		sort.Strings(images)
		people[e.Name()] = images
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return people, names, nil
}

// chunk splits paths into batches of at most size elements.
func chunk(paths []string, size int) [][]string {
	var out [][]string
	for size < len(paths) {
		out = append(out, paths[:size])
		paths = paths[size:]
	}
	if len(paths) > 0 {
		out = append(out, paths)
	}
	return out
}

func runIngest(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	root := args[0]
	ctx := context.Background()
	startTime := time.Now()

	people, names, err := listPeople(root)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no person directories with images found in %s", root)
	}

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	total := 0
	for _, n := range names {
		total += len(people[n])
	}

	if !jsonOutput {
		fmt.Printf("Found %d people with %d images\n", len(names), total)
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Ingesting faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	result := IngestResult{PerPerson: make(map[string]int, len(names))}
	for _, name := range names {
		for _, batch := range chunk(people[name], constants.MaxBatchImages) {
			images := make([][]byte, 0, len(batch))
			for _, p := range batch {
				data, err := readImage(p)
				if err != nil {
					result.Errors = append(result.Errors, err.Error())
					result.Failed++
					continue
				}
				images = append(images, data)
			}
			result.ImagesScanned += len(batch)

			if len(images) > 0 {
				res, err := a.service.AddPersonMultiple(ctx, name, images)
				if err != nil {
					a.logger.Warn("ingest batch failed", zap.String("name", name), zap.Error(err))
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
					result.Failed += len(images)
				} else {
					result.EmbeddingsAdded += res.Added
					result.PerPerson[name] += res.Added
					result.Failed += res.Failed
				}
			}
			if bar != nil {
				_ = bar.Add(len(batch))
			}
		}
		if result.PerPerson[name] > 0 {
			result.People++
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	duration := time.Since(startTime)
	result.Success = result.EmbeddingsAdded > 0
	result.DurationMs = duration.Milliseconds()
	result.DurationHuman = formatDuration(duration)

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println()
	fmt.Printf("Ingest complete in %s\n", result.DurationHuman)
	fmt.Printf("  People enrolled:  %d\n", result.People)
	fmt.Printf("  Images scanned:   %d\n", result.ImagesScanned)
	fmt.Printf("  Embeddings added: %d\n", result.EmbeddingsAdded)
	fmt.Printf("  Failed:           %d\n", result.Failed)
	for _, e := range result.Errors {
		fmt.Printf("  Error: %s\n", e)
	}
	return nil
}
