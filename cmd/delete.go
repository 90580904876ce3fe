package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-recognizer/internal/identity"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a person and all their embeddings",
	Long: `Remove a person from the identity store. The label must match exactly.

Examples:
  face-recognizer delete "Alice"`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().Bool("json", false, "Output as JSON")
}

// DeleteOutput is the JSON form of a deletion.
type DeleteOutput struct {
	Success           bool   `json:"success"`
	Name              string `json:"name"`
	EmbeddingsRemoved int    `json:"embeddings_removed"`
}

func runDelete(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	name := args[0]
	ctx := context.Background()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	removed, err := a.service.DeletePerson(ctx, name)
	if errors.Is(err, identity.ErrNotFound) {
		if similar := a.store.SimilarLabels(name); len(similar) > 0 {
			return fmt.Errorf("person '%s' not found in database (did you mean %q?)", name, similar[0])
		}
		return fmt.Errorf("person '%s' not found in database", name)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(DeleteOutput{Success: true, Name: name, EmbeddingsRemoved: removed})
	}
	fmt.Printf("Deleted %s (%d embedding(s) removed)\n", name, removed)
	return nil
}
