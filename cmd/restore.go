package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-recognizer/internal/backup"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [key]",
	Short: "Replace the identity store with a snapshot from object storage",
	Long: `Download a snapshot and replace the whole identity store with it.

Without a key the latest snapshot is restored. Use "backup list" to see the
available keys. The current contents are overwritten unless --dry-run is set.

Examples:
  face-recognizer restore
  face-recognizer restore snapshots/identities-20260102T030405.000Z.parquet
  face-recognizer restore --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().Bool("dry-run", false, "Only show what would be restored")
	restoreCmd.Flags().Bool("json", false, "Output as JSON")
}

// RestoreOutput is the JSON form of a restore.
type RestoreOutput struct {
	Key             string `json:"key"`
	DryRun          bool   `json:"dry_run"`
	Dimension       int    `json:"dimension"`
	TotalPeople     int    `json:"total_people"`
	TotalEmbeddings int    `json:"total_embeddings"`
}

func runRestore(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()
	if a.backup == nil {
		return errBackupDisabled
	}

	key := a.backup.LatestKey()
	if len(args) == 1 {
		key = args[0]
	}

	snap, err := a.backup.Fetch(ctx, key)
	if errors.Is(err, backup.ErrNotFound) {
		return fmt.Errorf("snapshot %s does not exist", key)
	}
	if err != nil {
		return err
	}

	out := RestoreOutput{Key: key, DryRun: dryRun, Dimension: snap.Dimension, TotalPeople: len(snap.Identities)}
	for _, rec := range snap.Identities {
		out.TotalEmbeddings += len(rec.Embeddings)
	}

	if !dryRun {
		if err := a.service.RestoreSnapshot(ctx, snap); err != nil {
			return err
		}
	}

	if jsonOutput {
		return outputJSON(out)
	}
	verb := "Restored"
	if dryRun {
		verb = "Would restore"
	}
	fmt.Printf("%s %s: %d people, %d embeddings (dimension %d)\n",
		verb, out.Key, out.TotalPeople, out.TotalEmbeddings, out.Dimension)
	return nil
}
