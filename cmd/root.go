package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "face-recognizer",
	Short: "Enroll and identify faces against a local identity store",
	Long: `Face Recognizer keeps a store of labeled face embeddings and answers
"who is in this image?" by comparing faces against every stored embedding.

Embeddings are computed by an external embedding server (EXTRACTOR_URL).
The store is a Parquet file by default (STORE_PATH) or a PostgreSQL database
(STORE_BACKEND=postgres, DATABASE_URL).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	addGlobalFlags(rootCmd.PersistentFlags())
}

// addGlobalFlags registers the flags loadConfig reads.
func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String("store", "", "Snapshot file path (overrides STORE_PATH)")
	fs.String("metric", "", "Similarity metric: cosine or euclidean (overrides MATCH_METRIC)")
	fs.Float64("threshold", 0, "Acceptance threshold, 0 included (overrides MATCH_THRESHOLD)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
