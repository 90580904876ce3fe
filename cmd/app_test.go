package cmd

import (
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCommand returns a command carrying the global flags parsed from args.
func testCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	for _, key := range []string{"STORE_BACKEND", "STORE_PATH", "MATCH_METRIC", "MATCH_THRESHOLD"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	cmd := &cobra.Command{Use: "test"}
	addGlobalFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestLoadConfig_ThresholdFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want float64
	}{
		{"unset uses cosine default", nil, 0.35},
		{"unset uses euclidean default", []string{"--metric", "euclidean"}, 1.1},
		{"explicit zero", []string{"--metric", "euclidean", "--threshold", "0"}, 0},
		{"negative cosine", []string{"--threshold=-0.2"}, -0.2},
		{"explicit value", []string{"--threshold", "0.5"}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(testCommand(t, tt.args...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Threshold())
		})
	}
}

func TestLoadConfig_ThresholdFlagOutOfRange(t *testing.T) {
	_, err := loadConfig(testCommand(t, "--metric", "euclidean", "--threshold=-1"))
	assert.ErrorContains(t, err, "MATCH_THRESHOLD")

	_, err = loadConfig(testCommand(t, "--threshold", "1.5"))
	assert.ErrorContains(t, err, "MATCH_THRESHOLD")
}

func TestLoadConfig_StoreFlag(t *testing.T) {
	cfg, err := loadConfig(testCommand(t, "--store", "/tmp/faces.parquet"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/faces.parquet", cfg.Store.Path)
}
