package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time. When they are
// left at their defaults the values recorded by the Go toolchain are used.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// versionInfo is the build metadata printed by the version command.
type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Modified  bool   `json:"modified,omitempty"`
}

// resolveVersion fills whatever -ldflags did not set from bi.
func resolveVersion(bi *debug.BuildInfo, ok bool) versionInfo {
	v := versionInfo{Version: Version, Commit: CommitSHA, BuildDate: BuildDate}
	if !ok || bi == nil {
		return v
	}
	v.GoVersion = bi.GoVersion
	if v.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		v.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if v.Commit == "unknown" {
				v.Commit = s.Value
			}
		case "vcs.time":
			if v.BuildDate == "unknown" {
				v.BuildDate = s.Value
			}
		case "vcs.modified":
			v.Modified = s.Value == "true"
		}
	}
	return v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := resolveVersion(debug.ReadBuildInfo())
		if mustGetBool(cmd, "json") {
			return outputJSON(v)
		}
		commit := v.Commit
		if v.Modified {
			commit += " (modified)"
		}
		fmt.Printf("face-recognizer %s\n", v.Version)
		fmt.Printf("  Commit: %s\n", commit)
		fmt.Printf("  Built:  %s\n", v.BuildDate)
		if v.GoVersion != "" {
			fmt.Printf("  Go:     %s\n", v.GoVersion)
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(versionCmd)
}
