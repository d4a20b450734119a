package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/query"
)

// Version is the release string. Builds overwrite it via:
//
//	go build -ldflags "-X github.com/derickschaefer/bankview/cmd.Version=v0.3.1"
var Version = "v0.3.0"

// BuildTime is optionally injected at build time alongside Version.
var BuildTime = ""

type versionInfo struct {
	Version   string   `json:"version"`
	Revision  string   `json:"revision,omitempty"`
	GoVersion string   `json:"go_version"`
	GOOS      string   `json:"goos"`
	GOARCH    string   `json:"goarch"`
	BuildTime string   `json:"build_time,omitempty"`
	Metrics   []string `json:"metrics"`
}

// vcsRevision returns the short commit the binary was built from, if the
// toolchain recorded one.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return s.Value[:12]
		}
	}
	return ""
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bankview version and build information",
	Long: `Print the bankview version string, build metadata and the metrics the
income query selects.

Examples:
  bankview version
  bankview version --format json | jq .version`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo{
			Version:   Version,
			Revision:  vcsRevision(),
			GoVersion: runtime.Version(),
			GOOS:      runtime.GOOS,
			GOARCH:    runtime.GOARCH,
			BuildTime: BuildTime,
			Metrics:   query.Metrics,
		}
		out := cmd.OutOrStdout()

		switch globalFlags.Format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)

		case "jsonl":
			b, err := json.Marshal(info)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n", b)
			return nil

		default:
			fmt.Fprintf(out, "bankview %s\n", info.Version)
			if info.Revision != "" {
				fmt.Fprintf(out, "commit   %s\n", info.Revision)
			}
			fmt.Fprintf(out, "go       %s\n", info.GoVersion)
			fmt.Fprintf(out, "os       %s/%s\n", info.GOOS, info.GOARCH)
			if info.BuildTime != "" {
				fmt.Fprintf(out, "built    %s\n", info.BuildTime)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
