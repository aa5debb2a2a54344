package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"prowfetch/cmd/cli/runcmd"
)

var RootCmd = &cobra.Command{
	Use:   "pfctl",
	Short: "ProwFetch - failed CI job crawler and artifact fetcher",
	Long: `ProwFetch crawls a Prow job-history feed, isolates the failed builds, resolves
each build's artifact storage location and optionally bulk-downloads the
artifact trees for local inspection.`,
}

func init() {
	RootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	RootCmd.AddCommand(runcmd.CrawlCmd)
	RootCmd.AddCommand(runcmd.ServeCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v", err)
		os.Exit(1)
	}
}
