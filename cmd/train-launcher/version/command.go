// Package version implements "train-launcher version" command.
package version

import (
	"fmt"

	"github.com/densedit/train-launcher/version"

	"github.com/spf13/cobra"
)

func init() {
	cobra.EnablePrefixMatching = true
}

// NewCommand implements "train-launcher version" command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints out train-launcher version",
		Run:   versionFunc,
	}
}

func versionFunc(cmd *cobra.Command, args []string) {
	fmt.Printf(`GitCommit: %s
ReleaseVersion: %s
BuildTime: %s
`,
		version.GitCommit,
		version.ReleaseVersion,
		version.BuildTime,
	)
}
