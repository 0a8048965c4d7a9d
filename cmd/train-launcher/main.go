// train-launcher launches "accelerate" training runs.
package main

import (
	"fmt"
	"os"

	"github.com/densedit/train-launcher/cmd/train-launcher/check"
	"github.com/densedit/train-launcher/cmd/train-launcher/create"
	"github.com/densedit/train-launcher/cmd/train-launcher/launch"
	"github.com/densedit/train-launcher/cmd/train-launcher/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:        "train-launcher",
	Short:      "Training launch CLI",
	SuggestFor: []string{"trainlauncher"},
}

func init() {
	cobra.EnablePrefixMatching = true
}

func init() {
	rootCmd.AddCommand(
		launch.NewCommand(),
		create.NewCommand(),
		check.NewCommand(),
		version.NewCommand(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "train-launcher failed %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}
