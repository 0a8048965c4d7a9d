// Package check implements "train-launcher check" command.
package check

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/densedit/train-launcher/launchconfig"
	"github.com/densedit/train-launcher/pkg/fileutil"
	"github.com/spf13/cobra"
)

var path string

func init() {
	cobra.EnablePrefixMatching = true
}

// NewCommand implements "train-launcher check" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Checks the launch environment",
		Run:   checkFunc,
	}
	cmd.PersistentFlags().StringVarP(&path, "path", "p", "", "train-launcher configuration file path")
	return cmd
}

func checkFunc(cmd *cobra.Command, args []string) {
	binName := launchconfig.DefaultAccelerateBinaryPath
	var cfg *launchconfig.Config
	if path != "" {
		var err error
		cfg, err = launchconfig.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration %q (%v)\n", path, err)
			os.Exit(1)
		}
		if cfg.AccelerateBinaryPath != "" {
			binName = cfg.AccelerateBinaryPath
		}
	}

	binPath, err := exec.LookPath(binName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot find %q executable (%v)\n", binName, err)
		os.Exit(1)
	}
	fmt.Printf("found %q\n", binPath)

	vout, err := exec.Command(binPath, "--version").CombinedOutput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to run %q --version (%v)\n", binPath, err)
		os.Exit(1)
	}
	fmt.Printf("%s", string(vout))

	if cfg != nil {
		if !fileutil.Exist(cfg.TrainConfigPath) {
			fmt.Fprintf(os.Stderr, "cannot find training configuration %q\n", cfg.TrainConfigPath)
			os.Exit(1)
		}
		fmt.Printf("found training configuration %q\n", cfg.TrainConfigPath)
	}

	fmt.Printf("\n*********************************\n")
	fmt.Printf("'train-launcher check' success\n")
}
