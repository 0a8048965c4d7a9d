// Package launch implements "train-launcher launch" command.
package launch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/densedit/train-launcher/internal/launcher"
	"github.com/densedit/train-launcher/launchconfig"
	"github.com/densedit/train-launcher/pkg/fileutil"
	"github.com/densedit/train-launcher/version"
	"github.com/spf13/cobra"
)

var (
	path         string
	autoPath     bool
	enablePrompt bool
	dryRun       bool
)

func init() {
	cobra.EnablePrefixMatching = true
}

// NewCommand implements "train-launcher launch" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch a training run",
		Long:  "Configuration values are overwritten by environment variables.",
		Run:   launchFunc,
	}
	cmd.PersistentFlags().StringVarP(&path, "path", "p", "", "train-launcher configuration file path")
	cmd.PersistentFlags().BoolVarP(&autoPath, "auto-path", "a", false, "'true' to auto-generate path for the configuration file, overwrites existing --path value")
	cmd.PersistentFlags().BoolVarP(&enablePrompt, "enable-prompt", "e", false, "'true' to enable prompt mode")
	cmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "'true' to print the launch command without running it")
	return cmd
}

func launchFunc(cmd *cobra.Command, args []string) {
	if !autoPath && path == "" {
		fmt.Fprintln(os.Stderr, "'--path' flag is not specified")
		os.Exit(1)
	}

	var cfg *launchconfig.Config
	var err error
	if !autoPath && fileutil.Exist(path) {
		cfg, err = launchconfig.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration %q (%v)\n", path, err)
			os.Exit(1)
		}
	} else {
		cfg = launchconfig.NewDefault()
		if autoPath {
			path = filepath.Join(os.TempDir(), cfg.Name+".yaml")
		}
		cfg.ConfigPath = path
		fmt.Fprintf(os.Stderr, "cannot find configuration; writing a new one %q\n", path)
	}
	cfg.Prompt = enablePrompt

	fmt.Printf("\n*********************************\n")
	fmt.Printf("overwriting config file from environment variables with %s\n", version.Version())
	err = cfg.UpdateFromEnvs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from environment variables: %v\n", err)
		os.Exit(1)
	}

	if err = cfg.ValidateAndSetDefaults(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to validate configuration %q (%v)\n", path, err)
		os.Exit(1)
	}

	txt, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read configuration %q (%v)\n", cfg.ConfigPath, err)
		os.Exit(1)
	}
	fmt.Printf("\n\n%q:\n\n%s\n\n\n", cfg.ConfigPath, string(txt))

	l, err := launcher.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create launcher %v\n", err)
		os.Exit(1)
	}

	if dryRun {
		fmt.Println(l.Command())
		fmt.Printf("\n%s\n", cfg.LaunchCommandSnippet())
		return
	}

	if err = l.Launch(); err != nil {
		fmt.Printf("\n*********************************\n")
		fmt.Printf("'train-launcher launch' fail %v\n", err)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}

	fmt.Printf("\n*********************************\n")
	fmt.Printf("'train-launcher launch' success\n")
}
