package launchconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/densedit/train-launcher/pkg/fileutil"
	"github.com/densedit/train-launcher/pkg/logutil"
	"github.com/densedit/train-launcher/pkg/randutil"
	"github.com/densedit/train-launcher/pkg/terminal"
	"github.com/densedit/train-launcher/pkg/timeutil"
)

// NewDefault returns a default configuration.
//   - empty string creates a non-nil object for pointer-type field
//   - omitting an entire field returns nil value
//   - make sure to check both
func NewDefault() *Config {
	name := fmt.Sprintf("train-%s-%s", timeutil.GetTS(10), randutil.String(12))
	if v := os.Getenv(TRAIN_LAUNCHER_PREFIX + "NAME"); v != "" {
		name = v
	}
	return &Config{
		mu: new(sync.RWMutex),

		Name: name,

		// to be auto-generated
		ConfigPath: "",
		RunLogPath: "",

		AccelerateBinaryPath: DefaultAccelerateBinaryPath,
		MainProcessPort:      DefaultMainProcessPort,
		Module:               DefaultModule,
		NumProcesses:         DefaultNumProcesses,

		OutputDir: DefaultOutputDir,

		Wandb: getDefaultWandb(),
		S3:    getDefaultS3(),

		LogColor: true,
		LogLevel: logutil.DefaultLogLevel,
		// default, stderr, stdout, or file name
		// log file named with run name will be added automatically
		LogOutputs: []string{"stderr"},
	}
}

func getDefaultWandb() *Wandb {
	return &Wandb{
		APIKey: "",
		Mode:   "",
	}
}

func getDefaultS3() *S3 {
	return &S3{
		Enable:       false,
		BucketCreate: true,
		BucketName:   "",
		Region:       "us-west-2",
	}
}

// ValidateAndSetDefaults returns an error for invalid configurations.
// And updates empty fields with default values.
// At the end, it writes populated YAML to the train-launcher config path.
func (cfg *Config) ValidateAndSetDefaults() error {
	if cfg.mu == nil {
		cfg.mu = new(sync.RWMutex)
	}
	cfg.mu.Lock()
	defer func() {
		cfg.unsafeSync()
		cfg.mu.Unlock()
	}()

	if err := cfg.validateConfig(); err != nil {
		return fmt.Errorf("validateConfig failed [%v]", err)
	}
	if err := cfg.validateWandb(); err != nil {
		return fmt.Errorf("validateWandb failed [%v]", err)
	}
	if err := cfg.validateS3(); err != nil {
		return fmt.Errorf("validateS3 failed [%v]", err)
	}

	return nil
}

func (cfg *Config) validateConfig() error {
	if len(cfg.Name) == 0 {
		return errors.New("Name is empty")
	}
	if cfg.Name != strings.ToLower(cfg.Name) {
		return fmt.Errorf("Name %q must be in lower-case", cfg.Name)
	}

	if cfg.TrainConfigPath == "" {
		return errors.New("TrainConfigPath is empty")
	}
	if !fileutil.Exist(cfg.TrainConfigPath) {
		return fmt.Errorf("TrainConfigPath %q does not exist", cfg.TrainConfigPath)
	}

	if cfg.AccelerateBinaryPath == "" {
		cfg.AccelerateBinaryPath = DefaultAccelerateBinaryPath
	}
	if cfg.Module == "" {
		cfg.Module = DefaultModule
	}
	if cfg.MainProcessPort == 0 {
		cfg.MainProcessPort = DefaultMainProcessPort
	}
	if cfg.MainProcessPort < 1024 || cfg.MainProcessPort > 65535 {
		return fmt.Errorf("invalid MainProcessPort %d", cfg.MainProcessPort)
	}
	if cfg.NumProcesses == 0 {
		cfg.NumProcesses = DefaultNumProcesses
	}
	if cfg.NumProcesses < 1 {
		return fmt.Errorf("invalid NumProcesses %d", cfg.NumProcesses)
	}
	switch cfg.MixedPrecision {
	case "", "no", "fp16", "bf16":
	default:
		return fmt.Errorf("unknown MixedPrecision %q", cfg.MixedPrecision)
	}

	if cfg.LogColorOverride == "" {
		_, cerr := terminal.IsColor()
		if cfg.LogColor && cerr != nil {
			cfg.LogColor = false
		}
	} else {
		ov, perr := strconv.ParseBool(cfg.LogColorOverride)
		if perr != nil {
			return fmt.Errorf("failed to parse LogColorOverride %q (%v)", cfg.LogColorOverride, perr)
		}
		cfg.LogColor = ov
	}
	if len(cfg.LogOutputs) == 0 {
		return errors.New("LogOutputs is not empty")
	}

	if cfg.ConfigPath == "" {
		rootDir, err := os.Getwd()
		if err != nil {
			rootDir = filepath.Join(os.TempDir(), cfg.Name)
			if err := os.MkdirAll(rootDir, 0700); err != nil {
				return err
			}
		}
		cfg.ConfigPath = filepath.Join(rootDir, cfg.Name+".yaml")
		p, err := filepath.Abs(cfg.ConfigPath)
		if err != nil {
			panic(err)
		}
		cfg.ConfigPath = p
	}
	if err := os.MkdirAll(filepath.Dir(cfg.ConfigPath), 0700); err != nil {
		return err
	}
	if err := fileutil.IsDirWriteable(filepath.Dir(cfg.ConfigPath)); err != nil {
		return err
	}

	if len(cfg.LogOutputs) == 1 && (cfg.LogOutputs[0] == "stderr" || cfg.LogOutputs[0] == "stdout") {
		cfg.LogOutputs = append(cfg.LogOutputs, strings.ReplaceAll(cfg.ConfigPath, ".yaml", "")+".log")
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if err := os.MkdirAll(cfg.OutputDir, 0700); err != nil {
		return err
	}
	if err := fileutil.IsDirWriteable(cfg.OutputDir); err != nil {
		return err
	}
	if cfg.RunLogPath == "" {
		cfg.RunLogPath = filepath.Join(cfg.OutputDir, cfg.Name+".run.log")
	}
	if filepath.Ext(cfg.RunLogPath) != ".log" {
		cfg.RunLogPath = cfg.RunLogPath + ".log"
	}

	return nil
}

func (cfg *Config) validateWandb() error {
	if cfg.Wandb == nil {
		return nil
	}
	switch cfg.Wandb.Mode {
	case "", "online", "offline", "disabled":
	default:
		return fmt.Errorf("unknown Wandb.Mode %q", cfg.Wandb.Mode)
	}
	if cfg.Wandb.Entity != "" && cfg.Wandb.Project == "" {
		return errors.New("Wandb.Entity set without Wandb.Project")
	}
	return nil
}

func (cfg *Config) validateS3() error {
	if cfg.S3 == nil || !cfg.S3.Enable {
		return nil
	}
	if cfg.S3.BucketName == "" {
		cfg.S3.BucketName = "train-launcher-" + cfg.Name
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-west-2"
	}
	if cfg.S3.Dir == "" {
		cfg.S3.Dir = cfg.Name
	}
	return nil
}
