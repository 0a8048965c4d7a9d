// Package launchconfig defines train-launcher configuration.
package launchconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/densedit/train-launcher/pkg/timeutil"
	"github.com/kballard/go-shellquote"
	"github.com/mitchellh/colorstring"
	"sigs.k8s.io/yaml" // must use "sigs.k8s.io/yaml"
)

// TRAIN_LAUNCHER_PREFIX is the environment variable prefix used for "launchconfig".
const TRAIN_LAUNCHER_PREFIX = "TRAIN_LAUNCHER_"

const (
	// EnvironmentVariablePrefixWandb is the environment variable prefix used for "Wandb".
	EnvironmentVariablePrefixWandb = TRAIN_LAUNCHER_PREFIX + "WANDB_"
	// EnvironmentVariablePrefixS3 is the environment variable prefix used for "S3".
	EnvironmentVariablePrefixS3 = TRAIN_LAUNCHER_PREFIX + "S3_"
)

// Environment variable names injected into the training process.
const (
	// EnvTrainConfig names the training configuration YAML for the
	// training module. The file contents are opaque to the launcher.
	EnvTrainConfig = "XFL_CONFIG"
	// EnvTokenizersParallelism is consumed by the downstream tokenizer library.
	EnvTokenizersParallelism = "TOKENIZERS_PARALLELISM"
	// EnvCUDAVisibleDevices restricts the GPUs visible to the training process.
	EnvCUDAVisibleDevices = "CUDA_VISIBLE_DEVICES"

	EnvWandbAPIKey  = "WANDB_API_KEY"
	EnvWandbProject = "WANDB_PROJECT"
	EnvWandbEntity  = "WANDB_ENTITY"
	EnvWandbMode    = "WANDB_MODE"
)

const (
	// DefaultAccelerateBinaryPath is resolved via PATH when not absolute.
	DefaultAccelerateBinaryPath = "accelerate"
	// DefaultMainProcessPort is the rendezvous port for the distributed run.
	DefaultMainProcessPort int64 = 41353
	// DefaultModule is the training entry point module.
	DefaultModule = "src.train.train"
	// DefaultNumProcesses is the default number of training processes.
	DefaultNumProcesses int64 = 1
	// DefaultOutputDir stores run logs and config snapshots.
	DefaultOutputDir = "output"
)

// Config defines train-launcher configuration.
type Config struct {
	mu *sync.RWMutex

	// Name is the run name.
	// If empty, launcher auto-populates it.
	Name string `json:"name"`
	// ConfigPath is the configuration file path.
	// Launcher is expected to update this file with latest run status.
	ConfigPath string `json:"config-path,omitempty"`

	// TrainConfigPath is the training configuration YAML,
	// exported to the training process as XFL_CONFIG.
	TrainConfigPath string `json:"train-config-path"`
	// AccelerateBinaryPath is the launcher binary.
	// If not absolute, it is resolved via PATH.
	AccelerateBinaryPath string `json:"accelerate-binary-path"`
	// MainProcessPort is passed as "--main_process_port".
	MainProcessPort int64 `json:"main-process-port"`
	// Module is the training entry point, passed as "-m".
	Module string `json:"module"`
	// NumProcesses is passed as "--num_processes".
	NumProcesses int64 `json:"num-processes"`
	// MixedPrecision is passed as "--mixed_precision" when not empty.
	// Allowed values are "no", "fp16" and "bf16".
	MixedPrecision string `json:"mixed-precision,omitempty"`

	// GPUIDs is the GPU visibility list (e.g. "0,1"), exported verbatim
	// as CUDA_VISIBLE_DEVICES. Empty leaves the variable unset.
	GPUIDs string `json:"gpu-ids,omitempty"`
	// ExtraArgs are appended to the launcher command line after the module.
	ExtraArgs []string `json:"extra-args,omitempty"`
	// ExtraEnvs are additional environment variables for the training process.
	ExtraEnvs map[string]string `json:"extra-envs,omitempty"`

	Wandb *Wandb `json:"wandb,omitempty"`
	S3    *S3    `json:"s3,omitempty"`

	// OutputDir stores the run log and uploaded artifacts staging.
	OutputDir string `json:"output-dir"`
	// RunLogPath is the file the training process output is teed into.
	RunLogPath string `json:"run-log-path,omitempty"`

	Prompt bool `json:"-"`

	// LogColor is true to output logs in color.
	LogColor bool `json:"log-color"`
	// LogColorOverride is not empty to override "LogColor" setting.
	// If not empty, the automatic color check is not even run and use this value instead.
	LogColorOverride string `json:"log-color-override"`
	// LogLevel configures log level. Only supports debug, info, warn, error, panic, or fatal. Default 'info'.
	LogLevel string `json:"log-level"`
	// LogOutputs is a list of log outputs. Valid values are 'default', 'stderr', 'stdout', or file names.
	// Logs are appended to the existing file, if any.
	LogOutputs []string `json:"log-outputs,omitempty"`

	TimeFrameLaunch timeutil.TimeFrame `json:"time-frame-launch" read-only:"true"`
	// StatusCurrent represents the current status of the run.
	StatusCurrent string `json:"status-current" read-only:"true"`
	// Status represents the status history of the run.
	Status []Status `json:"status" read-only:"true"`
}

// Wandb configures Weights & Biases reporting for the training process.
// All fields are exported as WANDB_* environment variables when not empty.
type Wandb struct {
	APIKey  string `json:"api-key"`
	Project string `json:"project"`
	Entity  string `json:"entity,omitempty"`
	// Mode is "online", "offline" or "disabled".
	Mode string `json:"mode,omitempty"`
}

// S3 configures run artifact uploads.
type S3 struct {
	// Enable is true to upload the run log and config snapshot after the run.
	Enable bool `json:"enable"`
	// BucketCreate is true to auto-create the S3 bucket.
	BucketCreate bool `json:"bucket-create"`
	// BucketName is the artifact bucket.
	BucketName string `json:"bucket-name"`
	// Region is the AWS region for the bucket.
	Region string `json:"region"`
	// Dir is the S3 directory to store all run artifacts.
	Dir string `json:"dir"`
}

func (c Config) Colorize(input string) string {
	colorize := colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: !c.LogColor,
		Reset:   true,
	}
	return colorize.Color(input)
}

// Status is the status.
type Status struct {
	Time   time.Time `json:"time"`
	Status string    `json:"status"`
}

// Run status values recorded into the config file.
const (
	StatusLaunching = "LAUNCHING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusStopped   = "STOPPED"
)

// RecordStatus records run status.
func (cfg *Config) RecordStatus(status string) {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	cfg.StatusCurrent = status

	sv := Status{Time: time.Now(), Status: status}
	n := len(cfg.Status)
	if n == 0 {
		cfg.Status = []Status{sv}
		cfg.unsafeSync()
		return
	}

	copied := make([]Status, n+1)
	copy(copied[1:], cfg.Status)
	copied[0] = sv
	cfg.Status = copied
	cfg.unsafeSync()
}

// TrainEnvs returns the environment variables injected into the training
// process, in deterministic order. The config path always maps to
// EnvTrainConfig, and EnvTokenizersParallelism is always "true".
// Optional values that are empty produce no entry at all.
func (cfg *Config) TrainEnvs() (envs []string) {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return cfg.unsafeTrainEnvs()
}

func (cfg *Config) unsafeTrainEnvs() (envs []string) {
	envs = append(envs, EnvTrainConfig+"="+cfg.TrainConfigPath)
	envs = append(envs, EnvTokenizersParallelism+"=true")
	if cfg.GPUIDs != "" {
		envs = append(envs, EnvCUDAVisibleDevices+"="+cfg.GPUIDs)
	}
	if cfg.Wandb != nil {
		if cfg.Wandb.APIKey != "" {
			envs = append(envs, EnvWandbAPIKey+"="+cfg.Wandb.APIKey)
		}
		if cfg.Wandb.Project != "" {
			envs = append(envs, EnvWandbProject+"="+cfg.Wandb.Project)
		}
		if cfg.Wandb.Entity != "" {
			envs = append(envs, EnvWandbEntity+"="+cfg.Wandb.Entity)
		}
		if cfg.Wandb.Mode != "" {
			envs = append(envs, EnvWandbMode+"="+cfg.Wandb.Mode)
		}
	}
	if len(cfg.ExtraEnvs) > 0 {
		keys := make([]string, 0, len(cfg.ExtraEnvs))
		for k := range cfg.ExtraEnvs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			envs = append(envs, k+"="+cfg.ExtraEnvs[k])
		}
	}
	return envs
}

// Load loads configuration from YAML.
//
// Example usage:
//
//	import "github.com/densedit/train-launcher/launchconfig"
//	cfg, err := launchconfig.Load("train.yaml")
//	err = cfg.ValidateAndSetDefaults()
//
// Do not set default values in this function.
// "ValidateAndSetDefaults" must be called separately,
// to prevent overwriting previous data when loaded from disks.
func Load(p string) (cfg *Config, err error) {
	var d []byte
	d, err = os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	cfg = new(Config)
	if err = yaml.Unmarshal(d, cfg, yaml.DisallowUnknownFields); err != nil {
		return nil, err
	}

	cfg.mu = new(sync.RWMutex)
	var ap string
	ap, err = filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = ap
	cfg.unsafeSync()

	return cfg, nil
}

// Sync persists current configuration and states to disk.
func (cfg *Config) Sync() (err error) {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	return cfg.unsafeSync()
}

func (cfg *Config) unsafeSync() (err error) {
	var p string
	if cfg.ConfigPath != "" && !filepath.IsAbs(cfg.ConfigPath) {
		p, err = filepath.Abs(cfg.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to 'filepath.Abs(%s)' %v", cfg.ConfigPath, err)
		}
		cfg.ConfigPath = p
	}
	var d []byte
	d, err = yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to 'yaml.Marshal' %v", err)
	}

	err = os.WriteFile(cfg.ConfigPath, d, 0600)
	if err != nil {
		return fmt.Errorf("failed to write file %q (%v)", cfg.ConfigPath, err)
	}

	return nil
}

// LaunchCommandSnippet returns a copy-pastable rendition of the launch as a
// plain shell script, mirroring what the launcher executes.
func (cfg *Config) LaunchCommandSnippet() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	buf := bytes.NewBuffer(nil)
	buf.WriteString("#!/bin/bash\nset -e\n\n")
	for _, kv := range cfg.unsafeTrainEnvs() {
		k, v, _ := strings.Cut(kv, "=")
		buf.WriteString("export " + k + "=" + shellquote.Join(v) + "\n")
	}
	args := []string{
		cfg.AccelerateBinaryPath,
		"launch",
		"--main_process_port", strconv.FormatInt(cfg.MainProcessPort, 10),
		"--num_processes", strconv.FormatInt(cfg.NumProcesses, 10),
	}
	if cfg.MixedPrecision != "" {
		args = append(args, "--mixed_precision", cfg.MixedPrecision)
	}
	args = append(args, "-m", cfg.Module)
	args = append(args, cfg.ExtraArgs...)
	buf.WriteString(shellquote.Join(args...) + "\n")
	return buf.String()
}
