package launchconfig

import (
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/densedit/train-launcher/pkg/fileutil"
)

func TestTrainEnvs(t *testing.T) {
	cfg := NewDefault()
	cfg.TrainConfigPath = "/tmp/config.yaml"

	envs := cfg.TrainEnvs()
	expected := []string{
		"XFL_CONFIG=/tmp/config.yaml",
		"TOKENIZERS_PARALLELISM=true",
	}
	if !reflect.DeepEqual(envs, expected) {
		t.Fatalf("expected %q, got %q", expected, envs)
	}

	cfg.GPUIDs = "0,1"
	cfg.Wandb = &Wandb{
		APIKey:  "test-key",
		Project: "dense-dit",
		Entity:  "lab",
		Mode:    "offline",
	}
	cfg.ExtraEnvs = map[string]string{
		"NCCL_DEBUG": "INFO",
		"HF_HOME":    "/data/hf",
	}

	envs = cfg.TrainEnvs()
	expected = []string{
		"XFL_CONFIG=/tmp/config.yaml",
		"TOKENIZERS_PARALLELISM=true",
		"CUDA_VISIBLE_DEVICES=0,1",
		"WANDB_API_KEY=test-key",
		"WANDB_PROJECT=dense-dit",
		"WANDB_ENTITY=lab",
		"WANDB_MODE=offline",
		"HF_HOME=/data/hf",
		"NCCL_DEBUG=INFO",
	}
	if !reflect.DeepEqual(envs, expected) {
		t.Fatalf("expected %q, got %q", expected, envs)
	}
}

func TestTrainEnvsUnsetOptionals(t *testing.T) {
	cfg := NewDefault()
	cfg.TrainConfigPath = "/tmp/config.yaml"
	cfg.GPUIDs = ""
	cfg.Wandb = nil

	for _, kv := range cfg.TrainEnvs() {
		k := strings.SplitN(kv, "=", 2)[0]
		switch k {
		case EnvCUDAVisibleDevices, EnvWandbAPIKey, EnvWandbProject, EnvWandbEntity, EnvWandbMode:
			t.Fatalf("unexpected %q in train envs", kv)
		}
	}
}

func TestConfigLoad(t *testing.T) {
	trainCfgPath, err := fileutil.WriteTempFile([]byte("model:\n  depth: 12\n"))
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(trainCfgPath)

	cfg := NewDefault()
	cfg.TrainConfigPath = trainCfgPath
	cfg.ConfigPath = fileutil.GetTempFilePath() + ".yaml"
	cfg.OutputDir = t.TempDir()
	defer os.RemoveAll(cfg.ConfigPath)

	if err = cfg.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	cfg.RecordStatus(StatusLaunching)

	loaded, err := Load(cfg.ConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != cfg.Name {
		t.Fatalf("Name expected %q, got %q", cfg.Name, loaded.Name)
	}
	if loaded.MainProcessPort != DefaultMainProcessPort {
		t.Fatalf("MainProcessPort expected %d, got %d", DefaultMainProcessPort, loaded.MainProcessPort)
	}
	if loaded.Module != DefaultModule {
		t.Fatalf("Module expected %q, got %q", DefaultModule, loaded.Module)
	}
	if loaded.StatusCurrent != StatusLaunching {
		t.Fatalf("StatusCurrent expected %q, got %q", StatusLaunching, loaded.StatusCurrent)
	}
	if len(loaded.Status) != 1 || loaded.Status[0].Status != StatusLaunching {
		t.Fatalf("unexpected Status %+v", loaded.Status)
	}
}

func TestValidateRejects(t *testing.T) {
	trainCfgPath, err := fileutil.WriteTempFile([]byte("ok: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(trainCfgPath)

	cfg := NewDefault()
	cfg.TrainConfigPath = trainCfgPath
	cfg.ConfigPath = fileutil.GetTempFilePath() + ".yaml"
	cfg.OutputDir = t.TempDir()
	defer os.RemoveAll(cfg.ConfigPath)
	cfg.MainProcessPort = 80
	if err = cfg.ValidateAndSetDefaults(); err == nil {
		t.Fatal("expected port range error, got nil")
	}

	cfg = NewDefault()
	cfg.TrainConfigPath = trainCfgPath
	cfg.ConfigPath = fileutil.GetTempFilePath() + ".yaml"
	cfg.OutputDir = t.TempDir()
	defer os.RemoveAll(cfg.ConfigPath)
	cfg.MixedPrecision = "fp8"
	if err = cfg.ValidateAndSetDefaults(); err == nil {
		t.Fatal("expected mixed precision error, got nil")
	}

	cfg = NewDefault()
	cfg.TrainConfigPath = trainCfgPath
	cfg.ConfigPath = fileutil.GetTempFilePath() + ".yaml"
	cfg.OutputDir = t.TempDir()
	defer os.RemoveAll(cfg.ConfigPath)
	cfg.Wandb = &Wandb{Entity: "lab"}
	if err = cfg.ValidateAndSetDefaults(); err == nil {
		t.Fatal("expected wandb entity error, got nil")
	}

	cfg = NewDefault()
	cfg.TrainConfigPath = "/does/not/exist.yaml"
	if err = cfg.ValidateAndSetDefaults(); err == nil {
		t.Fatal("expected train config path error, got nil")
	}
}

func TestRecordStatusPrepends(t *testing.T) {
	cfg := NewDefault()
	cfg.ConfigPath = fileutil.GetTempFilePath() + ".yaml"
	defer os.RemoveAll(cfg.ConfigPath)

	cfg.RecordStatus(StatusLaunching)
	cfg.RecordStatus(StatusRunning)
	cfg.RecordStatus(StatusCompleted)

	if cfg.StatusCurrent != StatusCompleted {
		t.Fatalf("StatusCurrent expected %q, got %q", StatusCompleted, cfg.StatusCurrent)
	}
	if len(cfg.Status) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(cfg.Status))
	}
	if cfg.Status[0].Status != StatusCompleted || cfg.Status[2].Status != StatusLaunching {
		t.Fatalf("unexpected status order %+v", cfg.Status)
	}
}

func TestLaunchCommandSnippet(t *testing.T) {
	cfg := NewDefault()
	cfg.TrainConfigPath = "/data/my run/config.yaml"
	cfg.AccelerateBinaryPath = "accelerate"
	cfg.MainProcessPort = 29500
	cfg.NumProcesses = 4
	cfg.MixedPrecision = "bf16"
	cfg.ExtraArgs = []string{"--seed 42"}

	snippet := cfg.LaunchCommandSnippet()
	expectedCmd := "accelerate launch --main_process_port 29500 --num_processes 4 --mixed_precision bf16 -m src.train.train '--seed 42'\n"
	if !strings.HasSuffix(snippet, expectedCmd) {
		t.Fatalf("expected command %q in snippet %q", expectedCmd, snippet)
	}
	if !strings.Contains(snippet, "export XFL_CONFIG='/data/my run/config.yaml'\n") {
		t.Fatalf("expected quoted export in snippet %q", snippet)
	}
	if !strings.Contains(snippet, "export TOKENIZERS_PARALLELISM=true\n") {
		t.Fatalf("expected TOKENIZERS_PARALLELISM export in snippet %q", snippet)
	}
}
