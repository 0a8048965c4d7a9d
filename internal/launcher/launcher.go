// Package launcher runs "accelerate launch" for a configured training run.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	aws_config "github.com/aws/aws-sdk-go-v2/config"
	aws_s3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/densedit/train-launcher/internal/artifacts"
	"github.com/densedit/train-launcher/launchconfig"
	"github.com/densedit/train-launcher/pkg/fileutil"
	"github.com/densedit/train-launcher/pkg/logutil"
	"github.com/densedit/train-launcher/pkg/spinner"
	"github.com/densedit/train-launcher/pkg/timeutil"
	"github.com/densedit/train-launcher/version"
	"github.com/kballard/go-shellquote"
	"github.com/manifoldco/promptui"
	"go.uber.org/zap"
)

// Launcher runs a single training process.
type Launcher struct {
	color func(string) string

	stopc    chan struct{}
	stopOnce *sync.Once

	osSig chan os.Signal

	lg        *zap.Logger
	logWriter io.Writer
	logFile   *os.File

	cfg *launchconfig.Config

	// resolved absolute path to the "accelerate" binary
	binPath string
}

// New creates a new Launcher, resolving the "accelerate" binary
// and setting up logging. The configuration must be validated
// with "ValidateAndSetDefaults" beforehand.
func New(cfg *launchconfig.Config) (l *Launcher, err error) {
	fmt.Println("😎 🙏 New launcher", version.Version())

	lg, logWriter, logFile, err := logutil.NewWithStderrWriter(cfg.LogLevel, cfg.LogOutputs)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(logWriter, cfg.Colorize("\n\n[yellow]*********************************\n"))
	fmt.Fprintf(logWriter, cfg.Colorize("[light_green]New %q [default](%q)\n"), cfg.ConfigPath, version.Version())

	l = &Launcher{
		color:     cfg.Colorize,
		stopc:     make(chan struct{}),
		stopOnce:  new(sync.Once),
		osSig:     make(chan os.Signal),
		lg:        lg,
		logWriter: logWriter,
		logFile:   logFile,
		cfg:       cfg,
	}
	signal.Notify(l.osSig, syscall.SIGTERM, syscall.SIGINT)

	if filepath.IsAbs(cfg.AccelerateBinaryPath) {
		l.binPath = cfg.AccelerateBinaryPath
		if _, err = os.Stat(l.binPath); err != nil {
			return nil, fmt.Errorf("cannot stat %q (%v)", l.binPath, err)
		}
	} else {
		l.binPath, err = exec.LookPath(cfg.AccelerateBinaryPath)
		if err != nil {
			return nil, fmt.Errorf("cannot find %q executable (%v)", cfg.AccelerateBinaryPath, err)
		}
	}
	l.lg.Info("resolved launcher binary", zap.String("path", l.binPath))

	return l, nil
}

func (l *Launcher) buildArgs() []string {
	args := []string{
		"launch",
		"--main_process_port", strconv.FormatInt(l.cfg.MainProcessPort, 10),
		"--num_processes", strconv.FormatInt(l.cfg.NumProcesses, 10),
	}
	if l.cfg.MixedPrecision != "" {
		args = append(args, "--mixed_precision", l.cfg.MixedPrecision)
	}
	args = append(args, "-m", l.cfg.Module)
	args = append(args, l.cfg.ExtraArgs...)
	return args
}

// Command returns the shell-quoted command line the launcher would run,
// without running it.
func (l *Launcher) Command() string {
	return shellquote.Join(append([]string{l.binPath}, l.buildArgs()...)...)
}

// Launch runs the training process once and blocks until it exits,
// the launcher is stopped, or an interrupt signal arrives.
// The process output is streamed to the terminal and teed into
// the run log file.
func (l *Launcher) Launch() (err error) {
	if !l.runPrompt("launch") {
		return errors.New("launch aborted")
	}
	defer l.cfg.Sync()

	fmt.Fprint(l.logWriter, l.color("\n\n[yellow]*********************************\n"))
	fmt.Fprintf(l.logWriter, l.color("[light_green]Launch [default](%q)\n"), l.cfg.ConfigPath)
	fmt.Fprintf(l.logWriter, "\n%s\n\n", l.Command())

	l.cfg.RecordStatus(launchconfig.StatusLaunching)
	now := time.Now()

	runLog, err := os.OpenFile(l.cfg.RunLogPath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		l.cfg.RecordStatus(launchconfig.StatusFailed)
		return fmt.Errorf("failed to open run log %q (%v)", l.cfg.RunLogPath, err)
	}
	defer runLog.Close()

	cmd := exec.Command(l.binPath, l.buildArgs()...)
	cmd.Env = append(os.Environ(), l.cfg.TrainEnvs()...)
	cmd.Stdout = io.MultiWriter(os.Stdout, runLog)
	cmd.Stderr = io.MultiWriter(os.Stderr, runLog)

	if err = cmd.Start(); err != nil {
		l.cfg.RecordStatus(launchconfig.StatusFailed)
		return fmt.Errorf("failed to start %q (%v)", l.binPath, err)
	}
	l.cfg.RecordStatus(launchconfig.StatusRunning)
	l.lg.Info("started training process",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("run-log-path", l.cfg.RunLogPath),
	)

	errc := make(chan error)
	go func() {
		errc <- cmd.Wait()
	}()
	select {
	case <-l.stopc:
		l.lg.Warn("stop requested, interrupting training process")
		ierr := cmd.Process.Signal(syscall.SIGINT)
		werr := <-errc
		l.cfg.RecordStatus(launchconfig.StatusStopped)
		err = fmt.Errorf("training process interrupted (interrupt error %v, wait error %v)", ierr, werr)

	case sig := <-l.osSig:
		l.lg.Warn("received signal, forwarding to training process", zap.String("signal", sig.String()))
		ierr := cmd.Process.Signal(sig)
		werr := <-errc
		l.cfg.RecordStatus(launchconfig.StatusStopped)
		err = fmt.Errorf("training process signaled %q (signal error %v, wait error %v)", sig.String(), ierr, werr)

	case err = <-errc:
		if err == nil {
			l.cfg.RecordStatus(launchconfig.StatusCompleted)
		} else {
			l.cfg.RecordStatus(launchconfig.StatusFailed)
			// keep the *exec.ExitError recoverable so callers can propagate the exit code
			err = fmt.Errorf("training process exited with error (%w)", err)
		}
	}

	l.cfg.TimeFrameLaunch = timeutil.NewTimeFrame(now, time.Now())
	l.lg.Info("training process done",
		zap.String("status", l.cfg.StatusCurrent),
		zap.String("took", l.cfg.TimeFrameLaunch.TookString),
	)

	if l.cfg.S3 != nil && l.cfg.S3.Enable {
		if uerr := l.uploadArtifacts(); uerr != nil {
			l.lg.Warn("failed to upload artifacts", zap.Error(uerr))
			if err == nil {
				err = uerr
			}
		}
	}

	if err == nil {
		fmt.Fprint(l.logWriter, l.color("\n\n[yellow]*********************************\n"))
		fmt.Fprint(l.logWriter, l.color("👍 👍 👍 [light_green]LAUNCH SUCCESS\n\n\n"))
	} else {
		fmt.Fprint(l.logWriter, l.color("\n\n[yellow]*********************************\n"))
		fmt.Fprint(l.logWriter, l.color("🔥 💀 👽 😱 (-_-) [light_magenta]LAUNCH FAIL\n\n\n"))
	}
	return err
}

// Stop interrupts an in-flight Launch.
func (l *Launcher) Stop() {
	l.stopOnce.Do(func() { close(l.stopc) })
}

func (l *Launcher) uploadArtifacts() error {
	sld := spinner.New(l.logWriter, "Uploading artifacts...")
	sld.Restart()
	defer sld.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	awsCfg, err := aws_config.LoadDefaultConfig(ctx, aws_config.WithRegion(l.cfg.S3.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS configuration (%v)", err)
	}
	up := artifacts.New(l.lg, aws_s3.NewFromConfig(awsCfg), l.cfg.S3.BucketName, l.cfg.S3.Region)

	if l.cfg.S3.BucketCreate {
		if err = up.CreateBucket(ctx); err != nil {
			return err
		}
	}

	// stage the config snapshot next to the run log
	snapshot := filepath.Join(l.cfg.OutputDir, filepath.Base(l.cfg.ConfigPath))
	if snapshot != l.cfg.ConfigPath {
		if err = fileutil.Copy(l.cfg.ConfigPath, snapshot); err != nil {
			return fmt.Errorf("failed to copy config snapshot (%v)", err)
		}
	}
	return up.UploadRun(ctx, l.cfg.S3.Dir, snapshot, l.cfg.RunLogPath)
}

func (l *Launcher) runPrompt(action string) (ok bool) {
	if l.cfg.Prompt {
		msg := fmt.Sprintf("Ready to %q training run %q, should we continue?", action, l.cfg.Name)
		prompt := promptui.Select{
			Label: msg,
			Items: []string{
				"No, cancel it!",
				fmt.Sprintf("Yes, let's %q!", action),
			},
		}
		idx, answer, err := prompt.Run()
		if err != nil {
			panic(err)
		}
		if idx != 1 {
			fmt.Printf("cancelled %q [index %d, answer %q]\n", action, idx, answer)
			return false
		}
	}
	return true
}
