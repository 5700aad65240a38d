//go:build linux

package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	appErr "rivoj/pkg/errors"
	"rivoj/pkg/utils/logger"
)

type linuxRunner struct {
	helperPath string
}

// NewRunner creates a Linux sandbox runner backed by the sandbox-init helper.
func NewRunner(opts Options) (Runner, error) {
	if opts.HelperPath == "" {
		opts.HelperPath = "sandbox-init"
	}
	return &linuxRunner{helperPath: opts.HelperPath}, nil
}

func (r *linuxRunner) Run(ctx context.Context, cfg Config) (Result, error) {
	if err := validateConfig(cfg); err != nil {
		return Result{}, err
	}

	stdinPipe, err := jsonToPipe(cfg)
	if err != nil {
		return Result{}, appErr.Wrapf(err, appErr.JudgeSystemError, "encode run config failed")
	}
	defer stdinPipe.Close()

	cmd := exec.CommandContext(ctx, r.helperPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	cmd.Stdin = stdinPipe

	var helperStderr bytes.Buffer
	cmd.Stderr = &helperStderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, appErr.Wrapf(err, appErr.JudgeSystemError, "start sandbox helper failed")
	}

	killCtx, cancelKill := context.WithCancel(ctx)
	defer cancelKill()

	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if cfg.MaxRealTime != Unlimited {
			wallTimer = time.After(time.Duration(cfg.MaxRealTime) * time.Millisecond)
		}
		select {
		case <-killCtx.Done():
			killProcessGroup(cmd.Process.Pid)
		case <-wallTimer:
			killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	state := cmd.ProcessState
	if state == nil {
		return Result{}, appErr.Wrapf(waitErr, appErr.JudgeSystemError, "wait for sandbox helper failed")
	}

	res := Result{RealTime: time.Since(start).Milliseconds()}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok {
		if ws.Signaled() {
			res.Signal = int(ws.Signal())
		}
		if ws.Exited() {
			res.ExitCode = ws.ExitStatus()
		}
	}

	// The helper raises SIGUSR1 when it fails before exec. That is an
	// environment fault, never the judged program's.
	if res.Signal == int(unix.SIGUSR1) {
		res.Status = StatusSystemError
		logger.Warn(ctx, "sandbox helper failed",
			zap.String("exe_path", cfg.ExePath),
			zap.String("stderr", strings.TrimSpace(helperStderr.String())))
		return res, nil
	}

	if ru, ok := state.SysUsage().(*syscall.Rusage); ok && ru != nil {
		res.CPUTime = int64(ru.Utime.Sec)*1000 + int64(ru.Utime.Usec)/1000
		res.Memory = int64(ru.Maxrss) * 1024
	}

	res.Status = classify(cfg, res)
	return res, nil
}

// classify maps raw accounting data onto a status code. Order matters:
// a SIGSEGV with memory above the limit is reported as MLE, and a run that
// blows both time limits reports the CPU one.
func classify(cfg Config, res Result) int {
	status := StatusSuccess
	if res.ExitCode != 0 {
		status = StatusRuntimeError
	}
	if res.Signal == int(unix.SIGSEGV) {
		if cfg.MaxMemory != Unlimited && res.Memory > cfg.MaxMemory {
			return StatusMemoryLimitExceeded
		}
		return StatusRuntimeError
	}
	if res.Signal != 0 {
		status = StatusRuntimeError
	}
	if cfg.MaxMemory != Unlimited && res.Memory > cfg.MaxMemory {
		status = StatusMemoryLimitExceeded
	}
	if cfg.MaxRealTime != Unlimited && res.RealTime > cfg.MaxRealTime {
		status = StatusRealTimeLimitExceeded
	}
	if cfg.MaxCPUTime != Unlimited && res.CPUTime > cfg.MaxCPUTime {
		status = StatusCPUTimeLimitExceeded
	}
	return status
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func jsonToPipe(cfg Config) (io.ReadCloser, error) {
	reader, writer := io.Pipe()
	go func() {
		enc := json.NewEncoder(writer)
		err := enc.Encode(cfg)
		_ = writer.CloseWithError(err)
	}()
	return reader, nil
}
