//go:build linux

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"rivoj/internal/judgeserver/sandbox"
)

// sandbox-init is spawned by the sandbox runner with a JSON run config on
// stdin. It applies rlimits, redirects IO, drops privileges, loads the
// seccomp policy and execs the target. Any failure before exec is signalled
// back to the parent with SIGUSR1 so it is never mistaken for program
// behavior.
func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		_ = unix.Kill(unix.Getpid(), unix.SIGUSR1)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := decodeConfig(os.Stdin)
	if err != nil {
		return err
	}
	if cfg.WorkDir != "" {
		if err := os.Chdir(cfg.WorkDir); err != nil {
			return fmt.Errorf("chdir workdir: %w", err)
		}
	}
	if err := applyRlimits(cfg); err != nil {
		return err
	}
	if err := redirectIO(cfg); err != nil {
		return err
	}
	if err := dropPrivileges(cfg); err != nil {
		return err
	}
	return execTarget(cfg)
}

func decodeConfig(r io.Reader) (sandbox.Config, error) {
	var cfg sandbox.Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return sandbox.Config{}, fmt.Errorf("decode run config: %w", err)
	}
	if cfg.ExePath == "" {
		return sandbox.Config{}, fmt.Errorf("exe path is required")
	}
	return cfg, nil
}

func applyRlimits(cfg sandbox.Config) error {
	if cfg.MaxStack > 0 {
		val := uint64(cfg.MaxStack)
		if err := unix.Setrlimit(unix.RLIMIT_STACK, &unix.Rlimit{Cur: val, Max: val}); err != nil {
			return fmt.Errorf("set rlimit stack: %w", err)
		}
	}
	// rlimit on address space breaks runtimes that reserve large virtual
	// mappings; for those the parent checks peak usage instead.
	if !cfg.MemoryLimitCheckOnly && cfg.MaxMemory != sandbox.Unlimited {
		val := uint64(cfg.MaxMemory) * 2
		if err := unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: val, Max: val}); err != nil {
			return fmt.Errorf("set rlimit as: %w", err)
		}
	}
	if cfg.MaxCPUTime != sandbox.Unlimited {
		seconds := uint64((cfg.MaxCPUTime + 1000) / 1000)
		if err := unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: seconds, Max: seconds}); err != nil {
			return fmt.Errorf("set rlimit cpu: %w", err)
		}
	}
	if cfg.MaxProcessNumber != sandbox.Unlimited {
		val := uint64(cfg.MaxProcessNumber)
		if err := unix.Setrlimit(unix.RLIMIT_NPROC, &unix.Rlimit{Cur: val, Max: val}); err != nil {
			return fmt.Errorf("set rlimit nproc: %w", err)
		}
	}
	if cfg.MaxOutputSize != sandbox.Unlimited {
		val := uint64(cfg.MaxOutputSize)
		if err := unix.Setrlimit(unix.RLIMIT_FSIZE, &unix.Rlimit{Cur: val, Max: val}); err != nil {
			return fmt.Errorf("set rlimit fsize: %w", err)
		}
	}
	return nil
}

func redirectIO(cfg sandbox.Config) error {
	stdinPath := cfg.InputPath
	if stdinPath == "" {
		stdinPath = "/dev/null"
	}
	stdinFile, err := os.Open(stdinPath)
	if err != nil {
		return fmt.Errorf("open stdin: %w", err)
	}
	if err := unix.Dup2(int(stdinFile.Fd()), int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("dup stdin: %w", err)
	}
	_ = stdinFile.Close()

	if cfg.OutputPath != "" {
		stdoutFile, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("open stdout: %w", err)
		}
		if err := unix.Dup2(int(stdoutFile.Fd()), int(os.Stdout.Fd())); err != nil {
			return fmt.Errorf("dup stdout: %w", err)
		}
		if cfg.ErrorPath == cfg.OutputPath {
			if err := unix.Dup2(int(stdoutFile.Fd()), int(os.Stderr.Fd())); err != nil {
				return fmt.Errorf("dup stderr: %w", err)
			}
		}
		_ = stdoutFile.Close()
	}

	if cfg.ErrorPath != "" && cfg.ErrorPath != cfg.OutputPath {
		stderrFile, err := os.OpenFile(cfg.ErrorPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("open stderr: %w", err)
		}
		if err := unix.Dup2(int(stderrFile.Fd()), int(os.Stderr.Fd())); err != nil {
			return fmt.Errorf("dup stderr: %w", err)
		}
		_ = stderrFile.Close()
	}
	return nil
}

func dropPrivileges(cfg sandbox.Config) error {
	if cfg.GID > 0 {
		if err := unix.Setgroups([]int{cfg.GID}); err != nil {
			return fmt.Errorf("set groups: %w", err)
		}
		if err := unix.Setgid(cfg.GID); err != nil {
			return fmt.Errorf("set gid: %w", err)
		}
	}
	if cfg.UID > 0 {
		if err := unix.Setuid(cfg.UID); err != nil {
			return fmt.Errorf("set uid: %w", err)
		}
	}
	return nil
}
