// Package sandbox executes untrusted programs under resource limits,
// reduced privileges and optional syscall policies.
package sandbox

import (
	"context"

	appErr "rivoj/pkg/errors"
)

// Unlimited disables the limit it is assigned to.
const Unlimited = -1

// Execution status codes reported in Result.Status.
const (
	StatusSuccess               = 0
	StatusCPUTimeLimitExceeded  = 1
	StatusRealTimeLimitExceeded = 2
	StatusMemoryLimitExceeded   = 3
	StatusRuntimeError          = 4
	StatusSystemError           = 5
)

// Config describes a single sandboxed execution. Time limits are in
// milliseconds, memory and output limits in bytes.
type Config struct {
	ExePath          string
	Args             []string
	Env              []string
	WorkDir          string
	MaxCPUTime       int64
	MaxRealTime      int64
	MaxMemory        int64
	MaxStack         int64
	MaxOutputSize    int64
	MaxProcessNumber int64
	InputPath        string
	OutputPath       string
	ErrorPath        string
	UID              int
	GID              int
	// SeccompRule selects a named syscall policy ("general", "c_cpp");
	// empty runs without a filter.
	SeccompRule string
	// MemoryLimitCheckOnly skips the address-space rlimit and only checks
	// peak usage afterwards. Needed for JVM-style runtimes that reserve
	// large virtual mappings up front.
	MemoryLimitCheckOnly bool
}

// Result carries resource accounting and the classified outcome of one run.
type Result struct {
	CPUTime  int64
	RealTime int64
	Memory   int64
	Signal   int
	ExitCode int
	Status   int
}

// Runner executes a Config and reports the classified Result. A non-nil
// error means the run could not be attempted at all; abnormal program
// behavior is reported through Result.Status instead.
type Runner interface {
	Run(ctx context.Context, cfg Config) (Result, error)
}

// Options configures the platform runner.
type Options struct {
	// HelperPath locates the sandbox-init binary that applies limits and
	// privileges before exec. Defaults to "sandbox-init" on PATH.
	HelperPath string
}

func validateConfig(cfg Config) error {
	if cfg.ExePath == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("exe path is required")
	}
	limits := map[string]int64{
		"max_cpu_time":       cfg.MaxCPUTime,
		"max_real_time":      cfg.MaxRealTime,
		"max_memory":         cfg.MaxMemory,
		"max_output_size":    cfg.MaxOutputSize,
		"max_process_number": cfg.MaxProcessNumber,
	}
	for name, value := range limits {
		if value < 1 && value != Unlimited {
			return appErr.New(appErr.InvalidParams).
				WithMessage("invalid resource limit").
				WithDetail("limit", name)
		}
	}
	if cfg.MaxStack < 1 {
		return appErr.New(appErr.InvalidParams).
			WithMessage("invalid resource limit").
			WithDetail("limit", "max_stack")
	}
	return nil
}
