package sandbox

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cfg := Config{
		MaxCPUTime:  1000,
		MaxRealTime: 3000,
		MaxMemory:   256 * 1024 * 1024,
	}

	tests := []struct {
		name string
		res  Result
		want int
	}{
		{
			name: "clean exit",
			res:  Result{CPUTime: 120, RealTime: 150, Memory: 8 << 20},
			want: StatusSuccess,
		},
		{
			name: "nonzero exit code",
			res:  Result{ExitCode: 1, CPUTime: 10, RealTime: 12},
			want: StatusRuntimeError,
		},
		{
			name: "segfault under memory limit",
			res:  Result{Signal: int(unix.SIGSEGV), Memory: 8 << 20},
			want: StatusRuntimeError,
		},
		{
			name: "segfault above memory limit",
			res:  Result{Signal: int(unix.SIGSEGV), Memory: 512 << 20},
			want: StatusMemoryLimitExceeded,
		},
		{
			name: "killed at wall clock limit",
			res:  Result{Signal: int(unix.SIGKILL), CPUTime: 40, RealTime: 3100},
			want: StatusRealTimeLimitExceeded,
		},
		{
			name: "cpu limit wins over real time limit",
			res:  Result{Signal: int(unix.SIGKILL), CPUTime: 1200, RealTime: 3100},
			want: StatusCPUTimeLimitExceeded,
		},
		{
			name: "memory above limit on normal exit",
			res:  Result{Memory: 512 << 20},
			want: StatusMemoryLimitExceeded,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := classify(cfg, tc.res); got != tc.want {
				t.Fatalf("classify() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestClassifyUnlimited(t *testing.T) {
	t.Parallel()

	cfg := Config{
		MaxCPUTime:  Unlimited,
		MaxRealTime: Unlimited,
		MaxMemory:   Unlimited,
	}
	res := Result{CPUTime: 99999, RealTime: 99999, Memory: 4 << 30}
	if got := classify(cfg, res); got != StatusSuccess {
		t.Fatalf("classify() = %d, want %d", got, StatusSuccess)
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	valid := Config{
		ExePath:          "/usr/bin/true",
		MaxCPUTime:       1000,
		MaxRealTime:      3000,
		MaxMemory:        128 << 20,
		MaxStack:         128 << 20,
		MaxOutputSize:    16 << 20,
		MaxProcessNumber: Unlimited,
	}
	if err := validateConfig(valid); err != nil {
		t.Fatalf("validateConfig() = %v, want nil", err)
	}

	missingExe := valid
	missingExe.ExePath = ""
	if err := validateConfig(missingExe); err == nil {
		t.Fatal("expected error for missing exe path")
	}

	zeroCPU := valid
	zeroCPU.MaxCPUTime = 0
	if err := validateConfig(zeroCPU); err == nil {
		t.Fatal("expected error for zero cpu limit")
	}

	zeroStack := valid
	zeroStack.MaxStack = 0
	if err := validateConfig(zeroStack); err == nil {
		t.Fatal("expected error for zero stack limit")
	}
}
