// Package judgeclient runs a compiled submission against a test case set
// inside the sandbox and reports per-test-case results.
package judgeclient

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"rivoj/internal/judgeapi"
	"rivoj/internal/judgeserver/sandbox"
	"rivoj/internal/judgeserver/testdata"
	appErr "rivoj/pkg/errors"
	"rivoj/pkg/utils/logger"
)

// Special judge exit codes.
const (
	spjAccepted    = 0
	spjWrongAnswer = 1
)

// Error markers carried in TestCaseResult.Error.
const (
	runErrNone   = 0
	runErrSetup  = -1
	runErrSPJ    = -2
	runErrOutput = -3
)

const minOutputLimit = 16 * 1024 * 1024

// Options configures a judge client.
type Options struct {
	Runner sandbox.Runner
	RunUID int
	RunGID int
	SPJUID int
	SPJGID int
	// Parallelism bounds concurrent test case runs; defaults to the host's
	// logical CPU count.
	Parallelism int
}

// Client fans test case executions out over a bounded worker pool.
type Client struct {
	runner      sandbox.Runner
	runUID      int
	runGID      int
	spjUID      int
	spjGID      int
	parallelism int
}

// New validates the options and creates a client.
func New(opts Options) (*Client, error) {
	if opts.Runner == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("sandbox runner is required")
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	return &Client{
		runner:      opts.Runner,
		runUID:      opts.RunUID,
		runGID:      opts.RunGID,
		spjUID:      opts.SPJUID,
		spjGID:      opts.SPJGID,
		parallelism: opts.Parallelism,
	}, nil
}

// Job describes one judging attempt over an extracted test case set.
type Job struct {
	RunConfig     judgeapi.RunConfig
	ExePath       string
	MaxCPUTime    int64
	MaxMemory     int64
	TestCaseDir   string
	SubmissionDir string
	// SPJExePath and SPJConfig must be set when the test case set declares
	// spj judging.
	SPJExePath string
	SPJConfig  *judgeapi.SPJConfig
	Output     bool
}

// Run judges every test case in the set and returns one result per case in
// label order. There is no early exit: a failing case does not cancel the
// remaining ones.
func (c *Client) Run(ctx context.Context, job Job) ([]judgeapi.TestCaseResult, error) {
	info, err := testdata.LoadInfo(job.TestCaseDir)
	if err != nil {
		return nil, err
	}
	if info.SPJ {
		if job.SPJConfig == nil {
			return nil, appErr.New(appErr.InvalidParams).WithMessage("spj config is required for this test case set")
		}
		if job.SPJExePath == "" {
			return nil, appErr.New(appErr.SPJNotCompiled)
		}
	}

	ids := info.OrderedIDs()
	results := make([]judgeapi.TestCaseResult, len(ids))
	sem := make(chan struct{}, c.parallelism)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = c.judgeOne(ctx, job, info, id)
		}(i, id)
	}
	wg.Wait()
	return results, nil
}

func (c *Client) judgeOne(ctx context.Context, job Job, info testdata.Info, id string) judgeapi.TestCaseResult {
	res := judgeapi.TestCaseResult{TestCase: id}
	tc := info.TestCases[id]
	inFile := filepath.Join(job.TestCaseDir, tc.InputName)
	outFile := filepath.Join(job.SubmissionDir, id+".out")

	argv, err := buildRunCommand(job.RunConfig.Command, job.ExePath, job.MaxMemory)
	if err != nil {
		logger.Error(ctx, "parse run command failed", zap.String("test_case", id), zap.Error(err))
		res.Result = judgeapi.VerdictSystemError
		res.Error = runErrSetup
		return res
	}

	maxOutput := tc.OutputSize * 2
	if maxOutput < minOutputLimit {
		maxOutput = minOutputLimit
	}

	run, err := c.runner.Run(ctx, sandbox.Config{
		ExePath:              argv[0],
		Args:                 argv[1:],
		Env:                  append([]string{"PATH=" + os.Getenv("PATH")}, job.RunConfig.Env...),
		WorkDir:              job.SubmissionDir,
		MaxCPUTime:           job.MaxCPUTime,
		MaxRealTime:          job.MaxCPUTime * 3,
		MaxMemory:            job.MaxMemory,
		MaxStack:             128 * 1024 * 1024,
		MaxOutputSize:        maxOutput,
		MaxProcessNumber:     sandbox.Unlimited,
		InputPath:            inFile,
		OutputPath:           outFile,
		ErrorPath:            outFile,
		UID:                  c.runUID,
		GID:                  c.runGID,
		SeccompRule:          job.RunConfig.SeccompRule,
		MemoryLimitCheckOnly: job.RunConfig.MemoryLimitCheckOnly,
	})
	if err != nil {
		logger.Error(ctx, "sandbox run failed", zap.String("test_case", id), zap.Error(err))
		res.Result = judgeapi.VerdictSystemError
		res.Error = runErrSetup
		return res
	}

	res.CPUTime = run.CPUTime
	res.RealTime = run.RealTime
	res.Memory = run.Memory
	res.Signal = run.Signal
	res.ExitCode = run.ExitCode
	res.Result = judgeapi.Verdict(run.Status)

	if run.Status == sandbox.StatusSuccess {
		if info.SPJ {
			c.applySPJ(ctx, job, inFile, outFile, &res)
		} else {
			md5sum, matched, err := compareOutput(outFile, tc.StrippedOutputMD5)
			if err != nil {
				logger.Error(ctx, "read user output failed", zap.String("test_case", id), zap.Error(err))
				res.Result = judgeapi.VerdictSystemError
				res.Error = runErrOutput
			} else {
				res.OutputMD5 = md5sum
				if !matched {
					res.Result = judgeapi.VerdictWrongAnswer
				}
			}
		}
	}

	if job.Output {
		if data, err := os.ReadFile(outFile); err == nil {
			res.Output = string(data)
		}
	}
	return res
}

// applySPJ re-invokes the special judge over the original input and the
// user's raw output, with elevated allowances. Its exit code overrides the
// provisional ACCEPTED.
func (c *Client) applySPJ(ctx context.Context, job Job, inFile, userOutFile string, res *judgeapi.TestCaseResult) {
	command := strings.NewReplacer(
		"{exe_path}", job.SPJExePath,
		"{in_file_path}", inFile,
		"{user_out_file_path}", userOutFile,
	).Replace(job.SPJConfig.Command)
	argv, err := shlex.Split(command)
	if err != nil || len(argv) == 0 {
		logger.Error(ctx, "parse spj command failed", zap.String("test_case", res.TestCase), zap.Error(err))
		res.Result = judgeapi.VerdictSystemError
		res.Error = runErrSPJ
		return
	}

	spjOut := userOutFile + ".spj"
	run, err := c.runner.Run(ctx, sandbox.Config{
		ExePath:          argv[0],
		Args:             argv[1:],
		Env:              []string{"PATH=" + os.Getenv("PATH")},
		WorkDir:          job.SubmissionDir,
		MaxCPUTime:       job.MaxCPUTime * 3,
		MaxRealTime:      job.MaxCPUTime * 9,
		MaxMemory:        job.MaxMemory * 3,
		MaxStack:         128 * 1024 * 1024,
		MaxOutputSize:    1024 * 1024 * 1024,
		MaxProcessNumber: sandbox.Unlimited,
		InputPath:        inFile,
		OutputPath:       spjOut,
		ErrorPath:        spjOut,
		UID:              c.spjUID,
		GID:              c.spjGID,
		SeccompRule:      job.SPJConfig.SeccompRule,
	})
	if err != nil {
		logger.Error(ctx, "spj run failed", zap.String("test_case", res.TestCase), zap.Error(err))
		res.Result = judgeapi.VerdictSystemError
		res.Error = runErrSPJ
		return
	}

	switch {
	case run.Status == sandbox.StatusSuccess && run.ExitCode == spjAccepted:
		// verdict stays ACCEPTED
	case run.Signal == 0 && run.ExitCode == spjWrongAnswer:
		res.Result = judgeapi.VerdictWrongAnswer
	default:
		res.Result = judgeapi.VerdictSystemError
		res.Error = runErrSPJ
	}
}

// buildRunCommand interpolates the language run template. {exe_dir} and
// {max_memory} (in KiB) exist for JVM-style commands.
func buildRunCommand(template, exePath string, maxMemory int64) ([]string, error) {
	command := strings.NewReplacer(
		"{exe_path}", exePath,
		"{exe_dir}", filepath.Dir(exePath),
		"{max_memory}", strconv.FormatInt(maxMemory/1024, 10),
	).Replace(template)
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("run command is empty")
	}
	return argv, nil
}

// compareOutput hashes the trailing-whitespace-stripped user output and
// compares it with the precomputed expected hash.
func compareOutput(path, expectedMD5 string) (string, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	sum := md5.Sum(bytes.TrimRight(content, " \t\n\r\x00"))
	got := hex.EncodeToString(sum[:])
	return got, got == expectedMD5, nil
}
