// Package compiler turns submitted source text into executables through the
// sandbox. The compile step runs resource-limited but without a syscall
// policy: the toolchain is trusted, only its product is later confined.
package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"rivoj/internal/judgeapi"
	"rivoj/internal/judgeserver/sandbox"
	appErr "rivoj/pkg/errors"
)

const compilerOutName = "compiler.out"

// Compiler runs compile commands inside the sandbox as a dedicated
// low-privilege user.
type Compiler struct {
	runner sandbox.Runner
	uid    int
	gid    int
}

// New creates a compiler that executes as uid/gid.
func New(runner sandbox.Runner, uid, gid int) *Compiler {
	return &Compiler{runner: runner, uid: uid, gid: gid}
}

// Compile builds srcPath according to cfg and returns the path of the
// produced executable inside outputDir. A failed compile surfaces the
// captured compiler output as a CompileError.
func (c *Compiler) Compile(ctx context.Context, cfg judgeapi.CompileConfig, srcPath, outputDir string) (string, error) {
	if cfg.CompileCommand == "" {
		return "", appErr.ValidationError("compile_command", "required")
	}
	exePath := filepath.Join(outputDir, cfg.ExeName)
	command := strings.NewReplacer(
		"{src_path}", srcPath,
		"{exe_dir}", outputDir,
		"{exe_path}", exePath,
	).Replace(cfg.CompileCommand)

	argv, err := shlex.Split(command)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.InvalidParams, "parse compile command failed")
	}
	if len(argv) == 0 {
		return "", appErr.New(appErr.InvalidParams).WithMessage("compile command is empty")
	}

	compilerOut := filepath.Join(outputDir, compilerOutName)
	res, err := c.runner.Run(ctx, sandbox.Config{
		ExePath:          argv[0],
		Args:             argv[1:],
		Env:              []string{"PATH=" + os.Getenv("PATH")},
		WorkDir:          outputDir,
		MaxCPUTime:       cfg.MaxCPUTime,
		MaxRealTime:      cfg.MaxRealTime,
		MaxMemory:        cfg.MaxMemory,
		MaxStack:         128 * 1024 * 1024,
		MaxOutputSize:    1024 * 1024,
		MaxProcessNumber: sandbox.Unlimited,
		InputPath:        srcPath,
		OutputPath:       compilerOut,
		ErrorPath:        compilerOut,
		UID:              c.uid,
		GID:              c.gid,
	})
	if err != nil {
		return "", err
	}

	if res.Status != sandbox.StatusSuccess {
		text := readTrimmed(compilerOut)
		_ = os.Remove(compilerOut)
		if text != "" {
			return "", appErr.New(appErr.CompileError).WithMessage(text)
		}
		return "", appErr.Newf(appErr.CompileError,
			"compiler exited abnormally: status=%d exit_code=%d signal=%d",
			res.Status, res.ExitCode, res.Signal)
	}

	_ = os.Remove(compilerOut)
	return exePath, nil
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
