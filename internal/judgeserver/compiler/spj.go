package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"rivoj/internal/judgeapi"
	appErr "rivoj/pkg/errors"
)

const versionPlaceholder = "{spj_version}"

// SPJStore compiles special judge binaries and keeps them on disk keyed by
// version, so repeated submissions against the same special judge skip
// recompilation.
type SPJStore struct {
	compiler *Compiler
	srcDir   string
	exeDir   string
}

// NewSPJStore creates a store writing sources to srcDir and binaries to exeDir.
func NewSPJStore(compiler *Compiler, srcDir, exeDir string) *SPJStore {
	return &SPJStore{compiler: compiler, srcDir: srcDir, exeDir: exeDir}
}

// ExePath resolves the cached binary for a version. SPJNotCompiled tells the
// caller to trigger compilation first.
func (s *SPJStore) ExePath(version string, cfg judgeapi.SPJConfig) (string, error) {
	if version == "" {
		return "", appErr.ValidationError("spj_version", "required")
	}
	path := filepath.Join(s.exeDir, strings.ReplaceAll(cfg.ExeName, versionPlaceholder, version))
	if _, err := os.Stat(path); err != nil {
		return "", appErr.New(appErr.SPJNotCompiled).WithDetail("spj_version", version)
	}
	return path, nil
}

// Compile builds the versioned special judge binary. It is a no-op when the
// binary already exists.
func (s *SPJStore) Compile(ctx context.Context, src, version string, cfg judgeapi.CompileConfig) error {
	if version == "" {
		return appErr.ValidationError("spj_version", "required")
	}
	cfg.SrcName = strings.ReplaceAll(cfg.SrcName, versionPlaceholder, version)
	cfg.ExeName = strings.ReplaceAll(cfg.ExeName, versionPlaceholder, version)

	exePath := filepath.Join(s.exeDir, cfg.ExeName)
	if _, err := os.Stat(exePath); err == nil {
		return nil
	}

	srcPath := filepath.Join(s.srcDir, cfg.SrcName)
	if _, err := os.Stat(srcPath); err != nil {
		if src == "" {
			return appErr.New(appErr.SPJCompileError).WithMessage("spj source is missing")
		}
		if err := os.MkdirAll(s.srcDir, 0755); err != nil {
			return appErr.Wrapf(err, appErr.SPJCompileError, "create spj source dir failed")
		}
		if err := os.WriteFile(srcPath, []byte(src), 0644); err != nil {
			return appErr.Wrapf(err, appErr.SPJCompileError, "write spj source failed")
		}
	}

	if _, err := s.compiler.Compile(ctx, cfg, srcPath, s.exeDir); err != nil {
		if typed, ok := err.(*appErr.Error); ok && typed.Code == appErr.CompileError {
			return appErr.New(appErr.SPJCompileError).WithMessage(typed.Message)
		}
		return err
	}
	return nil
}
