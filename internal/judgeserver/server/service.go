// Package server exposes a worker's judge, compile_spj and ping operations
// over HTTP and reports its health to the dispatch service.
package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rivoj/internal/judgeapi"
	"rivoj/internal/judgeserver/compiler"
	"rivoj/internal/judgeserver/judgeclient"
	appErr "rivoj/pkg/errors"
	"rivoj/pkg/utils/logger"
)

const fallbackExeName = "solution"

// TestDataProvider resolves a test case set id to a local directory.
type TestDataProvider interface {
	Get(ctx context.Context, testCaseID string) (string, error)
}

// ServiceConfig locates the worker's on-disk workspaces.
type ServiceConfig struct {
	WorkspaceDir string
	// DebugMode keeps submission scratch dirs around for inspection.
	DebugMode bool
}

// Service orchestrates one judging attempt: scratch dir, compile, sandboxed
// runs, cleanup.
type Service struct {
	cfg      ServiceConfig
	compiler *compiler.Compiler
	spjStore *compiler.SPJStore
	client   *judgeclient.Client
	testData TestDataProvider
}

// NewService validates dependencies and creates the service.
func NewService(cfg ServiceConfig, comp *compiler.Compiler, spjStore *compiler.SPJStore, client *judgeclient.Client, testData TestDataProvider) (*Service, error) {
	if cfg.WorkspaceDir == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("workspace dir is required")
	}
	if comp == nil || spjStore == nil || client == nil || testData == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("service dependencies are incomplete")
	}
	return &Service{cfg: cfg, compiler: comp, spjStore: spjStore, client: client, testData: testData}, nil
}

// Judge runs one submission against its test case set and returns the
// per-test-case results.
func (s *Service) Judge(ctx context.Context, req judgeapi.JudgeRequest) ([]judgeapi.TestCaseResult, error) {
	if err := validateJudgeRequest(req); err != nil {
		return nil, err
	}

	testCaseDir, err := s.testData.Get(ctx, req.TestCaseID)
	if err != nil {
		return nil, err
	}

	spjExePath := ""
	if req.SPJVersion != "" && req.SPJConfig != nil {
		spjExePath, err = s.resolveSPJ(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	submissionID := strings.ReplaceAll(uuid.NewString(), "-", "")
	submissionDir := filepath.Join(s.cfg.WorkspaceDir, submissionID)
	if err := os.MkdirAll(submissionDir, 0711); err != nil {
		return nil, appErr.Wrapf(err, appErr.JudgeSystemError, "create submission dir failed")
	}
	defer func() {
		if s.cfg.DebugMode {
			return
		}
		if err := os.RemoveAll(submissionDir); err != nil {
			logger.Warn(ctx, "cleanup submission dir failed",
				zap.String("dir", submissionDir), zap.Error(err))
		}
	}()

	exePath, err := s.prepareExecutable(ctx, req, submissionDir)
	if err != nil {
		return nil, err
	}

	return s.client.Run(ctx, judgeclient.Job{
		RunConfig:     req.LanguageConfig.Run,
		ExePath:       exePath,
		MaxCPUTime:    req.MaxCPUTime,
		MaxMemory:     req.MaxMemory,
		TestCaseDir:   testCaseDir,
		SubmissionDir: submissionDir,
		SPJExePath:    spjExePath,
		SPJConfig:     req.SPJConfig,
		Output:        req.Output,
	})
}

// CompileSPJ builds the versioned special judge binary ahead of judging.
func (s *Service) CompileSPJ(ctx context.Context, req judgeapi.CompileSPJRequest) error {
	if req.SPJVersion == "" {
		return appErr.ValidationError("spj_version", "required")
	}
	if req.Src == "" {
		return appErr.ValidationError("src", "required")
	}
	if req.SPJCompileConfig == nil {
		return appErr.ValidationError("spj_compile_config", "required")
	}
	return s.spjStore.Compile(ctx, req.Src, req.SPJVersion, *req.SPJCompileConfig)
}

// resolveSPJ finds the cached spj binary, compiling it from the shipped
// source on first sight of a version.
func (s *Service) resolveSPJ(ctx context.Context, req judgeapi.JudgeRequest) (string, error) {
	path, err := s.spjStore.ExePath(req.SPJVersion, *req.SPJConfig)
	if err == nil {
		return path, nil
	}
	if appErr.GetCode(err) != appErr.SPJNotCompiled {
		return "", err
	}
	if req.SPJCompileConfig == nil || req.SPJSrc == "" {
		return "", err
	}
	logger.Warn(ctx, "spj binary missing, recompiling", zap.String("spj_version", req.SPJVersion))
	if err := s.spjStore.Compile(ctx, req.SPJSrc, req.SPJVersion, *req.SPJCompileConfig); err != nil {
		return "", err
	}
	return s.spjStore.ExePath(req.SPJVersion, *req.SPJConfig)
}

// prepareExecutable writes the source into the scratch dir and compiles it
// when the language has a compile step; otherwise the source itself is the
// runnable artifact.
func (s *Service) prepareExecutable(ctx context.Context, req judgeapi.JudgeRequest, submissionDir string) (string, error) {
	compileCfg := req.LanguageConfig.Compile
	if compileCfg != nil {
		srcPath := filepath.Join(submissionDir, compileCfg.SrcName)
		if err := os.WriteFile(srcPath, []byte(req.Src), 0644); err != nil {
			return "", appErr.Wrapf(err, appErr.JudgeSystemError, "write source failed")
		}
		return s.compiler.Compile(ctx, *compileCfg, srcPath, submissionDir)
	}

	exeName := req.LanguageConfig.Run.ExeName
	if exeName == "" {
		exeName = fallbackExeName
	}
	exePath := filepath.Join(submissionDir, exeName)
	if err := os.WriteFile(exePath, []byte(req.Src), 0644); err != nil {
		return "", appErr.Wrapf(err, appErr.JudgeSystemError, "write source failed")
	}
	return exePath, nil
}

func validateJudgeRequest(req judgeapi.JudgeRequest) error {
	if req.Src == "" {
		return appErr.ValidationError("src", "required")
	}
	if req.TestCaseID == "" {
		return appErr.ValidationError("test_case_id", "required")
	}
	if req.MaxCPUTime <= 0 {
		return appErr.ValidationError("max_cpu_time", "must be positive")
	}
	if req.MaxMemory <= 0 {
		return appErr.ValidationError("max_memory", "must be positive")
	}
	if req.LanguageConfig.Run.Command == "" {
		return appErr.ValidationError("language_config", "run command is required")
	}
	return nil
}
