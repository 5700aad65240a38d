package rpc

import (
	"context"
	"strings"

	"rivoj/internal/dispatch/model"
	"rivoj/internal/dispatch/options"
	"rivoj/internal/dispatch/pool"
	"rivoj/internal/judgeapi"
	appErr "rivoj/pkg/errors"
	"rivoj/pkg/utils/logger"

	"go.uber.org/zap"
)

// SPJCompiler compiles a problem's special judge on one worker ahead of
// judging, so every worker hitting the versioned binary cache later can
// reuse it.
type SPJCompiler struct {
	pool    pool.Selector
	client  *Client
	options *options.Service
}

func NewSPJCompiler(p pool.Selector, client *Client, opts *options.Service) *SPJCompiler {
	return &SPJCompiler{pool: p, client: client, options: opts}
}

// Compile picks a worker, compiles the problem's SPJ source on it and
// releases the slot.
func (s *SPJCompiler) Compile(ctx context.Context, problem *model.Problem) error {
	if !problem.SPJ || problem.SPJCode == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("problem has no special judge source")
	}
	lang, err := s.options.Language(ctx, problem.SPJLanguage)
	if err != nil {
		return err
	}
	if lang.SPJCompile == nil {
		return appErr.New(appErr.LanguageNotSupported).
			WithMessagef("language %s cannot compile a special judge", problem.SPJLanguage)
	}

	worker, err := s.pool.Select(ctx)
	if err != nil {
		return err
	}
	if worker == nil {
		return appErr.New(appErr.NoWorkerAvailable)
	}
	defer func() {
		if err := s.pool.Release(ctx, worker.ID); err != nil {
			logger.Error(ctx, "release worker after spj compile failed",
				zap.Int64("worker_id", worker.ID), zap.Error(err))
		}
	}()

	req := judgeCompileSPJRequest(problem, lang)
	if err := s.client.CompileSPJ(ctx, worker.ServiceURL, req); err != nil {
		return appErr.Wrap(err, appErr.SPJCompileError)
	}
	return nil
}

func judgeCompileSPJRequest(problem *model.Problem, lang options.Language) judgeapi.CompileSPJRequest {
	cfg := *lang.SPJCompile
	cfg.SrcName = strings.ReplaceAll(cfg.SrcName, "{spj_version}", problem.SPJVersion)
	cfg.ExeName = strings.ReplaceAll(cfg.ExeName, "{spj_version}", problem.SPJVersion)
	return judgeapi.CompileSPJRequest{
		Src:              problem.SPJCode,
		SPJVersion:       problem.SPJVersion,
		SPJCompileConfig: &cfg,
	}
}
