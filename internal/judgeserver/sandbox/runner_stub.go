//go:build !linux

package sandbox

import (
	"context"

	appErr "rivoj/pkg/errors"
)

type stubRunner struct{}

func NewRunner(opts Options) (Runner, error) {
	return &stubRunner{}, nil
}

func (s *stubRunner) Run(ctx context.Context, cfg Config) (Result, error) {
	return Result{}, appErr.New(appErr.JudgeSystemError).WithMessage("sandbox is only supported on linux")
}
