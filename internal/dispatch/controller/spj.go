package controller

import (
	"context"
	"strconv"

	"rivoj/internal/dispatch/model"
	appErr "rivoj/pkg/errors"
	"rivoj/pkg/utils/logger"
	"rivoj/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProblemSource loads problem rows and records SPJ compile outcomes.
type ProblemSource interface {
	Get(ctx context.Context, id int64) (*model.Problem, error)
	SetSPJCompileOK(ctx context.Context, id int64, ok bool) error
}

// SPJCompileRunner compiles a problem's special judge on some worker.
type SPJCompileRunner interface {
	Compile(ctx context.Context, problem *model.Problem) error
}

// SPJController lets administrators compile a problem's special judge ahead
// of judging, so the versioned binary is cached before submissions arrive.
type SPJController struct {
	problems ProblemSource
	compiler SPJCompileRunner
}

func NewSPJController(problems ProblemSource, compiler SPJCompileRunner) *SPJController {
	return &SPJController{problems: problems, compiler: compiler}
}

// Compile handles POST /problems/:id/spj_compile.
func (s *SPJController) Compile(c *gin.Context) {
	problemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid problem id")
		return
	}

	ctx := c.Request.Context()
	problem, err := s.problems.Get(ctx, problemID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := s.compiler.Compile(ctx, problem); err != nil {
		if markErr := s.problems.SetSPJCompileOK(ctx, problemID, false); markErr != nil {
			logger.Error(ctx, "record spj compile failure failed",
				zap.Int64("problem_id", problemID), zap.Error(markErr))
		}
		response.Error(c, appErr.Wrap(err, appErr.SPJCompileError))
		return
	}
	if err := s.problems.SetSPJCompileOK(ctx, problemID, true); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
