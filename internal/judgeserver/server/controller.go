package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rivoj/internal/judgeapi"
	"rivoj/internal/judgeserver/sysinfo"
	appErr "rivoj/pkg/errors"
	"rivoj/pkg/utils/logger"
)

// Controller is the worker HTTP face. All three operations are POSTs
// authenticated by the hashed shared secret, and every reply uses the
// {err, data} envelope regardless of outcome.
type Controller struct {
	svc         *Service
	collector   *sysinfo.Collector
	hashedToken string
}

// NewController creates the controller. hashedToken is the sha256 hex digest
// of the shared judge secret.
func NewController(svc *Service, collector *sysinfo.Collector, hashedToken string) *Controller {
	return &Controller{svc: svc, collector: collector, hashedToken: hashedToken}
}

// RegisterRoutes wires the worker operations onto the router.
func (c *Controller) RegisterRoutes(r gin.IRouter) {
	r.POST("/ping", c.verifyToken, c.ping)
	r.POST("/judge", c.verifyToken, c.judge)
	r.POST("/compile_spj", c.verifyToken, c.compileSPJ)
}

func (c *Controller) verifyToken(ctx *gin.Context) {
	token := ctx.GetHeader(judgeapi.TokenHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(c.hashedToken)) != 1 {
		writeError(ctx, judgeapi.ErrKindTokenError, "invalid token")
		ctx.Abort()
		return
	}
	ctx.Next()
}

type pingResponse struct {
	judgeapi.ServerInfo
	Action string `json:"action"`
}

func (c *Controller) ping(ctx *gin.Context) {
	writeData(ctx, pingResponse{ServerInfo: c.collector.Snapshot(), Action: "pong"})
}

func (c *Controller) judge(ctx *gin.Context) {
	var req judgeapi.JudgeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeError(ctx, judgeapi.ErrKindJudgeClientError, "malformed judge request")
		return
	}
	results, err := c.svc.Judge(ctx.Request.Context(), req)
	if err != nil {
		kind, detail := classifyError(err)
		logger.Warn(ctx.Request.Context(), "judge request failed",
			zap.String("test_case_id", req.TestCaseID),
			zap.String("kind", kind), zap.Error(err))
		writeError(ctx, kind, detail)
		return
	}
	writeData(ctx, results)
}

func (c *Controller) compileSPJ(ctx *gin.Context) {
	var req judgeapi.CompileSPJRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeError(ctx, judgeapi.ErrKindJudgeClientError, "malformed compile_spj request")
		return
	}
	if err := c.svc.CompileSPJ(ctx.Request.Context(), req); err != nil {
		kind, detail := classifyError(err)
		logger.Warn(ctx.Request.Context(), "spj compile failed",
			zap.String("spj_version", req.SPJVersion),
			zap.String("kind", kind), zap.Error(err))
		writeError(ctx, kind, detail)
		return
	}
	writeData(ctx, "success")
}

func writeData(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, gin.H{"err": nil, "data": data})
}

func writeError(ctx *gin.Context, kind, detail string) {
	ctx.JSON(http.StatusOK, gin.H{"err": kind, "data": detail})
}

func classifyError(err error) (kind, detail string) {
	detail = err.Error()
	if typed, ok := err.(*appErr.Error); ok {
		detail = typed.Message
	}
	switch appErr.GetCode(err) {
	case appErr.CompileError:
		return judgeapi.ErrKindCompileError, detail
	case appErr.SPJCompileError:
		return judgeapi.ErrKindSPJCompileError, detail
	case appErr.JudgeSystemError, appErr.InternalServerError, appErr.CacheError:
		return judgeapi.ErrKindServerError, detail
	default:
		return judgeapi.ErrKindJudgeClientError, detail
	}
}
