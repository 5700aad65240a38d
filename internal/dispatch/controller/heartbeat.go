package controller

import (
	"context"
	"crypto/subtle"

	"rivoj/internal/dispatch/pool"
	"rivoj/internal/dispatch/rpc"
	"rivoj/internal/judgeapi"
	appErr "rivoj/pkg/errors"
	"rivoj/pkg/utils/logger"
	"rivoj/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WorkerRegistry is the pool surface the heartbeat and admin endpoints use.
type WorkerRegistry interface {
	RegisterOrRefresh(ctx context.Context, info pool.HeartbeatInfo) (bool, error)
	SetDisabled(ctx context.Context, workerID int64, disabled bool) (bool, error)
	List(ctx context.Context) ([]pool.Worker, error)
}

// Drainer retries one parked job after capacity may have appeared.
type Drainer interface {
	DrainOne(ctx context.Context)
}

// TokenProvider yields the hashed shared secret heartbeats must present.
type TokenProvider interface {
	HashedJudgeToken(ctx context.Context) (string, error)
}

// HeartbeatController accepts periodic worker self-reports.
type HeartbeatController struct {
	registry WorkerRegistry
	token    TokenProvider
	drainer  Drainer
}

func NewHeartbeatController(registry WorkerRegistry, token TokenProvider, drainer Drainer) *HeartbeatController {
	return &HeartbeatController{registry: registry, token: token, drainer: drainer}
}

// Heartbeat handles POST /heartbeat.
func (h *HeartbeatController) Heartbeat(c *gin.Context) {
	ctx := c.Request.Context()
	expected, err := h.token.HashedJudgeToken(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	presented := c.GetHeader(rpc.TokenHeader)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
		response.ErrorWithCode(c, appErr.HeartbeatRejected, "invalid judge server token")
		return
	}

	var req judgeapi.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid heartbeat payload")
		return
	}

	created, err := h.registry.RegisterOrRefresh(ctx, pool.HeartbeatInfo{
		Hostname:       req.Hostname,
		IP:             c.ClientIP(),
		ServiceURL:     req.ServiceURL,
		JudgerVersion:  req.JudgerVersion,
		CPUCoreCount:   req.CPUCore,
		CPUUsagePct:    req.CPUUsagePct,
		MemoryUsagePct: req.MemoryUsagePct,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		// A newly joined worker may unblock the backlog.
		logger.Info(ctx, "new judge worker registered", zap.String("hostname", req.Hostname))
		h.drainer.DrainOne(ctx)
	}
	response.Success(c, nil)
}
