package controller

import (
	"strconv"
	"time"

	"rivoj/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// WorkerAdminController exposes the worker pool to administrators.
type WorkerAdminController struct {
	registry WorkerRegistry
	drainer  Drainer
}

func NewWorkerAdminController(registry WorkerRegistry, drainer Drainer) *WorkerAdminController {
	return &WorkerAdminController{registry: registry, drainer: drainer}
}

type workerView struct {
	ID             int64   `json:"id"`
	Hostname       string  `json:"hostname"`
	IP             string  `json:"ip"`
	ServiceURL     string  `json:"service_url"`
	JudgerVersion  string  `json:"judger_version"`
	CPUCoreCount   int     `json:"cpu_core"`
	CPUUsagePct    float64 `json:"cpu_usage"`
	MemoryUsagePct float64 `json:"memory_usage"`
	InFlightCount  int     `json:"task_number"`
	Status         string  `json:"status"`
	IsDisabled     bool    `json:"is_disabled"`
	LastHeartbeat  int64   `json:"last_heartbeat"`
}

// List handles GET /workers.
func (w *WorkerAdminController) List(c *gin.Context) {
	workers, err := w.registry.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	now := time.Now()
	views := make([]workerView, 0, len(workers))
	for _, worker := range workers {
		views = append(views, workerView{
			ID:             worker.ID,
			Hostname:       worker.Hostname,
			IP:             worker.IP,
			ServiceURL:     worker.ServiceURL,
			JudgerVersion:  worker.JudgerVersion,
			CPUCoreCount:   worker.CPUCoreCount,
			CPUUsagePct:    worker.CPUUsagePct,
			MemoryUsagePct: worker.MemoryUsagePct,
			InFlightCount:  worker.InFlightCount,
			Status:         worker.Status(now),
			IsDisabled:     worker.Disabled,
			LastHeartbeat:  worker.LastHeartbeat.Unix(),
		})
	}
	response.Success(c, views)
}

type updateWorkerRequest struct {
	IsDisabled bool `json:"is_disabled"`
}

// Update handles PUT /workers/:id.
func (w *WorkerAdminController) Update(c *gin.Context) {
	workerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid worker id")
		return
	}
	var req updateWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	reenabled, err := w.registry.SetDisabled(ctx, workerID, req.IsDisabled)
	if err != nil {
		response.Error(c, err)
		return
	}
	if reenabled {
		w.drainer.DrainOne(ctx)
	}
	response.Success(c, nil)
}
