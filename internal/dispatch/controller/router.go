package controller

import "github.com/gin-gonic/gin"

// RegisterRoutes wires the heartbeat endpoint and the admin API.
func RegisterRoutes(r *gin.Engine, hb *HeartbeatController, admin *WorkerAdminController, spj *SPJController, jwtSecret string) {
	r.POST("/api/judge_server/heartbeat", hb.Heartbeat)

	adminGroup := r.Group("/api/admin", AdminAuth(jwtSecret))
	adminGroup.GET("/workers", admin.List)
	adminGroup.PUT("/workers/:id", admin.Update)
	adminGroup.POST("/problems/:id/spj_compile", spj.Compile)
}
