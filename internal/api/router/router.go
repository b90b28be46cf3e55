package router

import (
	"ai-hiring-go/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app/server"
)

// Handlers 路由用到的全部处理器
type Handlers struct {
	Invites    *handler.InviteHandler
	Apply      *handler.ApplyHandler
	Jobs       *handler.JobHandler
	Candidates *handler.CandidateHandler
	Interview  *handler.InterviewHandler
}

// RegisterRoutes 注册 API 路由。招聘方接口需要 X-API-Key，申请页和面试页使用各自的令牌
func RegisterRoutes(h *server.Hertz, hs Handlers, adminAPIKey string) {
	h.Use(handler.RequestID(), handler.AccessLog())
	h.GET("/health", handler.Health)

	admin := handler.AdminAuth(adminAPIKey)
	api := h.Group("/api")

	invites := api.Group("/invites", admin)
	invites.POST("", hs.Invites.Issue)
	invites.POST("/bulk", hs.Invites.BulkIssue)
	invites.GET("", hs.Invites.List)
	invites.POST("/consume", hs.Invites.Consume)

	apply := api.Group("/apply")
	apply.GET("/validate", hs.Apply.Validate)
	apply.GET("/jobs", hs.Apply.Jobs)
	apply.POST("/submit", hs.Apply.Submit)

	jobs := api.Group("/jobs", admin)
	jobs.GET("", hs.Jobs.List)
	jobs.GET("/:id", hs.Jobs.Get)
	jobs.POST("", hs.Jobs.Create)
	jobs.PUT("/:id", hs.Jobs.Update)
	jobs.DELETE("/:id", hs.Jobs.Delete)

	candidates := api.Group("/candidates", admin)
	candidates.GET("", hs.Candidates.List)
	candidates.GET("/:id", hs.Candidates.Get)
	candidates.PUT("/:id/status", hs.Candidates.UpdateStatus)
	candidates.POST("/:id/evaluation/requeue", hs.Candidates.Requeue)

	iv := api.Group("/interview")
	iv.GET("/validate/:token", hs.Interview.Validate)
	iv.POST("/start", admin, hs.Interview.Start)
	iv.POST("/question", hs.Interview.Question)
	iv.POST("/answer", hs.Interview.Answer)
	iv.POST("/complete", hs.Interview.Complete)
	iv.POST("/upload-media", hs.Interview.UploadMedia)
	iv.POST("/:sessionId/grade", admin, hs.Interview.Regrade)
}
