package server

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes registers every route on r.
func (s *Server) SetupRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		sessions := api.Group("/sessions")
		{
			sessions.GET("", s.handleListSessions)
			sessions.POST("", s.handleCreateSession)
			sessions.GET("/:id", s.handleGetSession)
			sessions.DELETE("/:id", s.handleDeleteSession)
			sessions.GET("/:id/stream", s.handleStream)
			sessions.POST("/:id/pause", s.handlePause)
			sessions.POST("/:id/resume", s.handleResume)
			sessions.POST("/:id/restart", s.handleRestart)
			sessions.PATCH("/:id/props", s.handleUpdateProps)
		}

		if s.store != nil {
			runs := api.Group("/runs")
			{
				runs.GET("", s.handleListRuns)
				runs.GET("/:id", s.handleGetRun)
				runs.GET("/:id/events", s.handleGetRunEvents)
			}
		}

		api.GET("/health", s.handleHealth)
	}

	r.GET("/metrics", gin.WrapH(s.tel.Metrics.Handler()))
}
