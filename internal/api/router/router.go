package router

import (
	"context"
	"regexp"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/cors"

	"resume-builder-go/internal/api/handler"
	"resume-builder-go/internal/constants"
	"resume-builder-go/internal/logger"
)

// DefaultAllowOrigins 本地开发前端的来源
var DefaultAllowOrigins = []string{
	"http://localhost",
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

var localOrigin = regexp.MustCompile(`^http://(localhost|127\.0\.0\.1)(:\d+)?$`)

// CORS 允许列表中的来源及任意端口的本机来源，携带凭据
func CORS(allowOrigins []string) app.HandlerFunc {
	if len(allowOrigins) == 0 {
		allowOrigins = DefaultAllowOrigins
	}
	return cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowOriginFunc:  localOrigin.MatchString,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", constants.SessionHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// AccessLog 给每个请求挂上带方法与路径的 logger，结束时记录状态码与耗时
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		l := logger.Logger.With().
			Str("method", string(c.Method())).
			Str("path", string(c.Path())).
			Logger()
		ctx = l.WithContext(ctx)

		c.Next(ctx)

		l.Info().
			Int("status", c.Response.StatusCode()).
			Dur("latency", time.Since(start)).
			Msg("请求完成")
	}
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, sessionHandler *handler.SessionHandler) {
	h.GET("/", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, utils.H{"status": "success", "message": "Resume Builder API is running"})
	})
	h.GET("/resume/schema", resumeHandler.HandleSchema)
	h.POST("/sessions", sessionHandler.HandleCreateSession)
	h.DELETE("/logout", sessionHandler.HandleLogout)

	authed := h.Group("/", sessionHandler.RequireSession())
	authed.GET("/user", sessionHandler.HandleUser)
	authed.GET("/session-status-check", sessionHandler.HandleStatusCheck)
	authed.POST("/resume/import/text", resumeHandler.HandleImportText)

	resumes := authed.Group("/resumes")
	resumes.GET("", resumeHandler.HandleList)
	resumes.GET("/:id", resumeHandler.HandleGet)
	resumes.PUT("/:id", resumeHandler.HandleSave)
	resumes.DELETE("/:id", resumeHandler.HandleDelete)
	resumes.GET("/:id/source", resumeHandler.HandleImportSource)
	resumes.POST("/:id/analyses", resumeHandler.HandleAnalyze)
	resumes.GET("/:id/analyses", resumeHandler.HandleListAnalyses)
}
