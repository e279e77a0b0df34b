package app

import (
	"context"
	"html/template"
	"net/http"

	"liveconf/internal/util"

	"github.com/gin-gonic/gin"
)

// Server 管理后台HTTP服务
type Server struct {
	configService *ConfigService
	auth          *AuthService
	admin         ConfigAdmin
	templates     *template.Template
}

// NewServer 创建管理后台
func NewServer(cs *ConfigService, auth *AuthService, policy Policy) (*Server, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	return &Server{
		configService: cs,
		auth:          auth,
		admin:         ConfigAdmin{Policy: policy},
		templates:     tmpl,
	}, nil
}

// SetupRoutes 注册路由
func (s *Server) SetupRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(s.templates)

	admin := r.Group("/admin")
	admin.Use(ZstdMiddleware(), s.auth.LoadUser())
	{
		// 登录相关（公开访问）
		admin.GET("/login", s.auth.HandleLoginPage)
		admin.POST("/login", s.auth.HandleLogin)
		admin.POST("/logout", s.auth.HandleLogout)

		pages := admin.Group("/liveconf/config")
		pages.Use(s.auth.RequireLoginPage())
		{
			pages.GET("/", s.HandleConfigView)
			pages.POST("/", s.HandleConfigView)
			pages.GET("/add/", s.HandleConfigView)
			pages.POST("/add/", s.HandleConfigView)
		}

		api := admin.Group("/api/config")
		api.Use(s.auth.RequireLoginAPI())
		{
			api.GET("", s.HandleListConfig)
			api.POST("", s.HandleUpdateConfig)
			api.GET("/:name", s.HandleGetConfig)
			api.POST("/:name/reset", s.HandleResetConfig)
		}
	}

	// 默认首页重定向
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, ChangeListPath)
	})
	r.GET("/admin", func(c *gin.Context) {
		c.Redirect(http.StatusFound, ChangeListPath)
	})
}

// Shutdown 关闭后台协程；存储由调用方关闭
func (s *Server) Shutdown(ctx context.Context) error {
	util.SafePrint("🛑 正在关闭Server，等待后台任务完成...")

	done := make(chan struct{})
	go func() {
		s.auth.Close()
		close(done)
	}()

	select {
	case <-done:
		util.SafePrint("✅ Server优雅关闭完成")
		return nil
	case <-ctx.Done():
		util.SafePrint("⚠️  Server关闭超时，部分后台任务可能未完成")
		return ctx.Err()
	}
}
