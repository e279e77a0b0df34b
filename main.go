package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"liveconf/internal/app"
	"liveconf/internal/config"
	"liveconf/internal/fields"
	"liveconf/internal/model"
	"liveconf/internal/schema"
	"liveconf/internal/storage"
	"liveconf/internal/util"
	"liveconf/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// 优先读取.env文件
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	// 设置Gin运行模式
	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	s, err := loadSchema(cfg.SchemaPath)
	if err != nil {
		log.Fatalf("[FATAL] 加载schema失败: %v", err)
	}

	reg := fields.NewRegistry()
	if err := s.RegisterExtensions(reg); err != nil {
		log.Fatalf("[FATAL] 注册扩展类型失败: %v", err)
	}
	reg.Freeze()

	store, err := storage.NewStore(cfg)
	if err != nil {
		log.Fatalf("[FATAL] 存储初始化失败: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] 关闭存储失败: %v", err)
		}
	}()

	// 不受支持的配置类型在此处直接终止启动
	cs, err := app.NewConfigService(s, reg, store)
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
	cs.OnChange(func(ev model.ChangeEvent) {
		util.SafePrintf("[INFO] 配置已更新: %s %v -> %v", ev.Name, ev.OldValue, ev.NewValue)
	})

	auth, err := app.NewAuthService(cfg, util.NewLoginRateLimiter())
	if err != nil {
		log.Fatalf("[FATAL] 认证服务初始化失败: %v", err)
	}

	srv, err := app.NewServer(cs, auth, app.PolicyFor(cfg.SuperuserOnly))
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	// 创建Gin引擎
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	srv.SetupRoutes(r)

	version.PrintBanner(
		version.Detail{Label: "Backend:", Value: cfg.Backend},
		version.Detail{Label: "Settings:", Value: schemaSource(cfg.SchemaPath, s)},
		version.Detail{Label: "Listen:", Value: cfg.ListenAddr()},
	)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: r,
	}

	go func() {
		log.Printf("[INFO] listening on %s", cfg.ListenAddr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("[WARN] HTTP服务关闭失败: %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[WARN] %v", err)
	}
}

// loadSchema 未配置 LIVECONF_SCHEMA 时使用内置示例
func loadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		log.Printf("[WARN] LIVECONF_SCHEMA 未设置，使用内置示例配置")
		return schema.Sample(), nil
	}
	return schema.Load(path)
}

func schemaSource(path string, s *schema.Schema) string {
	if path == "" {
		path = "builtin sample"
	}
	return path + " (" + strconv.Itoa(s.Len()) + " settings)"
}
