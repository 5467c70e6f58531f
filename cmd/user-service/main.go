package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/DishBoard/DishBoard/internal/common/config"
	"github.com/DishBoard/DishBoard/internal/common/db"
	"github.com/DishBoard/DishBoard/internal/common/httpserver"
	"github.com/DishBoard/DishBoard/internal/common/logger"
	"github.com/DishBoard/DishBoard/internal/common/middleware"
	"github.com/DishBoard/DishBoard/internal/common/tracing"
	"github.com/DishBoard/DishBoard/internal/user"
	"github.com/gin-gonic/gin"
)

var (
	configPath = flag.String("config", "configs/user-service.json", "配置文件路径")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	gormDB, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := gormDB.AutoMigrate(&user.User{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// 登录接口按客户端 IP 限流，防口令爆破
	loginLimiter := middleware.NewPerClientLimiter(func() middleware.RateLimiter {
		return middleware.NewSlidingWindow(time.Minute, 10)
	})
	httpSrv := user.NewHTTPServer(gormDB, cfg.Auth, httpserver.PerClientRateLimitMiddleware(loginLimiter))

	if err := httpserver.RunHTTPServer(cfg, log, func(e *gin.Engine) error {
		httpSrv.RegisterRoutes(e)
		return nil
	}, httpserver.WithMiddlewares(
		httpserver.JWTAuthMiddleware(cfg.Auth, log),
	)); err != nil {
		log.Fatalf("user-service exited with error: %v", err)
	}
}
