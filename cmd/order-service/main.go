package main

import (
	"flag"
	"fmt"

	"github.com/DishBoard/DishBoard/internal/common/config"
	"github.com/DishBoard/DishBoard/internal/common/db"
	"github.com/DishBoard/DishBoard/internal/common/httpserver"
	"github.com/DishBoard/DishBoard/internal/common/logger"
	"github.com/DishBoard/DishBoard/internal/common/tracing"
	"github.com/DishBoard/DishBoard/internal/order"
	"github.com/gin-gonic/gin"
)

var (
	configPath = flag.String("config", "configs/order-service.json", "配置文件路径")
)

func main() {
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
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

	// 初始化数据库
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
	if err := gormDB.AutoMigrate(&order.Order{}, &order.Item{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	svc := order.NewService(order.NewRepo(gormDB))
	httpSrv := order.NewHTTPServer(svc)

	if err := httpserver.RunHTTPServer(cfg, log, func(e *gin.Engine) error {
		httpSrv.RegisterRoutes(e)
		return nil
	}, httpserver.WithMiddlewares(
		httpserver.JWTAuthMiddleware(cfg.Auth, log),
	)); err != nil {
		log.Fatalf("order-service exited with error: %v", err)
	}
}
