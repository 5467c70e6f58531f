package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/DishBoard/DishBoard/internal/common/config"
	"github.com/DishBoard/DishBoard/internal/common/discovery"
	"github.com/DishBoard/DishBoard/internal/common/httpserver"
	"github.com/DishBoard/DishBoard/internal/common/logger"
	"github.com/DishBoard/DishBoard/internal/common/middleware"
	"github.com/DishBoard/DishBoard/internal/common/tracing"
	"github.com/DishBoard/DishBoard/internal/dashboard"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	configPath = flag.String("config", "configs/dashboard-gateway.json", "配置文件路径")

	// 从 Consul KV 读取配置（优先于 -config）
	consulKVKey  = flag.String("consul-config-key", "", "Consul KV 配置键")
	consulKVHost = flag.String("consul-host", "localhost", "Consul 地址")
	consulKVPort = flag.Int("consul-port", 8500, "Consul 端口")
)

func main() {
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *consulKVKey != "" {
		cfg, err = config.LoadConfigFromConsulKV(*consulKVHost, *consulKVPort, *consulKVKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
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

	// 下游地址：配置优先，缺省时从 Consul 解析
	orderURL := resolveUpstream(cfg, log, cfg.Upstream.OrderServiceURL, "order-service")
	catalogURL := resolveUpstream(cfg, log, cfg.Upstream.CatalogServiceURL, "catalog-service")
	userURL := resolveUpstream(cfg, log, cfg.Upstream.UserServiceURL, "user-service")

	// 进程级服务令牌：网关用服务账号访问下游
	tokens := dashboard.NewTokenSource(dashboard.NewServiceTokenFetch(
		userURL,
		cfg.Upstream.RequestTimeout(),
		cfg.Upstream.ServiceUsername,
		cfg.Upstream.ServicePassword,
	))

	timeout := cfg.Upstream.RequestTimeout()
	svc := dashboard.NewService(
		dashboard.NewClient("order-service", orderURL, timeout, tokens),
		dashboard.NewClient("catalog-service", catalogURL, timeout, tokens),
		dashboard.NewClient("user-service", userURL, timeout, tokens),
		dashboard.NewQueryCache(cfg.Cache.StaleAfter()),
		tokens,
		log,
	)

	// 登录接口按客户端 IP 限流
	loginLimiter := middleware.NewPerClientLimiter(func() middleware.RateLimiter {
		return middleware.NewSlidingWindow(time.Minute, 10)
	})
	httpSrv := dashboard.NewHTTPServer(svc, httpserver.PerClientRateLimitMiddleware(loginLimiter))

	extra := []gin.HandlerFunc{
		cors.New(cors.Config{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:           12 * time.Hour,
			AllowCredentials: false,
		}),
		httpserver.JWTAuthMiddleware(cfg.Auth, log),
	}
	if cfg.RateLimit.Enabled {
		bucket := middleware.NewTokenBucket(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
		extra = append(extra, httpserver.RateLimitMiddleware(bucket))
	}

	if err := httpserver.RunHTTPServer(cfg, log, func(e *gin.Engine) error {
		httpSrv.RegisterRoutes(e)
		return nil
	}, httpserver.WithMiddlewares(extra...)); err != nil {
		log.Fatalf("dashboard-gateway exited with error: %v", err)
	}
}

// resolveUpstream 配置了固定地址就用固定地址，否则尝试 Consul 服务发现。
func resolveUpstream(cfg *config.Config, log logger.Logger, fixed, service string) string {
	if fixed != "" {
		return fixed
	}
	client, err := discovery.NewConsulClient(cfg.Consul.Host, cfg.Consul.Port)
	if err != nil {
		log.Fatalf("no fixed url for %s and consul unavailable: %v", service, err)
	}
	addr, err := discovery.ResolveService(client, service)
	if err != nil {
		log.Fatalf("failed to resolve %s from consul: %v", service, err)
	}
	log.Infof("resolved %s -> %s", service, addr)
	return addr
}
