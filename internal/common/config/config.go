package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Consul    ConsulConfig    `json:"consul"`
	Jaeger    JaegerConfig    `json:"jaeger"`
	Log       LogConfig       `json:"log"`
	Auth      AuthConfig      `json:"auth"`
	Upstream  UpstreamConfig  `json:"upstream"`
	Cache     CacheConfig     `json:"cache"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name     string `json:"name"`      // 服务名称
	Host     string `json:"host"`      // 服务地址
	HTTPPort int    `json:"http_port"` // HTTP端口
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `json:"driver"`   // 数据库驱动
	Host     string `json:"host"`     // 数据库地址
	Port     int    `json:"port"`     // 数据库端口
	User     string `json:"user"`     // 用户名
	Password string `json:"password"` // 密码
	Database string `json:"database"` // 数据库名
	MaxIdle  int    `json:"max_idle"` // 最大空闲连接
	MaxOpen  int    `json:"max_open"` // 最大打开连接
}

// ConsulConfig Consul配置
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig Jaeger配置
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // 日志文件路径
}

// AuthConfig JWT 鉴权配置。
// PublicPaths 中的路由不做鉴权（如 /healthz、/api/login）。
type AuthConfig struct {
	Enabled     bool     `json:"enabled"`
	JWTSecret   string   `json:"jwt_secret"`
	Issuer      string   `json:"issuer"`
	Audience    string   `json:"audience"`
	PublicPaths []string `json:"public_paths"`
}

// UpstreamConfig 网关访问下游服务的配置。
type UpstreamConfig struct {
	OrderServiceURL   string `json:"order_service_url"`
	CatalogServiceURL string `json:"catalog_service_url"`
	UserServiceURL    string `json:"user_service_url"`

	// 单次请求超时（秒），默认 30
	RequestTimeoutSec int `json:"request_timeout_sec"`

	// 网关自身访问下游用的服务账号
	ServiceUsername string `json:"service_username"`
	ServicePassword string `json:"service_password"`
}

// RequestTimeout 返回下游请求超时时间。
func (u UpstreamConfig) RequestTimeout() time.Duration {
	if u.RequestTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(u.RequestTimeoutSec) * time.Second
}

// CacheConfig 网关查询缓存配置
type CacheConfig struct {
	// 条目写入后多久视为过期（秒），默认 30
	StaleAfterSec int `json:"stale_after_sec"`
}

// StaleAfter 返回缓存过期时间。
func (c CacheConfig) StaleAfter() time.Duration {
	if c.StaleAfterSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.StaleAfterSec) * time.Second
}

// RateLimitConfig 网关限流配置（令牌桶）
type RateLimitConfig struct {
	Enabled    bool  `json:"enabled"`
	Capacity   int64 `json:"capacity"`    // 桶容量
	RefillRate int64 `json:"refill_rate"` // 每秒补充令牌数
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig 加载配置
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		globalConfig = &Config{}
		// 如果配置文件不存在，使用默认配置
		if _, err = os.Stat(configPath); os.IsNotExist(err) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
			globalConfig = defaultConfig()
			err = nil
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file: %w", readErr)
			return
		}

		if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
			return
		}
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// defaultConfig 默认配置（开发环境）
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "default-service",
			Host:     "0.0.0.0",
			HTTPPort: 8080,
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "dishboard",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "http://localhost:14268/api/traces",
			Sampler:  1.0,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/app.log",
		},
		Auth: AuthConfig{
			Enabled:   true,
			JWTSecret: "dev-secret",
			Issuer:    "dishboard",
			Audience:  "dishboard",
			PublicPaths: []string{
				"/healthz",
				"/api/login",
			},
		},
		Upstream: UpstreamConfig{
			OrderServiceURL:   "http://localhost:8081",
			CatalogServiceURL: "http://localhost:8082",
			UserServiceURL:    "http://localhost:8083",
			RequestTimeoutSec: 30,
			ServiceUsername:   "dashboard-gateway",
			ServicePassword:   "dev-password",
		},
		Cache: CacheConfig{
			StaleAfterSec: 30,
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			Capacity:   200,
			RefillRate: 100,
		},
	}
}
