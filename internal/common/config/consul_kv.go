package config

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/consul/api"
)

// LoadConfigFromConsulKV 从 Consul KV 读取配置。
// value 必须是与 Config 同构的 JSON；这里只做一次性读取，
// 配置变更走进程重启，不做 watch。
func LoadConfigFromConsulKV(consulHost string, consulPort int, key string) (*Config, error) {
	if key == "" {
		return nil, fmt.Errorf("consul kv config key is required")
	}

	client, err := api.NewClient(&api.Config{
		Address: fmt.Sprintf("%s:%d", consulHost, consulPort),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to consul at %s:%d: %w", consulHost, consulPort, err)
	}

	pair, _, err := client.KV().Get(key, nil)
	if err != nil {
		return nil, fmt.Errorf("read consul kv %q: %w", key, err)
	}
	if pair == nil || len(pair.Value) == 0 {
		return nil, fmt.Errorf("consul kv %q not found or empty", key)
	}

	var cfg Config
	if err := json.Unmarshal(pair.Value, &cfg); err != nil {
		return nil, fmt.Errorf("parse consul kv %q as config: %w", key, err)
	}
	return &cfg, nil
}
