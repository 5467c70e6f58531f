package tracing

import (
	"fmt"
	"io"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// InitTracer 初始化 Jaeger tracer 并设为全局。
// endpoint 以 http(s):// 开头时走 collector 直连，否则按 agent host:port 处理。
// sampler 为采样率：0 或 1 用常量采样，其余按概率采样。
func InitTracer(serviceName, endpoint string, sampler float64) (opentracing.Tracer, io.Closer, error) {
	samplerType := jaeger.SamplerTypeConst
	if sampler > 0 && sampler < 1 {
		samplerType = jaeger.SamplerTypeProbabilistic
	}

	reporter := &jaegercfg.ReporterConfig{LogSpans: true}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		reporter.CollectorEndpoint = endpoint
	} else {
		reporter.LocalAgentHostPort = endpoint
	}

	cfg := &jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  samplerType,
			Param: sampler,
		},
		Reporter: reporter,
	}

	tracer, closer, err := cfg.NewTracer(jaegercfg.Logger(jaeger.StdLogger))
	if err != nil {
		return nil, nil, fmt.Errorf("init jaeger tracer for %s: %w", serviceName, err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}
