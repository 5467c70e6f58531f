package dashboard

import (
	"errors"
	"fmt"
)

// 失败分类（对应界面上的一条失败提示，均不自动重试）：
// - ValidationError 在发出任何网络请求之前就被拦截
// - AuthorizationError 还会触发令牌缓存清除
// - ConflictError 表示订单状态已被并发修改，目标状态不再可达
// - NetworkError 覆盖超时、连接失败、下游 5xx 和熔断

// ErrNotFound 下游返回 404。
var ErrNotFound = errors.New("not found")

// ValidationError 入参在本地校验阶段被拒绝，请求未发出。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// AuthorizationError 角色/归属不匹配（401/403）。
type AuthorizationError struct {
	StatusCode int
	Message    string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization failed (%d): %s", e.StatusCode, e.Message)
}

// ConflictError 订单状态在服务端已变化（409）。
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting state: %s", e.Message)
}

// NetworkError 网络层失败（超时、连接错误、下游异常）。
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
