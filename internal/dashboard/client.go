package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/DishBoard/DishBoard/internal/common/middleware"
)

// Client 下游服务的 HTTP 客户端。所有请求：
// - 带进程级服务令牌（Authorization: Bearer）
// - 经过熔断器，下游持续失败时快速拒绝
// - 失败统一映射到网关错误分类，上层不再接触 HTTP 细节
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenSource
	breaker *middleware.CircuitBreaker
}

func NewClient(name, baseURL string, timeout time.Duration, tokens *TokenSource) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		breaker: middleware.NewCircuitBreaker(name, 5, 10*time.Second),
	}
}

// envelope 下游统一响应体：{"data":...,"total":...,"error":...}。
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Total int64           `json:"total"`
	Error string          `json:"error"`
}

// Get 发起 GET 请求并把 data 解码进 out。query 可为 nil。
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) (int64, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post 发起 POST 请求，body 编码为 JSON。
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, http.MethodPost, path, nil, body, out)
	return err
}

// Put 发起 PUT 请求。
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, http.MethodPut, path, nil, body, out)
	return err
}

// Patch 发起 PATCH 请求。
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, http.MethodPatch, path, nil, body, out)
	return err
}

// Delete 发起 DELETE 请求。
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (int64, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, &NetworkError{Err: fmt.Errorf("acquire service token: %w", err)}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, &ValidationError{Message: fmt.Sprintf("encode request body: %v", err)}
		}
		reqBody = bytes.NewReader(raw)
	}

	var total int64
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
		if err != nil {
			return &NetworkError{Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return &NetworkError{Err: err}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return &NetworkError{Err: err}
		}

		var env envelope
		if len(raw) > 0 {
			// 下游偶发返回非 JSON（如代理错误页），按网络错误处理
			if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 400 {
				return &NetworkError{Err: fmt.Errorf("decode response: %w", err)}
			}
		}

		if resp.StatusCode >= 400 {
			return c.mapStatus(resp.StatusCode, env.Error)
		}

		total = env.Total
		if out != nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return &NetworkError{Err: fmt.Errorf("decode data: %w", err)}
			}
		}
		return nil
	}

	var callErr error
	err = c.breaker.Call(ctx, func() error {
		callErr = call()
		// 鉴权/冲突/未找到属于业务语义失败，不计入熔断器失败数
		var ae *AuthorizationError
		var ce *ConflictError
		if errors.As(callErr, &ae) || errors.As(callErr, &ce) || errors.Is(callErr, ErrNotFound) {
			return nil
		}
		return callErr
	})
	if errors.Is(err, middleware.ErrCircuitOpen) {
		return 0, &NetworkError{Err: err}
	}
	if callErr != nil {
		return 0, callErr
	}
	return total, nil
}

// LoginResult 用户服务登录响应（不走统一 envelope）。
type LoginResult struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
	User        User   `json:"user"`
}

// loginUpstream 调用用户服务登录接口。登录本身不携带令牌。
func loginUpstream(ctx context.Context, hc *http.Client, baseURL, username, password string) (*LoginResult, error) {
	raw, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("encode credentials: %v", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/login", bytes.NewReader(raw))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var out LoginResult
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, &NetworkError{Err: fmt.Errorf("decode login response: %w", err)}
		}
		return &out, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthorizationError{StatusCode: resp.StatusCode, Message: "invalid credentials"}
	case resp.StatusCode >= 500:
		return nil, &NetworkError{Err: fmt.Errorf("upstream returned %d", resp.StatusCode)}
	default:
		var env envelope
		_ = json.Unmarshal(body, &env)
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &ValidationError{Message: msg}
	}
}

// NewServiceTokenFetch 返回用服务账号登录换取令牌的取数函数，
// 供进程级 TokenSource 使用。
func NewServiceTokenFetch(baseURL string, timeout time.Duration, username, password string) TokenFetchFunc {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	return func(ctx context.Context) (string, time.Time, error) {
		res, err := loginUpstream(ctx, hc, baseURL, username, password)
		if err != nil {
			return "", time.Time{}, err
		}
		return res.AccessToken, time.Unix(res.ExpiresAt, 0), nil
	}
}

// mapStatus 将下游状态码映射为网关错误分类。
// 401 额外清除令牌缓存，下一次请求会重新认证。
func (c *Client) mapStatus(code int, message string) error {
	if message == "" {
		message = http.StatusText(code)
	}
	switch {
	case code == http.StatusUnauthorized:
		c.tokens.Clear()
		return &AuthorizationError{StatusCode: code, Message: message}
	case code == http.StatusForbidden:
		return &AuthorizationError{StatusCode: code, Message: message}
	case code == http.StatusConflict:
		return &ConflictError{Message: message}
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return &NetworkError{Err: fmt.Errorf("upstream returned %d: %s", code, message)}
	default:
		return &ValidationError{Message: message}
	}
}
