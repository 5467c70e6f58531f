package dashboard

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TokenFetchFunc 实际获取令牌的函数（对 user-service 的登录调用）。
type TokenFetchFunc func(ctx context.Context) (token string, expiresAt time.Time, err error)

// TokenSource 进程级服务令牌缓存：
// - 并发取令牌共享一次下游请求（single-flight）
// - 过期前 renewAhead 即视为需要刷新
// - Clear 在登出和收到 401 时调用，确保不会复用失效令牌
type TokenSource struct {
	fetch      TokenFetchFunc
	renewAhead time.Duration
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	gen       uint64 // Clear 的代数，在途取数不得把旧令牌写回

	group singleflight.Group
}

func NewTokenSource(fetch TokenFetchFunc) *TokenSource {
	return &TokenSource{
		fetch:      fetch,
		renewAhead: 30 * time.Second,
		now:        time.Now,
	}
}

// Token 返回可用令牌，必要时刷新。
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.token != "" && s.now().Add(s.renewAhead).Before(s.expiresAt) {
		t := s.token
		s.mu.Unlock()
		return t, nil
	}
	s.mu.Unlock()

	ch := s.group.DoChan("token", func() (any, error) {
		s.mu.Lock()
		startGen := s.gen
		s.mu.Unlock()

		token, exp, err := s.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		// 取数期间调用过 Clear：令牌仍交给等待者用这一次，
		// 但不得缓存，下一次调用重新认证。
		if s.gen == startGen {
			s.token = token
			s.expiresAt = exp
		}
		s.mu.Unlock()
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Clear 丢弃缓存令牌；下一次 Token 调用会重新认证。
func (s *TokenSource) Clear() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.gen++
	s.mu.Unlock()
	s.group.Forget("token")
}
