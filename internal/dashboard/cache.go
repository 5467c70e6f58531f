package dashboard

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key 查询缓存键：(资源, 角色, 过滤条件)。
// 渲染成 "resource/role/filter" 字符串后，按前缀失效就是字符串前缀匹配。
type Key struct {
	Resource string
	Role     string
	Filter   string
}

func (k Key) String() string {
	return k.Resource + "/" + k.Role + "/" + k.Filter
}

// Prefix 资源级失效前缀（如 "orders/"）。
func Prefix(resource string) string {
	return resource + "/"
}

// FetchFunc 缓存未命中时的取数函数。
type FetchFunc func(ctx context.Context) (any, error)

type cacheEntry struct {
	value     any
	fetchedAt time.Time
	stale     bool
}

// QueryCache 读请求缓存：
// - 同 key 并发 Get 共享一次下游请求（single-flight）
// - 条目超过 staleAfter 视为过期，下次 Get 触发重新拉取
// - Invalidate 按前缀标脏，并保证失效前就在途的请求不会把旧数据写回
//   （以失效时间为准，而不是以先到为准）
type QueryCache struct {
	staleAfter time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
	gens    map[string]uint64 // 每个 key 的失效代数

	// 每个 key 当前在途取数的数量。Forget 之后新旧取数可能重叠，
	// 必须计数而不是布尔标记，否则旧取数结束会抹掉新取数的在途状态。
	inflight map[string]int

	group singleflight.Group
}

func NewQueryCache(staleAfter time.Duration) *QueryCache {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	return &QueryCache{
		staleAfter: staleAfter,
		now:        time.Now,
		entries:    make(map[string]*cacheEntry),
		gens:       make(map[string]uint64),
		inflight:   make(map[string]int),
	}
}

// Get 返回 key 的最新值。命中且未过期直接返回；否则发起一次取数，
// 同 key 的并发调用共享这一次取数。
// 调用方 ctx 取消时放弃等待（共享取数本身不被打断，结果只是不再交给该调用方）。
func (c *QueryCache) Get(ctx context.Context, key Key, fetch FetchFunc) (any, error) {
	k := key.String()

	c.mu.Lock()
	if e, ok := c.entries[k]; ok && !e.stale && c.now().Sub(e.fetchedAt) < c.staleAfter {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	// 共享取数挂在与调用方生命周期无关的 ctx 上：
	// 某个调用方离开不应打断其他等待者。
	fetchCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(k, func() (any, error) {
		// 代数快照和在途计数必须在同一临界区内建立：
		// 之后任何一次失效都能看到这次取数并给它升代。
		c.mu.Lock()
		startGen := c.gens[k]
		c.inflight[k]++
		c.mu.Unlock()

		defer func() {
			c.mu.Lock()
			if c.inflight[k]--; c.inflight[k] <= 0 {
				delete(c.inflight, k)
			}
			c.mu.Unlock()
		}()

		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// 取数期间发生过失效：结果仍返回给等待者，但不回写缓存，
		// 避免旧数据覆盖失效后的新一轮取数。
		if c.gens[k] == startGen {
			c.entries[k] = &cacheEntry{value: v, fetchedAt: c.now()}
		}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val, nil
	}
}

// Invalidate 将所有以 prefix 开头的 key 标脏。
// 在途请求的 key 也会升代，使其完成后无法回写；同时 Forget 掉
// single-flight 槽位，让失效之后的 Get 能立刻发起新的取数。
func (c *QueryCache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if strings.HasPrefix(k, prefix) {
			e.stale = true
			c.gens[k]++
			c.group.Forget(k)
		}
	}
	for k, n := range c.inflight {
		if n > 0 && strings.HasPrefix(k, prefix) {
			c.gens[k]++
			c.group.Forget(k)
		}
	}
}

// Peek 返回 key 当前缓存值（不触发取数），仅用于测试和诊断。
func (c *QueryCache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || e.stale || c.now().Sub(e.fetchedAt) >= c.staleAfter {
		return nil, false
	}
	return e.value, true
}
