package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueryCacheSharesConcurrentFetch(t *testing.T) {
	c := NewQueryCache(30 * time.Second)
	key := Key{Resource: "orders", Role: "admin", Filter: "page=1"}

	var fetches int32
	gate := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&fetches, 1)
		<-gate
		return "result", nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), key, fetch)
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			results[i] = v
		}(i)
	}

	// 等所有 goroutine 挂上同一个 single-flight 槽位后再放行
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Fatalf("expected 1 fetch for concurrent gets, got %d", got)
	}
	for i, v := range results {
		if v != "result" {
			t.Fatalf("caller %d got %v", i, v)
		}
	}
}

func TestQueryCacheFreshHitSkipsFetch(t *testing.T) {
	c := NewQueryCache(30 * time.Second)
	key := Key{Resource: "orders", Role: "vendor", Filter: "restaurant_id=r1"}

	var fetches int
	fetch := func(ctx context.Context) (any, error) {
		fetches++
		return fetches, nil
	}

	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), key, fetch); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if fetches != 1 {
		t.Fatalf("expected 1 fetch, got %d", fetches)
	}
}

func TestQueryCacheStaleAfter(t *testing.T) {
	c := NewQueryCache(30 * time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	key := Key{Resource: "orders", Role: "admin", Filter: ""}
	var fetches int
	fetch := func(ctx context.Context) (any, error) {
		fetches++
		return fetches, nil
	}

	if _, err := c.Get(context.Background(), key, fetch); err != nil {
		t.Fatalf("Get: %v", err)
	}

	now = now.Add(29 * time.Second)
	if _, err := c.Get(context.Background(), key, fetch); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("entry expired early: %d fetches", fetches)
	}

	now = now.Add(2 * time.Second)
	if _, err := c.Get(context.Background(), key, fetch); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected refetch after staleAfter, got %d fetches", fetches)
	}
}

func TestQueryCacheInvalidateByPrefix(t *testing.T) {
	c := NewQueryCache(30 * time.Second)

	counts := map[string]int{}
	fetchFor := func(name string) FetchFunc {
		return func(ctx context.Context) (any, error) {
			counts[name]++
			return counts[name], nil
		}
	}

	orderKey := Key{Resource: "orders", Role: "admin", Filter: "page=1"}
	statsKey := Key{Resource: "order-stats", Role: "admin", Filter: ""}
	userKey := Key{Resource: "users", Role: "admin", Filter: ""}

	for _, k := range []struct {
		key  Key
		name string
	}{{orderKey, "orders"}, {statsKey, "stats"}, {userKey, "users"}} {
		if _, err := c.Get(context.Background(), k.key, fetchFor(k.name)); err != nil {
			t.Fatalf("Get %s: %v", k.name, err)
		}
	}

	c.Invalidate(Prefix("orders"))

	if _, err := c.Get(context.Background(), orderKey, fetchFor("orders")); err != nil {
		t.Fatalf("Get orders: %v", err)
	}
	if _, err := c.Get(context.Background(), userKey, fetchFor("users")); err != nil {
		t.Fatalf("Get users: %v", err)
	}

	if counts["orders"] != 2 {
		t.Fatalf("orders should refetch after invalidation, got %d fetches", counts["orders"])
	}
	// "order-stats/" 不以 "orders/" 开头，不应被波及
	if _, ok := c.Peek(statsKey); !ok {
		t.Fatalf("order-stats entry should survive orders invalidation")
	}
	if counts["users"] != 1 {
		t.Fatalf("users should still be cached, got %d fetches", counts["users"])
	}
}

func TestQueryCacheInvalidationWinsOverInflightFetch(t *testing.T) {
	c := NewQueryCache(30 * time.Second)
	key := Key{Resource: "orders", Role: "admin", Filter: ""}

	started := make(chan struct{})
	gate := make(chan struct{})
	var fetches int32
	fetch := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&fetches, 1) == 1 {
			close(started)
			<-gate
			return "old", nil
		}
		return "new", nil
	}

	done := make(chan any, 1)
	go func() {
		v, err := c.Get(context.Background(), key, fetch)
		if err != nil {
			t.Errorf("Get: %v", err)
		}
		done <- v
	}()

	<-started
	c.Invalidate(Prefix("orders"))
	close(gate)

	// 在途请求的结果仍交给等待者
	if v := <-done; v != "old" {
		t.Fatalf("inflight caller should still get its result, got %v", v)
	}
	// 但不得回写缓存：失效晚于取数开始，以失效为准
	if v, ok := c.Peek(key); ok {
		t.Fatalf("stale fetch result must not be cached after invalidation, got %v", v)
	}

	v, err := c.Get(context.Background(), key, fetch)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "new" {
		t.Fatalf("post-invalidation get should refetch, got %v", v)
	}
}

func TestQueryCacheInvalidationCoversOverlappingFetches(t *testing.T) {
	c := NewQueryCache(30 * time.Second)
	key := Key{Resource: "orders", Role: "admin", Filter: ""}

	// 失效会 Forget 掉 single-flight 槽位，所以同一个 key 可能出现
	// 新旧两次取数重叠。旧取数结束不能抹掉新取数的在途状态。
	var fetches int32
	started1 := make(chan struct{})
	started2 := make(chan struct{})
	gate1 := make(chan struct{})
	gate2 := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		switch atomic.AddInt32(&fetches, 1) {
		case 1:
			close(started1)
			<-gate1
			return "fetch1", nil
		case 2:
			close(started2)
			<-gate2
			return "fetch2", nil
		default:
			return "fetch3", nil
		}
	}

	done1 := make(chan any, 1)
	go func() {
		v, err := c.Get(context.Background(), key, fetch)
		if err != nil {
			t.Errorf("Get: %v", err)
		}
		done1 <- v
	}()
	<-started1

	// 第一次失效：第一次取数作废，之后的 Get 发起第二次取数
	c.Invalidate(Prefix("orders"))

	done2 := make(chan any, 1)
	go func() {
		v, err := c.Get(context.Background(), key, fetch)
		if err != nil {
			t.Errorf("Get: %v", err)
		}
		done2 <- v
	}()
	<-started2

	// 先让第一次取数完整结束，再在第二次取数在途时失效
	close(gate1)
	if v := <-done1; v != "fetch1" {
		t.Fatalf("first caller got %v", v)
	}
	c.Invalidate(Prefix("orders"))
	close(gate2)
	if v := <-done2; v != "fetch2" {
		t.Fatalf("second caller got %v", v)
	}

	if v, ok := c.Peek(key); ok {
		t.Fatalf("fetch in flight during invalidation must not be cached, got %v", v)
	}
}

func TestQueryCacheCallerCancel(t *testing.T) {
	c := NewQueryCache(30 * time.Second)
	key := Key{Resource: "orders", Role: "admin", Filter: ""}

	gate := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		<-gate
		return "late", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, key, fetch)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-errCh; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(gate)
}
