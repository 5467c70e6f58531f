package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DishBoard/DishBoard/internal/common/logger"
)

// upstreamStub 模拟三个下游服务，记录各端点的命中次数和请求参数。
type upstreamStub struct {
	mu sync.Mutex

	order Order

	listCalls   int
	getCalls    int
	patchCalls  int
	statsCalls  int
	searchCalls int
	userCalls   int

	lastListQuery url.Values

	// 非零时对应端点直接返回该状态码
	failGetCode   int
	failPatchCode int
}

func newUpstreamStub() *upstreamStub {
	return &upstreamStub{
		order: Order{
			ID:           "o1",
			RestaurantID: "r1",
			Customer:     CustomerRef{ID: "c1"},
			Status:       "confirmed",
			Total:        2500,
		},
	}
}

func (u *upstreamStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()

	writeJSON := func(code int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(v)
	}

	path := r.URL.Path
	switch {
	case path == "/api/orders" && r.Method == http.MethodGet:
		u.listCalls++
		u.lastListQuery = r.URL.Query()
		writeJSON(http.StatusOK, map[string]any{"data": []Order{u.order}, "total": 1})

	case strings.HasPrefix(path, "/api/orders/") && strings.HasSuffix(path, "/status") && r.Method == http.MethodPatch:
		u.patchCalls++
		if u.failPatchCode != 0 {
			writeJSON(u.failPatchCode, map[string]any{"error": "state already changed"})
			return
		}
		var req struct {
			Status string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		u.order.Status = req.Status
		writeJSON(http.StatusOK, map[string]any{"data": u.order})

	case strings.HasPrefix(path, "/api/orders/") && r.Method == http.MethodGet:
		u.getCalls++
		if u.failGetCode != 0 {
			writeJSON(u.failGetCode, map[string]any{"error": "nope"})
			return
		}
		writeJSON(http.StatusOK, map[string]any{"data": u.order})

	case path == "/api/stats" && r.Method == http.MethodGet:
		u.statsCalls++
		writeJSON(http.StatusOK, map[string]any{"data": OrderStats{Total: 1, Revenue: 2500}})

	case path == "/api/menu-items/search" && r.Method == http.MethodGet:
		u.searchCalls++
		writeJSON(http.StatusOK, map[string]any{"data": []MenuItem{}})

	case path == "/api/users" && r.Method == http.MethodGet:
		u.userCalls++
		writeJSON(http.StatusOK, map[string]any{"data": []User{}, "total": 0})

	default:
		writeJSON(http.StatusNotFound, map[string]any{"error": "not found"})
	}
}

func newTestService(t *testing.T, stub *upstreamStub) (*Service, *int32, func()) {
	t.Helper()

	srv := httptest.NewServer(stub)

	var tokenFetches int32
	tokens := NewTokenSource(func(ctx context.Context) (string, time.Time, error) {
		atomic.AddInt32(&tokenFetches, 1)
		return "svc-token", time.Now().Add(time.Hour), nil
	})

	log, err := logger.NewLogger("error", "text", "stdout", "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	client := func(name string) *Client {
		return NewClient(name, srv.URL, 5*time.Second, tokens)
	}
	svc := NewService(client("order"), client("catalog"), client("user"), NewQueryCache(30*time.Second), tokens, log)
	return svc, &tokenFetches, srv.Close
}

var (
	adminActor  = Actor{UserID: "u-admin", Role: "admin"}
	vendorActor = Actor{UserID: "u-vendor", Role: "vendor", RestaurantID: "r1"}
)

func TestUpdateOrderStatusRejectsIllegalTransition(t *testing.T) {
	stub := newUpstreamStub()
	stub.order.Status = "pending"
	svc, _, done := newTestService(t, stub)
	defer done()

	_, err := svc.UpdateOrderStatus(context.Background(), adminActor, "o1", "out_for_delivery")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if stub.patchCalls != 0 {
		t.Fatalf("illegal transition must be rejected before dispatch, got %d patches", stub.patchCalls)
	}
}

func TestUpdateOrderStatusRejectsCancelAfterPreparing(t *testing.T) {
	stub := newUpstreamStub()
	stub.order.Status = "preparing"
	svc, _, done := newTestService(t, stub)
	defer done()

	_, err := svc.UpdateOrderStatus(context.Background(), adminActor, "o1", "cancelled")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if stub.patchCalls != 0 {
		t.Fatalf("expected no dispatch, got %d patches", stub.patchCalls)
	}
}

func TestUpdateOrderStatusSuccessInvalidatesCaches(t *testing.T) {
	stub := newUpstreamStub()
	svc, _, done := newTestService(t, stub)
	defer done()

	ctx := context.Background()

	// 预热缓存
	if _, _, err := svc.ListOrders(ctx, adminActor, OrderFilter{Page: 1, PageSize: 20}); err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if _, err := svc.OrderStats(ctx, adminActor, ""); err != nil {
		t.Fatalf("OrderStats: %v", err)
	}
	if _, _, err := svc.ListOrders(ctx, adminActor, OrderFilter{Page: 1, PageSize: 20}); err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if stub.listCalls != 1 || stub.statsCalls != 1 {
		t.Fatalf("expected cached reads, got list=%d stats=%d", stub.listCalls, stub.statsCalls)
	}

	updated, err := svc.UpdateOrderStatus(ctx, adminActor, "o1", "preparing")
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	if updated.Status != "preparing" {
		t.Fatalf("got status %q", updated.Status)
	}
	if stub.patchCalls != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", stub.patchCalls)
	}

	// 变更成功后，订单列表和统计都应重新拉取
	if _, _, err := svc.ListOrders(ctx, adminActor, OrderFilter{Page: 1, PageSize: 20}); err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if _, err := svc.OrderStats(ctx, adminActor, ""); err != nil {
		t.Fatalf("OrderStats: %v", err)
	}
	if stub.listCalls != 2 || stub.statsCalls != 2 {
		t.Fatalf("caches should be invalidated after mutation, got list=%d stats=%d", stub.listCalls, stub.statsCalls)
	}
}

func TestUpdateOrderStatusIdempotentTarget(t *testing.T) {
	stub := newUpstreamStub()
	svc, _, done := newTestService(t, stub)
	defer done()

	o, err := svc.UpdateOrderStatus(context.Background(), adminActor, "o1", "confirmed")
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	if o.Status != "confirmed" {
		t.Fatalf("got status %q", o.Status)
	}
	if stub.patchCalls != 0 {
		t.Fatalf("repeat click with current status must not dispatch, got %d patches", stub.patchCalls)
	}
}

func TestUpdateOrderStatusConflictFromUpstream(t *testing.T) {
	stub := newUpstreamStub()
	stub.failPatchCode = http.StatusConflict
	svc, _, done := newTestService(t, stub)
	defer done()

	_, err := svc.UpdateOrderStatus(context.Background(), adminActor, "o1", "preparing")
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if stub.patchCalls != 1 {
		t.Fatalf("conflict must not be retried, got %d patches", stub.patchCalls)
	}
}

func TestUpstream401ClearsServiceToken(t *testing.T) {
	stub := newUpstreamStub()
	stub.failGetCode = http.StatusUnauthorized
	svc, tokenFetches, done := newTestService(t, stub)
	defer done()

	_, err := svc.GetOrder(context.Background(), adminActor, "o1")
	var ae *AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if got := atomic.LoadInt32(tokenFetches); got != 1 {
		t.Fatalf("expected 1 token fetch so far, got %d", got)
	}

	stub.mu.Lock()
	stub.failGetCode = 0
	stub.mu.Unlock()

	if _, err := svc.GetOrder(context.Background(), adminActor, "o1"); err != nil {
		t.Fatalf("GetOrder after recovery: %v", err)
	}
	// 401 应清除进程级令牌缓存，下一次请求重新认证
	if got := atomic.LoadInt32(tokenFetches); got != 2 {
		t.Fatalf("expected re-auth after 401, got %d token fetches", got)
	}
}

func TestVendorCannotReadForeignOrder(t *testing.T) {
	stub := newUpstreamStub()
	stub.order.RestaurantID = "r-other"
	svc, _, done := newTestService(t, stub)
	defer done()

	_, err := svc.GetOrder(context.Background(), vendorActor, "o1")
	var ae *AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestVendorListOrdersScopedToOwnRestaurant(t *testing.T) {
	stub := newUpstreamStub()
	svc, _, done := newTestService(t, stub)
	defer done()

	// vendor 试图查别家餐厅
	_, _, err := svc.ListOrders(context.Background(), vendorActor, OrderFilter{RestaurantID: "r-other"})
	var ae *AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}

	// 未指定餐厅时强制限定到归属餐厅
	if _, _, err := svc.ListOrders(context.Background(), vendorActor, OrderFilter{}); err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if got := stub.lastListQuery.Get("restaurant_id"); got != "r1" {
		t.Fatalf("vendor list must be scoped to own restaurant, got %q", got)
	}
}

func TestSearchBelowThresholdSkipsUpstream(t *testing.T) {
	stub := newUpstreamStub()
	svc, _, done := newTestService(t, stub)
	defer done()

	for _, q := range []string{"", "a", "中"} {
		out, err := svc.SearchMenuItems(context.Background(), adminActor, "", q, 10)
		if err != nil {
			t.Fatalf("SearchMenuItems(%q): %v", q, err)
		}
		if out != nil {
			t.Fatalf("short query %q should return empty result, got %v", q, out)
		}
	}
	if stub.searchCalls != 0 {
		t.Fatalf("short queries must not reach upstream, got %d calls", stub.searchCalls)
	}

	if _, err := svc.SearchMenuItems(context.Background(), adminActor, "", "pi", 10); err != nil {
		t.Fatalf("SearchMenuItems: %v", err)
	}
	if stub.searchCalls != 1 {
		t.Fatalf("two-char query should dispatch, got %d calls", stub.searchCalls)
	}
}

func TestListUsersVendorForbidden(t *testing.T) {
	stub := newUpstreamStub()
	svc, _, done := newTestService(t, stub)
	defer done()

	_, _, err := svc.ListUsers(context.Background(), vendorActor, "", 1, 20)
	var ae *AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if stub.userCalls != 0 {
		t.Fatalf("forbidden call must not reach upstream, got %d calls", stub.userCalls)
	}
}
