package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DishBoard/DishBoard/internal/common/auth"
	"gorm.io/gorm"
)

// stubRepo 内存实现，替代 MySQL 供 service 测试使用。
type stubRepo struct {
	orders  map[string]*Order
	updates int
}

func newStubRepo(orders ...*Order) *stubRepo {
	m := make(map[string]*Order, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return &stubRepo{orders: m}
}

func (s *stubRepo) Create(ctx context.Context, o *Order) error {
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *stubRepo) Update(ctx context.Context, o *Order) error {
	if _, ok := s.orders[o.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *o
	s.orders[o.ID] = &cp
	s.updates++
	return nil
}

func (s *stubRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *stubRepo) List(ctx context.Context, f ListFilter) ([]Order, int64, error) {
	var out []Order
	for _, o := range s.orders {
		if f.RestaurantID != "" && o.RestaurantID != f.RestaurantID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (s *stubRepo) Stats(ctx context.Context, restaurantID string, now time.Time) (*Stats, error) {
	st := &Stats{ByStatus: make(map[Status]int64)}
	for _, o := range s.orders {
		if restaurantID != "" && o.RestaurantID != restaurantID {
			continue
		}
		st.ByStatus[o.Status]++
		st.Total++
	}
	return st, nil
}

var (
	adminActor  = Actor{UserID: "a-1", Role: auth.RoleAdmin}
	vendorActor = Actor{UserID: "v-1", Role: auth.RoleVendor, RestaurantID: "r-1"}
)

func TestUpdateStatusHappyPath(t *testing.T) {
	repo := newStubRepo(&Order{ID: "o-1", RestaurantID: "r-1", Status: StatusConfirmed})
	svc := NewService(repo)

	o, err := svc.UpdateStatus(context.Background(), vendorActor, "o-1", StatusPreparing, time.Now())
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if o.Status != StatusPreparing {
		t.Fatalf("expected preparing, got %s", o.Status)
	}
	if repo.updates != 1 {
		t.Fatalf("expected exactly one persist, got %d", repo.updates)
	}
}

func TestUpdateStatusOwnership(t *testing.T) {
	repo := newStubRepo(&Order{ID: "o-1", RestaurantID: "r-2", Status: StatusPending})
	svc := NewService(repo)

	_, err := svc.UpdateStatus(context.Background(), vendorActor, "o-1", StatusConfirmed, time.Now())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign restaurant, got %v", err)
	}

	// admin 不受归属限制
	if _, err := svc.UpdateStatus(context.Background(), adminActor, "o-1", StatusConfirmed, time.Now()); err != nil {
		t.Fatalf("admin UpdateStatus: %v", err)
	}
}

func TestUpdateStatusConflict(t *testing.T) {
	repo := newStubRepo(&Order{ID: "o-1", RestaurantID: "r-1", Status: StatusPreparing})
	svc := NewService(repo)

	// preparing 之后取消不再可达，等同于并发冲突
	_, err := svc.UpdateStatus(context.Background(), vendorActor, "o-1", StatusCancelled, time.Now())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if repo.updates != 0 {
		t.Fatalf("conflicting transition must not persist")
	}
}

func TestUpdateStatusIdempotentRetry(t *testing.T) {
	repo := newStubRepo(&Order{ID: "o-1", RestaurantID: "r-1", Status: StatusPending})
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.UpdateStatus(ctx, vendorActor, "o-1", StatusConfirmed, time.Now())
	if err != nil {
		t.Fatalf("first UpdateStatus: %v", err)
	}
	// 同目标状态重试：除 updated_at 外不应有可观察变化
	second, err := svc.UpdateStatus(ctx, vendorActor, "o-1", StatusConfirmed, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("retry UpdateStatus: %v", err)
	}
	if second.Status != first.Status {
		t.Fatalf("status changed on retry: %s -> %s", first.Status, second.Status)
	}
	if !second.ConfirmedAt.Equal(*first.ConfirmedAt) {
		t.Fatalf("confirmed_at changed on retry")
	}
}

func TestListOrdersVendorScope(t *testing.T) {
	repo := newStubRepo(
		&Order{ID: "o-1", RestaurantID: "r-1", Status: StatusPending},
		&Order{ID: "o-2", RestaurantID: "r-2", Status: StatusPending},
	)
	svc := NewService(repo)

	// vendor 显式请求他人餐厅也会被收敛到自己的
	orders, _, err := svc.ListOrders(context.Background(), vendorActor, ListFilter{RestaurantID: "r-2"})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	for _, o := range orders {
		if o.RestaurantID != "r-1" {
			t.Fatalf("vendor saw foreign order %s", o.ID)
		}
	}

	all, total, err := svc.ListOrders(context.Background(), adminActor, ListFilter{})
	if err != nil {
		t.Fatalf("admin ListOrders: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("admin should see all orders, got %d", total)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc := NewService(newStubRepo())
	ctx := context.Background()

	if _, err := svc.CreateOrder(ctx, CreateOrderInput{RestaurantID: "r-1", CustomerID: "c-1"}); err == nil {
		t.Fatalf("expected empty items rejected")
	}
	if _, err := svc.CreateOrder(ctx, CreateOrderInput{
		RestaurantID: "r-1",
		CustomerID:   "c-1",
		Items:        []Item{{MenuItemID: "m-1", Name: "pad thai", Quantity: 0, Price: 1200}},
	}); err == nil {
		t.Fatalf("expected zero quantity rejected")
	}

	o, err := svc.CreateOrder(ctx, CreateOrderInput{
		RestaurantID: "r-1",
		CustomerID:   "c-1",
		Subtotal:     1200,
		DeliveryFee:  300,
		Items:        []Item{{MenuItemID: "m-1", Name: "pad thai", Quantity: 1, Price: 1200, Subtotal: 1200}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.Status != StatusPending {
		t.Fatalf("new order must start pending, got %s", o.Status)
	}
	if o.Total != 1500 {
		t.Fatalf("total mismatch: %d", o.Total)
	}
}
