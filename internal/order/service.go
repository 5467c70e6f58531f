package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DishBoard/DishBoard/internal/common/auth"
	"github.com/google/uuid"
)

var (
	// ErrForbidden 角色/归属校验失败（vendor 访问他人餐厅的订单）。
	ErrForbidden = errors.New("forbidden")
	// ErrConflict 目标状态已不可达（订单状态被并发修改，或请求了非法流转）。
	ErrConflict = errors.New("conflicting order state")
)

// Actor 当前操作者。角色显式入参，不走隐式上下文，
// 每个调用点的权限语义一目了然，测试也不需要任何注入。
type Actor struct {
	UserID       string
	Role         string // admin / vendor
	RestaurantID string // vendor 绑定的餐厅
}

// CanAccess 判断操作者是否可见/可操作该订单。
func (a Actor) CanAccess(o *Order) bool {
	if o == nil {
		return false
	}
	if a.Role == auth.RoleAdmin {
		return true
	}
	return a.Role == auth.RoleVendor && a.RestaurantID != "" && a.RestaurantID == o.RestaurantID
}

// Service 封装订单领域的核心用例（不依赖 HTTP），便于复用和测试。
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateOrderInput 创建订单的入参。下单发生在顾客侧（不在本系统），
// 这里只为该外部入口提供落库；初始状态恒为 pending。
type CreateOrderInput struct {
	RestaurantID    string
	CustomerID      string
	PaymentMethod   string
	DeliveryAddress string
	Subtotal        int64
	DeliveryFee     int64
	Items           []Item
}

func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if strings.TrimSpace(in.RestaurantID) == "" {
		return nil, fmt.Errorf("restaurant_id required")
	}
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, fmt.Errorf("customer_id required")
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("order must have at least one item")
	}
	if in.Subtotal < 0 || in.DeliveryFee < 0 {
		return nil, fmt.Errorf("amounts must be non-negative")
	}
	for i := range in.Items {
		if in.Items[i].Quantity < 1 {
			return nil, fmt.Errorf("item quantity must be >= 1")
		}
	}

	o := &Order{
		ID:              uuid.NewString(),
		RestaurantID:    strings.TrimSpace(in.RestaurantID),
		CustomerID:      strings.TrimSpace(in.CustomerID),
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
		Subtotal:        in.Subtotal,
		DeliveryFee:     in.DeliveryFee,
		Total:           in.Subtotal + in.DeliveryFee,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
	}
	for i := range in.Items {
		it := in.Items[i]
		it.ID = uuid.NewString()
		it.OrderID = o.ID
		o.Items = append(o.Items, it)
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus 根据状态机规则进行状态流转。
// 网关侧已经做过一次校验，但这里是事实源：并发修改导致的非法流转
// 会在这里兜住并以 ErrConflict 返回。
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, orderID string, to Status, now time.Time) (*Order, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("order_id required")
	}
	if to == "" {
		return nil, fmt.Errorf("target status required")
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(o) {
		return nil, ErrForbidden
	}

	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrConflict, o.Status, to)
	}
	if err := ApplyTransition(o, to, now); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, actor Actor, id string) (*Order, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("id required")
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(o) {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListOrders 列表查询。vendor 的可见范围被强制收敛到自己的餐厅。
func (s *Service) ListOrders(ctx context.Context, actor Actor, f ListFilter) ([]Order, int64, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("service not initialized")
	}
	if actor.Role != auth.RoleAdmin {
		if actor.RestaurantID == "" {
			return nil, 0, ErrForbidden
		}
		f.RestaurantID = actor.RestaurantID
	}
	return s.repo.List(ctx, f)
}

// Stats 聚合统计。vendor 只能统计自己的餐厅。
func (s *Service) Stats(ctx context.Context, actor Actor, restaurantID string, now time.Time) (*Stats, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if actor.Role != auth.RoleAdmin {
		if actor.RestaurantID == "" {
			return nil, ErrForbidden
		}
		restaurantID = actor.RestaurantID
	}
	return s.repo.Stats(ctx, restaurantID, now)
}
