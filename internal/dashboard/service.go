package dashboard

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/DishBoard/DishBoard/internal/common/auth"
	"github.com/DishBoard/DishBoard/internal/common/logger"
	"github.com/DishBoard/DishBoard/internal/order"
)

// MinSearchLength 搜索词长度阈值，低于该值不发起下游请求。
const MinSearchLength = 2

// Actor 发起操作的登录用户。角色和归属餐厅来自浏览器 JWT，
// 所有操作显式携带，不依赖任何隐式全局状态。
type Actor struct {
	UserID       string
	Role         string
	RestaurantID string
}

// IsAdmin 是否为平台管理员。
func (a Actor) IsAdmin() bool { return a.Role == auth.RoleAdmin }

// Service 仪表盘聚合服务：读请求走查询缓存，写请求按变更契约
// 校验、单次下发、并按资源前缀失效缓存。
type Service struct {
	orders  *Client
	catalog *Client
	users   *Client
	cache   *QueryCache
	tokens  *TokenSource
	log     logger.Logger

	loginFn func(ctx context.Context, username, password string) (*LoginResult, error)
}

func NewService(orders, catalog, users *Client, cache *QueryCache, tokens *TokenSource, log logger.Logger) *Service {
	s := &Service{
		orders:  orders,
		catalog: catalog,
		users:   users,
		cache:   cache,
		tokens:  tokens,
		log:     log,
	}
	s.loginFn = func(ctx context.Context, username, password string) (*LoginResult, error) {
		return loginUpstream(ctx, users.http, users.baseURL, username, password)
	}
	return s
}

// ---------- 认证 ----------

// Login 代理用户名口令登录，返回浏览器令牌。
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, &ValidationError{Message: "username and password required"}
	}
	res, err := s.loginFn(ctx, username, password)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(map[string]interface{}{
		"user_id": res.User.ID,
		"role":    res.User.Role,
	}).Info("user logged in")
	return res, nil
}

// Logout 登出：清除进程级服务令牌缓存，避免复用可能已吊销的令牌。
func (s *Service) Logout(actor Actor) {
	s.tokens.Clear()
	s.log.WithField("user_id", actor.UserID).Info("user logged out")
}

// ---------- 订单 ----------

// OrderFilter 订单列表过滤条件。
type OrderFilter struct {
	RestaurantID string
	CustomerID   string
	Status       string
	From         string // RFC3339
	To           string // RFC3339
	Page         int
	PageSize     int
}

func (f OrderFilter) query() url.Values {
	q := url.Values{}
	if f.RestaurantID != "" {
		q.Set("restaurant_id", f.RestaurantID)
	}
	if f.CustomerID != "" {
		q.Set("customer_id", f.CustomerID)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.From != "" {
		q.Set("from", f.From)
	}
	if f.To != "" {
		q.Set("to", f.To)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return q
}

// scopeToVendor 把 vendor 的查询强制限定到其归属餐厅。
func (s *Service) scopeToVendor(actor Actor, restaurantID string) (string, error) {
	if actor.IsAdmin() {
		return restaurantID, nil
	}
	if actor.RestaurantID == "" {
		return "", &AuthorizationError{StatusCode: 403, Message: "vendor has no restaurant"}
	}
	if restaurantID != "" && restaurantID != actor.RestaurantID {
		return "", &AuthorizationError{StatusCode: 403, Message: "restaurant not owned by caller"}
	}
	return actor.RestaurantID, nil
}

// ListOrders 订单列表。结果按 (资源, 角色, 过滤条件) 缓存。
func (s *Service) ListOrders(ctx context.Context, actor Actor, f OrderFilter) ([]Order, int64, error) {
	rid, err := s.scopeToVendor(actor, f.RestaurantID)
	if err != nil {
		return nil, 0, err
	}
	f.RestaurantID = rid

	q := f.query()
	key := Key{Resource: "orders", Role: actor.Role, Filter: q.Encode()}
	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		var out []Order
		total, err := s.orders.Get(ctx, "/api/orders", q, &out)
		if err != nil {
			return nil, err
		}
		return listPage[Order]{Items: out, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	page := v.(listPage[Order])
	return page.Items, page.Total, nil
}

// GetOrder 订单详情。vendor 只能访问归属餐厅的订单。
func (s *Service) GetOrder(ctx context.Context, actor Actor, id string) (*Order, error) {
	if id == "" {
		return nil, &ValidationError{Message: "order id required"}
	}
	key := Key{Resource: "orders", Role: actor.Role, Filter: "id=" + id}
	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		var out Order
		if _, err := s.orders.Get(ctx, "/api/orders/"+id, nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	o := v.(*Order)
	if !actor.IsAdmin() && o.RestaurantID != actor.RestaurantID {
		return nil, &AuthorizationError{StatusCode: 403, Message: "order not owned by caller"}
	}
	return o, nil
}

// OrderStats 订单统计。缓存前缀 "order-stats/"，与订单列表分开失效。
func (s *Service) OrderStats(ctx context.Context, actor Actor, restaurantID string) (*OrderStats, error) {
	rid, err := s.scopeToVendor(actor, restaurantID)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if rid != "" {
		q.Set("restaurant_id", rid)
	}
	key := Key{Resource: "order-stats", Role: actor.Role, Filter: q.Encode()}
	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		var out OrderStats
		if _, err := s.orders.Get(ctx, "/api/stats", q, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*OrderStats), nil
}

// UpdateOrderStatus 订单状态变更。契约：
//  1. 先取当前状态（绕过缓存，拿到最新值）并做归属校验
//  2. 目标等于当前状态：本地视为成功，不发任何请求
//  3. 用状态机本地校验流转，非法则在发请求前拒绝
//  4. 恰好一次 PATCH，失败不自动重试
//  5. 成功后失效 "orders/" 和 "order-stats/" 两个缓存前缀
func (s *Service) UpdateOrderStatus(ctx context.Context, actor Actor, id, target string) (*Order, error) {
	if id == "" {
		return nil, &ValidationError{Message: "order id required"}
	}
	if target == "" {
		return nil, &ValidationError{Message: "target status required"}
	}

	var current Order
	if _, err := s.orders.Get(ctx, "/api/orders/"+id, nil, &current); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && current.RestaurantID != actor.RestaurantID {
		return nil, &AuthorizationError{StatusCode: 403, Message: "order not owned by caller"}
	}

	if current.Status == target {
		// 重复点击：状态已是目标值，直接视为成功
		return &current, nil
	}
	if !order.CanTransition(order.Status(current.Status), order.Status(target)) {
		return nil, &ValidationError{
			Message: fmt.Sprintf("cannot transition order from %s to %s", current.Status, target),
		}
	}

	var updated Order
	if err := s.orders.Patch(ctx, "/api/orders/"+id+"/status", map[string]string{"status": target}, &updated); err != nil {
		return nil, err
	}

	s.cache.Invalidate(Prefix("orders"))
	s.cache.Invalidate(Prefix("order-stats"))
	s.log.WithFields(map[string]interface{}{
		"order_id": id,
		"from":     current.Status,
		"to":       target,
		"actor":    actor.UserID,
	}).Info("order status updated")
	return &updated, nil
}

// AllowedNextStatuses 目标状态下拉框的数据源：当前状态的合法后继。
func (s *Service) AllowedNextStatuses(current string) []string {
	next := order.AllowedNext(order.Status(current))
	out := make([]string, 0, len(next))
	for _, st := range next {
		out = append(out, string(st))
	}
	return out
}

// ---------- 餐厅 / 菜单 ----------

// ListRestaurants 餐厅列表。下游用服务账号访问会返回全量，
// vendor 的可见范围在网关侧收敛到其归属餐厅。
func (s *Service) ListRestaurants(ctx context.Context, actor Actor, page, pageSize int) ([]Restaurant, int64, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	key := Key{Resource: "restaurants", Role: actor.Role, Filter: q.Encode()}
	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		var out []Restaurant
		total, err := s.catalog.Get(ctx, "/api/restaurants", q, &out)
		if err != nil {
			return nil, err
		}
		return listPage[Restaurant]{Items: out, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	p := v.(listPage[Restaurant])
	if actor.IsAdmin() {
		return p.Items, p.Total, nil
	}
	own := make([]Restaurant, 0, 1)
	for _, r := range p.Items {
		if r.ID == actor.RestaurantID {
			own = append(own, r)
		}
	}
	return own, int64(len(own)), nil
}

// SaveRestaurant 创建/更新餐厅（仅管理员）。
func (s *Service) SaveRestaurant(ctx context.Context, actor Actor, r Restaurant) (*Restaurant, error) {
	if !actor.IsAdmin() {
		return nil, &AuthorizationError{StatusCode: 403, Message: "admin only"}
	}
	if r.Name == "" {
		return nil, &ValidationError{Message: "restaurant name required"}
	}
	var out Restaurant
	if err := s.catalog.Put(ctx, "/api/restaurants", r, &out); err != nil {
		return nil, err
	}
	s.cache.Invalidate(Prefix("restaurants"))
	return &out, nil
}

// ListCategories 菜单分类列表。
func (s *Service) ListCategories(ctx context.Context, actor Actor, restaurantID string) ([]Category, error) {
	rid, err := s.scopeToVendor(actor, restaurantID)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if rid != "" {
		q.Set("restaurant_id", rid)
	}
	key := Key{Resource: "categories", Role: actor.Role, Filter: q.Encode()}
	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		var out []Category
		if _, err := s.catalog.Get(ctx, "/api/categories", q, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Category), nil
}

// SaveCategory 创建/更新菜单分类。
func (s *Service) SaveCategory(ctx context.Context, actor Actor, cat Category) (*Category, error) {
	if _, err := s.scopeToVendor(actor, cat.RestaurantID); err != nil {
		return nil, err
	}
	if cat.Name == "" {
		return nil, &ValidationError{Message: "category name required"}
	}
	var out Category
	if err := s.catalog.Put(ctx, "/api/categories", cat, &out); err != nil {
		return nil, err
	}
	s.cache.Invalidate(Prefix("categories"))
	return &out, nil
}

// ListMenuItems 菜品列表。
func (s *Service) ListMenuItems(ctx context.Context, actor Actor, restaurantID, categoryID string, page, pageSize int) ([]MenuItem, int64, error) {
	rid, err := s.scopeToVendor(actor, restaurantID)
	if err != nil {
		return nil, 0, err
	}
	q := url.Values{}
	if rid != "" {
		q.Set("restaurant_id", rid)
	}
	if categoryID != "" {
		q.Set("category_id", categoryID)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	key := Key{Resource: "menu-items", Role: actor.Role, Filter: q.Encode()}
	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		var out []MenuItem
		total, err := s.catalog.Get(ctx, "/api/menu-items", q, &out)
		if err != nil {
			return nil, err
		}
		return listPage[MenuItem]{Items: out, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	p := v.(listPage[MenuItem])
	return p.Items, p.Total, nil
}

// SearchMenuItems 菜品搜索。搜索词不足 2 个字符时直接返回空结果，
// 不发请求也不进缓存。
func (s *Service) SearchMenuItems(ctx context.Context, actor Actor, restaurantID, query string, limit int) ([]MenuItem, error) {
	if len([]rune(query)) < MinSearchLength {
		return nil, nil
	}
	rid, err := s.scopeToVendor(actor, restaurantID)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("q", query)
	if rid != "" {
		q.Set("restaurant_id", rid)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	key := Key{Resource: "menu-items", Role: actor.Role, Filter: "search?" + q.Encode()}
	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		var out []MenuItem
		if _, err := s.catalog.Get(ctx, "/api/menu-items/search", q, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]MenuItem), nil
}

// SaveMenuItem 创建/更新菜品。
func (s *Service) SaveMenuItem(ctx context.Context, actor Actor, item MenuItem) (*MenuItem, error) {
	if _, err := s.scopeToVendor(actor, item.RestaurantID); err != nil {
		return nil, err
	}
	if item.Name == "" {
		return nil, &ValidationError{Message: "menu item name required"}
	}
	if item.Price < 0 {
		return nil, &ValidationError{Message: "price must not be negative"}
	}
	var out MenuItem
	if err := s.catalog.Put(ctx, "/api/menu-items", item, &out); err != nil {
		return nil, err
	}
	s.cache.Invalidate(Prefix("menu-items"))
	return &out, nil
}

// ---------- 用户 ----------

// ListUsers 用户列表（仅管理员）。
func (s *Service) ListUsers(ctx context.Context, actor Actor, role string, page, pageSize int) ([]User, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, &AuthorizationError{StatusCode: 403, Message: "admin only"}
	}
	q := url.Values{}
	if role != "" {
		q.Set("role", role)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	key := Key{Resource: "users", Role: actor.Role, Filter: q.Encode()}
	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		var out []User
		total, err := s.users.Get(ctx, "/api/users", q, &out)
		if err != nil {
			return nil, err
		}
		return listPage[User]{Items: out, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	p := v.(listPage[User])
	return p.Items, p.Total, nil
}

// CreateUserInput 新建用户入参。
type CreateUserInput struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	RestaurantID string `json:"restaurant_id"`
}

// CreateUser 新建用户（仅管理员）。
func (s *Service) CreateUser(ctx context.Context, actor Actor, in CreateUserInput) (*User, error) {
	if !actor.IsAdmin() {
		return nil, &AuthorizationError{StatusCode: 403, Message: "admin only"}
	}
	if in.Username == "" || in.Password == "" {
		return nil, &ValidationError{Message: "username and password required"}
	}
	if in.Role != auth.RoleAdmin && in.Role != auth.RoleVendor {
		return nil, &ValidationError{Message: "role must be admin or vendor"}
	}
	if in.Role == auth.RoleVendor && in.RestaurantID == "" {
		return nil, &ValidationError{Message: "vendor requires restaurant_id"}
	}
	var out User
	if err := s.users.Post(ctx, "/api/users", in, &out); err != nil {
		return nil, err
	}
	s.cache.Invalidate(Prefix("users"))
	return &out, nil
}

// ---------- 辅助 ----------

// listPage 带 total 的列表缓存值。
type listPage[T any] struct {
	Items []T
	Total int64
}
