package dashboard

import "time"

// 网关侧的只读视图模型。与下游服务的 JSON 对齐，
// 但关联字段解码为显式引用变体（见 ref.go）。

// Order 订单视图。
type Order struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	// 下游可能返回裸 id，也可能返回展开后的顾客记录
	Customer CustomerRef `json:"customer"`

	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentMethod string `json:"payment_method"`

	Subtotal    int64 `json:"subtotal"`
	DeliveryFee int64 `json:"delivery_fee"`
	Total       int64 `json:"total"`

	DeliveryAddress string `json:"delivery_address"`

	Items []OrderItem `json:"items"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	PreparingAt  *time.Time `json:"preparing_at,omitempty"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

// OrderItem 订单行视图。
type OrderItem struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Price      int64  `json:"price"`
	Subtotal   int64  `json:"subtotal"`
}

// OrderStats 订单统计视图。
type OrderStats struct {
	Total        int64            `json:"total"`
	ByStatus     map[string]int64 `json:"by_status"`
	Revenue      int64            `json:"revenue"`
	TodayOrders  int64            `json:"today_orders"`
	TodayRevenue int64            `json:"today_revenue"`
}

// Restaurant 餐厅视图。
type Restaurant struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Cuisine   string    `json:"cuisine"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category 菜单分类视图。
type Category struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	Name         string `json:"name"`
	SortOrder    int    `json:"sort_order"`
}

// MenuItem 菜品视图。
type MenuItem struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	CategoryID   string `json:"category_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        int64  `json:"price"`
	Available    bool   `json:"available"`
}

// User 用户视图（下游不会返回口令散列）。
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	RestaurantID string    `json:"restaurant_id"`
	CreatedAt    time.Time `json:"created_at"`
}
