package order

import "time"

// Status 订单履约状态枚举（持久化为字符串）。
type Status string

const (
	StatusPending        Status = "pending"          // 已下单，待商家确认
	StatusConfirmed      Status = "confirmed"        // 商家已确认
	StatusPreparing      Status = "preparing"        // 制作中
	StatusOutForDelivery Status = "out_for_delivery" // 配送中
	StatusDelivered      Status = "delivered"        // 已送达（终态）
	StatusCancelled      Status = "cancelled"        // 已取消（终态）
)

// PaymentStatus 支付状态。与履约状态相互独立：
// 退款由支付侧驱动，这里不做任何耦合校验。
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Order 订单 GORM 模型。
// 金额单位：分；total = subtotal + delivery_fee 由下单侧保证，这里不重算。
type Order struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// 业务关联
	RestaurantID string `gorm:"index;size:36;not null" json:"restaurant_id"`
	CustomerID   string `gorm:"index;size:36;not null" json:"customer"`

	Status        Status        `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"payment_status"`
	PaymentMethod string        `gorm:"size:16" json:"payment_method"` // card / cash

	// 金额信息（单位：分）
	Subtotal    int64 `gorm:"not null;default:0" json:"subtotal"`
	DeliveryFee int64 `gorm:"not null;default:0" json:"delivery_fee"`
	Total       int64 `gorm:"not null;default:0" json:"total"`

	DeliveryAddress string `gorm:"size:255" json:"delivery_address"`

	Items []Item `gorm:"foreignKey:OrderID" json:"items"`

	// 时间信息
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`  // 商家确认时间
	PreparingAt  *time.Time `json:"preparing_at,omitempty"`  // 开始制作时间
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"` // 出餐配送时间
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`  // 送达时间
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`  // 取消时间
}

// Item 订单行。subtotal = price * quantity 由下单侧保证。
type Item struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	OrderID    string `gorm:"index;size:36;not null" json:"order_id"`
	MenuItemID string `gorm:"size:36;not null" json:"menu_item_id"`
	Name       string `gorm:"size:100;not null" json:"name"`
	Quantity   int    `gorm:"not null" json:"quantity"`
	Price      int64  `gorm:"not null" json:"price"`
	Subtotal   int64  `gorm:"not null" json:"subtotal"`
}
