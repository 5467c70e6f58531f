package catalog

import "time"

// Restaurant 餐厅 GORM 模型。
type Restaurant struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID   string    `gorm:"index;size:36;not null" json:"owner_id"` // vendor 用户
	Name      string    `gorm:"size:100;not null" json:"name"`
	Cuisine   string    `gorm:"size:64" json:"cuisine"`
	Address   string    `gorm:"size:255" json:"address"`
	Phone     string    `gorm:"size:32" json:"phone"`
	Status    string    `gorm:"size:16;not null;default:'open'" json:"status"` // open / closed
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Category 菜单分类。
type Category struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	RestaurantID string    `gorm:"index;size:36;not null" json:"restaurant_id"`
	Name         string    `gorm:"size:64;not null" json:"name"`
	SortOrder    int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MenuItem 菜品。价格单位：分。
type MenuItem struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	RestaurantID string    `gorm:"index;size:36;not null" json:"restaurant_id"`
	CategoryID   string    `gorm:"index;size:36" json:"category_id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Description  string    `gorm:"size:512" json:"description"`
	Price        int64     `gorm:"not null;default:0" json:"price"`
	Available    bool      `gorm:"not null;default:true" json:"available"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
