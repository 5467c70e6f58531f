package user

import "time"

// User 是 users 表的 GORM 模型。仪表盘只有两类角色：
// admin 管全局，vendor 绑定一家餐厅。
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	Nickname     string    `gorm:"size:64" json:"nickname"`
	Phone        string    `gorm:"size:32" json:"phone"`
	Email        string    `gorm:"size:128" json:"email"`
	Role         string    `gorm:"size:16;not null" json:"role"`      // admin / vendor
	RestaurantID string    `gorm:"size:36" json:"restaurant_id"`      // vendor 绑定的餐厅
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
