package catalog

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Repository 持久层接口，供 service 测试用内存桩替换。
type Repository interface {
	UpsertRestaurant(ctx context.Context, r *Restaurant) error
	GetRestaurant(ctx context.Context, id string) (*Restaurant, error)
	ListRestaurants(ctx context.Context, ownerID string, offset, limit int) ([]Restaurant, int64, error)

	UpsertCategory(ctx context.Context, c *Category) error
	ListCategories(ctx context.Context, restaurantID string) ([]Category, error)

	UpsertMenuItem(ctx context.Context, m *MenuItem) error
	GetMenuItem(ctx context.Context, id string) (*MenuItem, error)
	ListMenuItems(ctx context.Context, restaurantID, categoryID string, offset, limit int) ([]MenuItem, int64, error)
	SearchMenuItems(ctx context.Context, restaurantID, query string, limit int) ([]MenuItem, error)
}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *Repo) UpsertRestaurant(ctx context.Context, rest *Restaurant) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(rest).Error
}

func (r *Repo) GetRestaurant(ctx context.Context, id string) (*Restaurant, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rest Restaurant
	if err := db.Where("id = ?", id).First(&rest).Error; err != nil {
		return nil, err
	}
	return &rest, nil
}

func (r *Repo) ListRestaurants(ctx context.Context, ownerID string, offset, limit int) ([]Restaurant, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := db.Model(&Restaurant{})
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []Restaurant
	if err := q.Order("created_at desc").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repo) UpsertCategory(ctx context.Context, c *Category) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(c).Error
}

func (r *Repo) ListCategories(ctx context.Context, restaurantID string) ([]Category, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var out []Category
	if err := db.Where("restaurant_id = ?", restaurantID).Order("sort_order asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) UpsertMenuItem(ctx context.Context, m *MenuItem) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(m).Error
}

func (r *Repo) GetMenuItem(ctx context.Context, id string) (*MenuItem, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var m MenuItem
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) ListMenuItems(ctx context.Context, restaurantID, categoryID string, offset, limit int) ([]MenuItem, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := db.Model(&MenuItem{})
	if restaurantID != "" {
		q = q.Where("restaurant_id = ?", restaurantID)
	}
	if categoryID != "" {
		q = q.Where("category_id = ?", categoryID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []MenuItem
	if err := q.Order("created_at desc").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// SearchMenuItems 菜品名模糊搜索。排序等重活在 DB 侧完成。
func (r *Repo) SearchMenuItems(ctx context.Context, restaurantID, query string, limit int) ([]MenuItem, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	q := db.Model(&MenuItem{}).Where("name LIKE ?", "%"+strings.TrimSpace(query)+"%")
	if restaurantID != "" {
		q = q.Where("restaurant_id = ?", restaurantID)
	}
	var out []MenuItem
	if err := q.Order("name asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
