package order

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ListFilter 查询条件。RestaurantID 为空表示不限餐厅（仅 admin 会这样查）。
type ListFilter struct {
	RestaurantID string
	CustomerID   string
	Status       Status
	From         *time.Time
	To           *time.Time
	Offset       int
	Limit        int
}

// Stats 订单聚合数据（仪表盘图表的数据源）。
type Stats struct {
	Total        int64            `json:"total"`
	ByStatus     map[Status]int64 `json:"by_status"`
	Revenue      int64            `json:"revenue"`       // 已送达订单的金额合计（分）
	TodayOrders  int64            `json:"today_orders"`  // 今日订单数
	TodayRevenue int64            `json:"today_revenue"` // 今日已送达金额合计（分）
}

// Repository 持久层接口，方便 service/handler 测试时用内存桩替换。
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, int64, error)
	Stats(ctx context.Context, restaurantID string, now time.Time) (*Stats, error)
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

func (r *Repo) Create(ctx context.Context, o *Order) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(o).Error
}

func (r *Repo) Update(ctx context.Context, o *Order) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(o).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Order, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var o Order
	if err := db.Preload("Items").Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// List 支持按 restaurant_id / customer_id / status / 时间范围过滤 + 分页。
func (r *Repo) List(ctx context.Context, f ListFilter) ([]Order, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := db.Model(&Order{})
	if f.RestaurantID != "" {
		q = q.Where("restaurant_id = ?", f.RestaurantID)
	}
	if f.CustomerID != "" {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []Order
	if err := q.Preload("Items").Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// Stats 聚合订单数据；restaurantID 为空时统计全量（admin 视角）。
func (r *Repo) Stats(ctx context.Context, restaurantID string, now time.Time) (*Stats, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}

	scoped := func() *gorm.DB {
		q := db.Model(&Order{})
		if restaurantID != "" {
			q = q.Where("restaurant_id = ?", restaurantID)
		}
		return q
	}

	out := &Stats{ByStatus: make(map[Status]int64)}

	var rows []struct {
		Status Status
		Count  int64
	}
	if err := scoped().Select("status, count(*) as count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out.ByStatus[row.Status] = row.Count
		out.Total += row.Count
	}

	if err := scoped().
		Where("status = ?", StatusDelivered).
		Select("coalesce(sum(total), 0)").
		Scan(&out.Revenue).Error; err != nil {
		return nil, err
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := scoped().
		Where("created_at >= ?", dayStart).
		Count(&out.TodayOrders).Error; err != nil {
		return nil, err
	}
	if err := scoped().
		Where("status = ? AND created_at >= ?", StatusDelivered, dayStart).
		Select("coalesce(sum(total), 0)").
		Scan(&out.TodayRevenue).Error; err != nil {
		return nil, err
	}

	return out, nil
}
