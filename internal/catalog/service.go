package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DishBoard/DishBoard/internal/common/auth"
	"github.com/google/uuid"
)

// ErrForbidden vendor 操作他人餐厅的数据。
var ErrForbidden = errors.New("forbidden")

// MinSearchLength 搜索词最短长度，低于该长度不下发查询。
const MinSearchLength = 2

// Actor 当前操作者（角色显式入参）。
type Actor struct {
	UserID       string
	Role         string
	RestaurantID string
}

func (a Actor) ownsRestaurant(restaurantID string) bool {
	if a.Role == auth.RoleAdmin {
		return true
	}
	return a.Role == auth.RoleVendor && a.RestaurantID != "" && a.RestaurantID == restaurantID
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SaveRestaurantInput 新建/更新餐厅（admin 专用，路由层限制角色）。
type SaveRestaurantInput struct {
	ID      string
	OwnerID string
	Name    string
	Cuisine string
	Address string
	Phone   string
	Status  string
}

func (s *Service) SaveRestaurant(ctx context.Context, in SaveRestaurantInput) (*Restaurant, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("name required")
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = "open"
	}
	if status != "open" && status != "closed" {
		return nil, fmt.Errorf("invalid restaurant status: %s", status)
	}

	r := &Restaurant{
		ID:      strings.TrimSpace(in.ID),
		OwnerID: strings.TrimSpace(in.OwnerID),
		Name:    strings.TrimSpace(in.Name),
		Cuisine: strings.TrimSpace(in.Cuisine),
		Address: strings.TrimSpace(in.Address),
		Phone:   strings.TrimSpace(in.Phone),
		Status:  status,
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := s.repo.UpsertRestaurant(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) GetRestaurant(ctx context.Context, id string) (*Restaurant, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	return s.repo.GetRestaurant(ctx, strings.TrimSpace(id))
}

// ListRestaurants vendor 只能看到自己名下的餐厅。
func (s *Service) ListRestaurants(ctx context.Context, actor Actor, offset, limit int) ([]Restaurant, int64, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("service not initialized")
	}
	ownerID := ""
	if actor.Role != auth.RoleAdmin {
		ownerID = actor.UserID
	}
	return s.repo.ListRestaurants(ctx, ownerID, offset, limit)
}

// SaveCategoryInput 新建/更新分类。
type SaveCategoryInput struct {
	ID           string
	RestaurantID string
	Name         string
	SortOrder    int
}

func (s *Service) SaveCategory(ctx context.Context, actor Actor, in SaveCategoryInput) (*Category, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if !actor.ownsRestaurant(in.RestaurantID) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("name required")
	}

	c := &Category{
		ID:           strings.TrimSpace(in.ID),
		RestaurantID: strings.TrimSpace(in.RestaurantID),
		Name:         strings.TrimSpace(in.Name),
		SortOrder:    in.SortOrder,
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.repo.UpsertCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context, restaurantID string) ([]Category, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	return s.repo.ListCategories(ctx, strings.TrimSpace(restaurantID))
}

// SaveMenuItemInput 新建/更新菜品。
type SaveMenuItemInput struct {
	ID           string
	RestaurantID string
	CategoryID   string
	Name         string
	Description  string
	Price        int64
	Available    bool
}

func (s *Service) SaveMenuItem(ctx context.Context, actor Actor, in SaveMenuItemInput) (*MenuItem, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if !actor.ownsRestaurant(in.RestaurantID) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("name required")
	}
	if in.Price < 0 {
		return nil, fmt.Errorf("price must be non-negative")
	}

	m := &MenuItem{
		ID:           strings.TrimSpace(in.ID),
		RestaurantID: strings.TrimSpace(in.RestaurantID),
		CategoryID:   strings.TrimSpace(in.CategoryID),
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Price:        in.Price,
		Available:    in.Available,
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := s.repo.UpsertMenuItem(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) ListMenuItems(ctx context.Context, restaurantID, categoryID string, offset, limit int) ([]MenuItem, int64, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("service not initialized")
	}
	return s.repo.ListMenuItems(ctx, strings.TrimSpace(restaurantID), strings.TrimSpace(categoryID), offset, limit)
}

// SearchMenuItems 搜索词不足 2 个字符时直接返回空，不打到 DB。
func (s *Service) SearchMenuItems(ctx context.Context, restaurantID, query string, limit int) ([]MenuItem, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinSearchLength {
		return nil, nil
	}
	return s.repo.SearchMenuItems(ctx, strings.TrimSpace(restaurantID), query, limit)
}
