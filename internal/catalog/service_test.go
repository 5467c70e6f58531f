package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DishBoard/DishBoard/internal/common/auth"
)

type stubRepo struct {
	restaurants map[string]*Restaurant
	menuItems   map[string]*MenuItem
	searches    int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		restaurants: make(map[string]*Restaurant),
		menuItems:   make(map[string]*MenuItem),
	}
}

func (s *stubRepo) UpsertRestaurant(ctx context.Context, r *Restaurant) error {
	cp := *r
	s.restaurants[r.ID] = &cp
	return nil
}

func (s *stubRepo) GetRestaurant(ctx context.Context, id string) (*Restaurant, error) {
	r, ok := s.restaurants[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *r
	return &cp, nil
}

func (s *stubRepo) ListRestaurants(ctx context.Context, ownerID string, offset, limit int) ([]Restaurant, int64, error) {
	var out []Restaurant
	for _, r := range s.restaurants {
		if ownerID != "" && r.OwnerID != ownerID {
			continue
		}
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

func (s *stubRepo) UpsertCategory(ctx context.Context, c *Category) error { return nil }
func (s *stubRepo) ListCategories(ctx context.Context, restaurantID string) ([]Category, error) {
	return nil, nil
}

func (s *stubRepo) UpsertMenuItem(ctx context.Context, m *MenuItem) error {
	cp := *m
	s.menuItems[m.ID] = &cp
	return nil
}

func (s *stubRepo) GetMenuItem(ctx context.Context, id string) (*MenuItem, error) {
	m, ok := s.menuItems[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *m
	return &cp, nil
}

func (s *stubRepo) ListMenuItems(ctx context.Context, restaurantID, categoryID string, offset, limit int) ([]MenuItem, int64, error) {
	var out []MenuItem
	for _, m := range s.menuItems {
		out = append(out, *m)
	}
	return out, int64(len(out)), nil
}

func (s *stubRepo) SearchMenuItems(ctx context.Context, restaurantID, query string, limit int) ([]MenuItem, error) {
	s.searches++
	var out []MenuItem
	for _, m := range s.menuItems {
		if strings.Contains(strings.ToLower(m.Name), strings.ToLower(query)) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func TestSearchMenuItemsThreshold(t *testing.T) {
	repo := newStubRepo()
	repo.menuItems["m-1"] = &MenuItem{ID: "m-1", RestaurantID: "r-1", Name: "Pad Thai", Price: 1200, Available: true, CreatedAt: time.Now()}
	svc := NewService(repo)
	ctx := context.Background()

	// 单字符搜索不应打到存储层
	out, err := svc.SearchMenuItems(ctx, "r-1", "p", 10)
	if err != nil {
		t.Fatalf("SearchMenuItems: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result below threshold, got %d", len(out))
	}
	if repo.searches != 0 {
		t.Fatalf("short query must not dispatch a search, got %d", repo.searches)
	}

	out, err = svc.SearchMenuItems(ctx, "r-1", "pad", 10)
	if err != nil {
		t.Fatalf("SearchMenuItems: %v", err)
	}
	if len(out) != 1 || repo.searches != 1 {
		t.Fatalf("expected one hit and one dispatch, got hits=%d searches=%d", len(out), repo.searches)
	}
}

func TestSaveMenuItemOwnership(t *testing.T) {
	svc := NewService(newStubRepo())
	ctx := context.Background()
	vendor := Actor{UserID: "v-1", Role: auth.RoleVendor, RestaurantID: "r-1"}

	if _, err := svc.SaveMenuItem(ctx, vendor, SaveMenuItemInput{RestaurantID: "r-2", Name: "Ramen", Price: 900}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign restaurant, got %v", err)
	}

	m, err := svc.SaveMenuItem(ctx, vendor, SaveMenuItemInput{RestaurantID: "r-1", Name: "Ramen", Price: 900, Available: true})
	if err != nil {
		t.Fatalf("SaveMenuItem: %v", err)
	}
	if m.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestListRestaurantsVendorScope(t *testing.T) {
	repo := newStubRepo()
	repo.restaurants["r-1"] = &Restaurant{ID: "r-1", OwnerID: "v-1", Name: "Thai House"}
	repo.restaurants["r-2"] = &Restaurant{ID: "r-2", OwnerID: "v-2", Name: "Sushi Go"}
	svc := NewService(repo)

	out, _, err := svc.ListRestaurants(context.Background(), Actor{UserID: "v-1", Role: auth.RoleVendor, RestaurantID: "r-1"}, 0, 20)
	if err != nil {
		t.Fatalf("ListRestaurants: %v", err)
	}
	if len(out) != 1 || out[0].ID != "r-1" {
		t.Fatalf("vendor should only see own restaurants, got %v", out)
	}
}
