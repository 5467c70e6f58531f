package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/DishBoard/DishBoard/internal/common/auth"
	"github.com/DishBoard/DishBoard/internal/common/httpserver"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HTTPServer 目录服务的 HTTP 适配层。
type HTTPServer struct {
	svc *Service
}

func NewHTTPServer(svc *Service) *HTTPServer {
	return &HTTPServer{svc: svc}
}

// RegisterRoutes 挂载目录路由。
func (s *HTTPServer) RegisterRoutes(e *gin.Engine) {
	api := e.Group("/api")
	api.GET("/restaurants", s.listRestaurants)
	api.GET("/restaurants/:id", s.getRestaurant)
	api.PUT("/restaurants", httpserver.RequireRoles(auth.RoleAdmin), s.saveRestaurant)
	api.GET("/categories", s.listCategories)
	api.PUT("/categories", s.saveCategory)
	api.GET("/menu-items", s.listMenuItems)
	api.GET("/menu-items/search", s.searchMenuItems)
	api.PUT("/menu-items", s.saveMenuItem)
}

func actorFrom(c *gin.Context) (Actor, bool) {
	ai, ok := httpserver.AuthFromContext(c)
	if !ok {
		return Actor{}, false
	}
	return Actor{UserID: ai.Subject, Role: ai.Role, RestaurantID: ai.RestaurantID}, true
}

func pageArgs(c *gin.Context) (offset, limit int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	return (page - 1) * size, size
}

func (s *HTTPServer) listRestaurants(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth"})
		return
	}
	offset, limit := pageArgs(c)
	out, total, err := s.svc.ListRestaurants(c.Request.Context(), actor, offset, limit)
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total": total})
}

func (s *HTTPServer) getRestaurant(c *gin.Context) {
	out, err := s.svc.GetRestaurant(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *HTTPServer) saveRestaurant(c *gin.Context) {
	var in SaveRestaurantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	out, err := s.svc.SaveRestaurant(c.Request.Context(), in)
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *HTTPServer) listCategories(c *gin.Context) {
	out, err := s.svc.ListCategories(c.Request.Context(), c.Query("restaurant_id"))
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *HTTPServer) saveCategory(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth"})
		return
	}
	var in SaveCategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	out, err := s.svc.SaveCategory(c.Request.Context(), actor, in)
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *HTTPServer) listMenuItems(c *gin.Context) {
	offset, limit := pageArgs(c)
	out, total, err := s.svc.ListMenuItems(c.Request.Context(), c.Query("restaurant_id"), c.Query("category_id"), offset, limit)
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total": total})
}

func (s *HTTPServer) searchMenuItems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	out, err := s.svc.SearchMenuItems(c.Request.Context(), c.Query("restaurant_id"), strings.TrimSpace(c.Query("q")), limit)
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	if out == nil {
		out = []MenuItem{}
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *HTTPServer) saveMenuItem(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth"})
		return
	}
	var in SaveMenuItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	out, err := s.svc.SaveMenuItem(c.Request.Context(), actor, in)
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func writeCatalogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
