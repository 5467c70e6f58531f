package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/DishBoard/DishBoard/internal/common/auth"
	"github.com/DishBoard/DishBoard/internal/common/httpserver"
	"github.com/gin-gonic/gin"
)

// HTTPServer 网关 HTTP 适配层。除登录外的所有路由都要求浏览器 JWT。
type HTTPServer struct {
	svc *Service

	// 登录接口的限流中间件（防口令爆破），由装配方注入
	loginLimiter gin.HandlerFunc
}

func NewHTTPServer(svc *Service, loginLimiter gin.HandlerFunc) *HTTPServer {
	return &HTTPServer{svc: svc, loginLimiter: loginLimiter}
}

// RegisterRoutes 挂载网关路由。
func (s *HTTPServer) RegisterRoutes(e *gin.Engine) {
	api := e.Group("/api")

	if s.loginLimiter != nil {
		api.POST("/login", s.loginLimiter, s.login)
	} else {
		api.POST("/login", s.login)
	}
	api.POST("/logout", s.logout)

	api.GET("/orders", s.listOrders)
	api.GET("/orders/:id", s.getOrder)
	api.GET("/orders/:id/next-statuses", s.nextStatuses)
	api.PATCH("/orders/:id/status", s.updateOrderStatus)
	api.GET("/stats", s.orderStats)

	api.GET("/restaurants", s.listRestaurants)
	api.PUT("/restaurants", httpserver.RequireRoles(auth.RoleAdmin), s.saveRestaurant)

	api.GET("/categories", s.listCategories)
	api.PUT("/categories", s.saveCategory)

	api.GET("/menu-items", s.listMenuItems)
	api.GET("/menu-items/search", s.searchMenuItems)
	api.PUT("/menu-items", s.saveMenuItem)

	api.GET("/users", s.listUsers)
	api.POST("/users", s.createUser)
}

func actorFrom(c *gin.Context) (Actor, bool) {
	ai, ok := httpserver.AuthFromContext(c)
	if !ok {
		return Actor{}, false
	}
	return Actor{UserID: ai.Subject, Role: ai.Role, RestaurantID: ai.RestaurantID}, true
}

func requireActor(c *gin.Context) (Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth"})
	}
	return actor, ok
}

func pageArgs(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	return page, size
}

// ---------- 认证 ----------

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := s.svc.Login(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *HTTPServer) logout(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	s.svc.Logout(actor)
	c.JSON(http.StatusOK, gin.H{"data": "ok"})
}

// ---------- 订单 ----------

func (s *HTTPServer) listOrders(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	page, size := pageArgs(c)
	f := OrderFilter{
		RestaurantID: strings.TrimSpace(c.Query("restaurant_id")),
		CustomerID:   strings.TrimSpace(c.Query("customer_id")),
		Status:       strings.TrimSpace(c.Query("status")),
		From:         strings.TrimSpace(c.Query("from")),
		To:           strings.TrimSpace(c.Query("to")),
		Page:         page,
		PageSize:     size,
	}
	orders, total, err := s.svc.ListOrders(c.Request.Context(), actor, f)
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders, "total": total})
}

func (s *HTTPServer) getOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	o, err := s.svc.GetOrder(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": o})
}

func (s *HTTPServer) nextStatuses(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	o, err := s.svc.GetOrder(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.svc.AllowedNextStatuses(o.Status)})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *HTTPServer) updateOrderStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	o, err := s.svc.UpdateOrderStatus(c.Request.Context(), actor, c.Param("id"), strings.TrimSpace(req.Status))
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": o})
}

func (s *HTTPServer) orderStats(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	st, err := s.svc.OrderStats(c.Request.Context(), actor, strings.TrimSpace(c.Query("restaurant_id")))
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": st})
}

// ---------- 餐厅 / 菜单 ----------

func (s *HTTPServer) listRestaurants(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	page, size := pageArgs(c)
	out, total, err := s.svc.ListRestaurants(c.Request.Context(), actor, page, size)
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total": total})
}

func (s *HTTPServer) saveRestaurant(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var in Restaurant
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	out, err := s.svc.SaveRestaurant(c.Request.Context(), actor, in)
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *HTTPServer) listCategories(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	out, err := s.svc.ListCategories(c.Request.Context(), actor, strings.TrimSpace(c.Query("restaurant_id")))
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *HTTPServer) saveCategory(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var in Category
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	out, err := s.svc.SaveCategory(c.Request.Context(), actor, in)
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *HTTPServer) listMenuItems(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	page, size := pageArgs(c)
	out, total, err := s.svc.ListMenuItems(c.Request.Context(), actor,
		strings.TrimSpace(c.Query("restaurant_id")), strings.TrimSpace(c.Query("category_id")), page, size)
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total": total})
}

func (s *HTTPServer) searchMenuItems(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	out, err := s.svc.SearchMenuItems(c.Request.Context(), actor,
		strings.TrimSpace(c.Query("restaurant_id")), strings.TrimSpace(c.Query("q")), limit)
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	if out == nil {
		out = []MenuItem{}
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *HTTPServer) saveMenuItem(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var in MenuItem
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	out, err := s.svc.SaveMenuItem(c.Request.Context(), actor, in)
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// ---------- 用户 ----------

func (s *HTTPServer) listUsers(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	page, size := pageArgs(c)
	out, total, err := s.svc.ListUsers(c.Request.Context(), actor, strings.TrimSpace(c.Query("role")), page, size)
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total": total})
}

func (s *HTTPServer) createUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var in CreateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	out, err := s.svc.CreateUser(c.Request.Context(), actor, in)
	if err != nil {
		writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": out})
}

// writeDashboardError 失败分类到 HTTP 状态码的映射。
// 网络层失败统一 502，提醒前端这不是用户操作的问题。
func writeDashboardError(c *gin.Context, err error) {
	var ve *ValidationError
	var ae *AuthorizationError
	var ce *ConflictError
	var ne *NetworkError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message})
	case errors.As(err, &ae):
		status := ae.StatusCode
		if status != http.StatusUnauthorized && status != http.StatusForbidden {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": ae.Message})
	case errors.As(err, &ce):
		c.JSON(http.StatusConflict, gin.H{"error": ce.Message})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &ne):
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
