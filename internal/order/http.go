package order

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DishBoard/DishBoard/internal/common/httpserver"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HTTPServer 订单服务的 HTTP 适配层。
type HTTPServer struct {
	svc *Service
}

func NewHTTPServer(svc *Service) *HTTPServer {
	return &HTTPServer{svc: svc}
}

// RegisterRoutes 挂载订单路由。
func (s *HTTPServer) RegisterRoutes(e *gin.Engine) {
	api := e.Group("/api")
	api.POST("/orders", s.createOrder)
	api.GET("/orders", s.listOrders)
	api.GET("/orders/:id", s.getOrder)
	api.PATCH("/orders/:id/status", s.updateStatus)
	api.GET("/stats", s.stats)
}

func actorFrom(c *gin.Context) (Actor, bool) {
	ai, ok := httpserver.AuthFromContext(c)
	if !ok {
		return Actor{}, false
	}
	return Actor{
		UserID:       ai.Subject,
		Role:         ai.Role,
		RestaurantID: ai.RestaurantID,
	}, true
}

type createOrderRequest struct {
	RestaurantID    string `json:"restaurant_id"`
	CustomerID      string `json:"customer_id"`
	PaymentMethod   string `json:"payment_method"`
	DeliveryAddress string `json:"delivery_address"`
	Subtotal        int64  `json:"subtotal"`
	DeliveryFee     int64  `json:"delivery_fee"`
	Items           []Item `json:"items"`
}

func (s *HTTPServer) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	o, err := s.svc.CreateOrder(c.Request.Context(), CreateOrderInput{
		RestaurantID:    req.RestaurantID,
		CustomerID:      req.CustomerID,
		PaymentMethod:   req.PaymentMethod,
		DeliveryAddress: req.DeliveryAddress,
		Subtotal:        req.Subtotal,
		DeliveryFee:     req.DeliveryFee,
		Items:           req.Items,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": o})
}

func (s *HTTPServer) getOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth"})
		return
	}
	o, err := s.svc.GetOrder(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": o})
}

func (s *HTTPServer) listOrders(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth"})
		return
	}

	f := ListFilter{
		RestaurantID: strings.TrimSpace(c.Query("restaurant_id")),
		CustomerID:   strings.TrimSpace(c.Query("customer_id")),
	}
	if st := strings.TrimSpace(c.Query("status")); st != "" {
		f.Status = Status(st)
	}
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		f.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		f.To = &to
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	f.Offset = (page - 1) * size
	f.Limit = size

	orders, total, err := s.svc.ListOrders(c.Request.Context(), actor, f)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders, "total": total})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *HTTPServer) updateStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth"})
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}

	o, err := s.svc.UpdateStatus(c.Request.Context(), actor, c.Param("id"), Status(strings.TrimSpace(req.Status)), time.Now())
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": o})
}

func (s *HTTPServer) stats(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth"})
		return
	}
	st, err := s.svc.Stats(c.Request.Context(), actor, strings.TrimSpace(c.Query("restaurant_id")), time.Now())
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": st})
}

// writeOrderError 统一错误映射：
// - 记录不存在 -> 404
// - 归属校验失败 -> 403
// - 状态流转冲突 -> 409（网关据此识别并发修改）
func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
