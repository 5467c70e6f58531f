package user

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DishBoard/DishBoard/internal/common/auth"
	"github.com/DishBoard/DishBoard/internal/common/config"
	"github.com/DishBoard/DishBoard/internal/common/httpserver"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HTTPServer 用户服务的 HTTP 适配层。
type HTTPServer struct {
	repo    *Repo
	authCfg config.AuthConfig

	// 登录接口限流（防口令爆破），可为 nil
	loginLimiter gin.HandlerFunc
}

func NewHTTPServer(db *gorm.DB, authCfg config.AuthConfig, loginLimiter gin.HandlerFunc) *HTTPServer {
	return &HTTPServer{
		repo:         NewRepo(db),
		authCfg:      authCfg,
		loginLimiter: loginLimiter,
	}
}

// RegisterRoutes 挂载用户路由。/api/login 需配置在 PublicPaths 中。
func (s *HTTPServer) RegisterRoutes(e *gin.Engine) {
	api := e.Group("/api")
	if s.loginLimiter != nil {
		api.POST("/login", s.loginLimiter, s.login)
	} else {
		api.POST("/login", s.login)
	}
	api.POST("/users", httpserver.RequireRoles(auth.RoleAdmin), s.createUser)
	api.GET("/users", httpserver.RequireRoles(auth.RoleAdmin), s.listUsers)
	api.GET("/profile", s.profile)
}

type createUserRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Nickname     string `json:"nickname"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	RestaurantID string `json:"restaurant_id"`
}

func (s *HTTPServer) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username/password required"})
		return
	}
	role := strings.TrimSpace(req.Role)
	if role != auth.RoleAdmin && role != auth.RoleVendor {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be admin or vendor"})
		return
	}
	if role == auth.RoleVendor && strings.TrimSpace(req.RestaurantID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vendor requires restaurant_id"})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Nickname:     strings.TrimSpace(req.Nickname),
		Phone:        strings.TrimSpace(req.Phone),
		Email:        strings.TrimSpace(req.Email),
		Role:         role,
		RestaurantID: strings.TrimSpace(req.RestaurantID),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": u})
}

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
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username/password required"})
		return
	}

	u, err := s.repo.FindByUsername(c.Request.Context(), username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !VerifyPassword(req.Password, u.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, exp, err := auth.GenerateAccessToken(s.authCfg, u.ID, u.Role, u.RestaurantID, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"expires_at":   exp.Unix(),
		"user":         u,
	})
}

func (s *HTTPServer) profile(c *gin.Context) {
	ai, ok := httpserver.AuthFromContext(c)
	if !ok || strings.TrimSpace(ai.Subject) == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth"})
		return
	}
	u, err := s.repo.FindByID(c.Request.Context(), ai.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": u})
}

func (s *HTTPServer) listUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	users, total, err := s.repo.List(c.Request.Context(), strings.TrimSpace(c.Query("role")), (page-1)*size, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users, "total": total})
}
