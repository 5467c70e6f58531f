package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DishBoard/DishBoard/internal/common/auth"
	"github.com/DishBoard/DishBoard/internal/common/config"
	"github.com/gin-gonic/gin"
)

func newAuthedEngine(t *testing.T, cfg config.AuthConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(JWTAuthMiddleware(cfg, nil))
	e.GET("/api/admin-only", RequireRoles("admin"), func(c *gin.Context) {
		ai, ok := AuthFromContext(c)
		if !ok {
			t.Fatalf("missing auth info in ctx")
		}
		c.JSON(http.StatusOK, gin.H{"subject": ai.Subject})
	})
	e.GET("/api/any", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return e
}

func TestJWTAuthMiddlewareAndRoles(t *testing.T) {
	cfg := config.AuthConfig{
		Enabled:   true,
		JWTSecret: "test-secret",
		Issuer:    "dishboard",
		Audience:  "dishboard",
	}
	e := newAuthedEngine(t, cfg)

	adminToken, _, err := auth.GenerateAccessToken(cfg, "u-1", "admin", "", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected allow, got status=%d body=%s", w.Code, w.Body.String())
	}

	// vendor token 访问 admin-only 应被拒绝
	vendorToken, _, err := auth.GenerateAccessToken(cfg, "u-2", "vendor", "r-1", time.Hour)
	if err != nil {
		t.Fatalf("sign token2: %v", err)
	}
	req2 := httptest.NewRequest(http.MethodGet, "/api/admin-only", nil)
	req2.Header.Set("Authorization", "Bearer "+vendorToken)
	w2 := httptest.NewRecorder()
	e.ServeHTTP(w2, req2)
	if w2.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w2.Code)
	}

	// 无 token 应 401
	req3 := httptest.NewRequest(http.MethodGet, "/api/any", nil)
	w3 := httptest.NewRecorder()
	e.ServeHTTP(w3, req3)
	if w3.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w3.Code)
	}
}

func TestJWTAuthMiddlewarePublicPath(t *testing.T) {
	cfg := config.AuthConfig{
		Enabled:     true,
		JWTSecret:   "test-secret",
		PublicPaths: []string{"/api/any"},
	}
	e := newAuthedEngine(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/any", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected public path to pass, got %d", w.Code)
	}
}
