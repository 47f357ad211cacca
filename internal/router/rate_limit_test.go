package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dujiao-next/affiliate/internal/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestRateLimitMiddlewareWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cache.Reset()

	r := gin.New()
	r.Use(RateLimitMiddleware(RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status want 200 got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), `"ok":true`) {
			t.Fatalf("expected handler response body, got %s", w.Body.String())
		}
	}
}

func TestRateLimitMiddlewareBlocksAfterLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	cache.UseClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(cache.Reset)

	r := gin.New()
	r.Use(RateLimitMiddleware(RateLimitRule{Prefix: "click", WindowSeconds: 60, MaxRequests: 2}, KeyByIP))
	r.POST("/click", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	send := func(ip string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/click", nil)
		req.RemoteAddr = ip + ":1234"
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := send("10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d want 200 got %d", i+1, w.Code)
		}
	}
	blocked := send("10.0.0.1")
	if blocked.Code != http.StatusTooManyRequests {
		t.Fatalf("third request want 429 got %d", blocked.Code)
	}
	if blocked.Header().Get("Retry-After") != "60" {
		t.Fatalf("retry-after want 60 got %q", blocked.Header().Get("Retry-After"))
	}
	if other := send("10.0.0.2"); other.Code != http.StatusOK {
		t.Fatalf("other ip should not be limited, got %d", other.Code)
	}

	mr.FastForward(61 * time.Second)
	if w := send("10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("window reset want 200 got %d", w.Code)
	}
}
