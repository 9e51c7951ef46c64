package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRequestIDRouter(handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", handler)
	return r
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	var seen string
	r := newRequestIDRouter(func(c *gin.Context) {
		id, ok := c.Get(RequestIDKey)
		if !ok {
			t.Fatal("request id missing from gin context")
		}
		seen = id.(string)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	if seen == "" {
		t.Error("generated request id is empty")
	}
	if got := w.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}
}

func TestRequestID_EchoesClientID(t *testing.T) {
	r := newRequestIDRouter(func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-supplied-id" {
		t.Errorf("response header = %q, want the client-supplied id", got)
	}
}
