package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveWithTimeout(d time.Duration, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(Timeout(d))
	r.GET("/t", handler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
	return w
}

func TestTimeout_FastHandlerPassesThrough(t *testing.T) {
	w := serveWithTimeout(100*time.Millisecond, func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); !ok {
			t.Error("request context carries no deadline")
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestTimeout_503WhenHandlerExitsWithoutWriting(t *testing.T) {
	// The handler bails out on ctx.Done without writing anything; the
	// middleware owns the 503 in that case.
	w := serveWithTimeout(5*time.Millisecond, func(c *gin.Context) {
		<-c.Request.Context().Done()
	})

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestTimeout_HandlerResponseNotOverwritten(t *testing.T) {
	// A response written before the deadline fires must stand even when the
	// handler keeps running past it.
	w := serveWithTimeout(5*time.Millisecond, func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"done": true})
		time.Sleep(20 * time.Millisecond)
	})

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
}

func TestTimeout_DeadlinePropagatesToBlockingCalls(t *testing.T) {
	// A storage-style call that selects on the context unblocks when the
	// deadline fires, long before its own work would finish.
	w := serveWithTimeout(10*time.Millisecond, func(c *gin.Context) {
		slow := make(chan struct{})
		go func() {
			time.Sleep(200 * time.Millisecond)
			close(slow)
		}()

		select {
		case <-c.Request.Context().Done():
			return
		case <-slow:
			c.JSON(http.StatusOK, gin.H{"ok": true})
		}
	})

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestTimeout_PreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := gin.New()
	r.Use(Timeout(100 * time.Millisecond))
	r.GET("/t", func(c *gin.Context) {
		if c.Request.Context().Err() == nil {
			t.Error("expected cancelled context, got nil error")
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil).WithContext(ctx))
}
