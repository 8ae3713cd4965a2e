package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func serve(h *HTTP, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHTTP_Liveness(t *testing.T) {
	w := serve(NewHTTP(NewChecker(&mockPinger{pingErr: errors.New("down")}, nil), nil), "/healthz")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestHTTP_Readiness(t *testing.T) {
	if w := serve(NewHTTP(NewChecker(&mockPinger{}, nil), nil), "/readyz"); w.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", w.Code)
	}
	if w := serve(NewHTTP(NewChecker(&mockPinger{pingErr: errors.New("down")}, nil), nil), "/readyz"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("not ready status = %d, want 503", w.Code)
	}
}
