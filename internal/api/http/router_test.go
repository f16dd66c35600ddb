package http

import (
	"bytes"
	"context"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"crypto-analyst/internal/api/http/middleware"
)

func buildRouterForTest(jobs JobService) *server.Hertz {
	h := NewHandler(jobs, nil)
	r := NewRouter(h, nil)
	return r.Build(":0")
}

func TestRouter_UnknownRoutes(t *testing.T) {
	s := buildRouterForTest(nil)

	for _, path := range []string{"/api/jobs/job_x", "/api/agents/", "/api/analysis/job_x/trace"} {
		w := ut.PerformRequest(s.Engine, "GET", path, &ut.Body{Body: bytes.NewReader(nil), Len: 0})
		if got := w.Result().StatusCode(); got != 404 {
			t.Fatalf("GET %s status = %d, want 404", path, got)
		}
	}
}

func TestRouter_TrailingSlashSubmit(t *testing.T) {
	s := buildRouterForTest(nil)

	b := []byte(`{"query":"eth?"}`)
	w := ut.PerformRequest(s.Engine, "POST", "/api/analysis/", &ut.Body{Body: bytes.NewReader(b), Len: len(b)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	// 未配置 JobService 时路由命中但返回 503
	if got := w.Result().StatusCode(); got != 503 {
		t.Fatalf("POST /api/analysis/ status = %d, want 503", got)
	}
}

func TestRouter_InvalidJSON(t *testing.T) {
	s := buildRouterForTest(nil)

	b := []byte(`{"query":`)
	w := ut.PerformRequest(s.Engine, "POST", "/api/analysis", &ut.Body{Body: bytes.NewReader(b), Len: len(b)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	if got := w.Result().StatusCode(); got != 400 {
		t.Fatalf("status = %d, want 400", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte(`"error":"invalid request body"`)) {
		t.Fatalf("response body missing error field: %s", w.Result().Body())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	mw := middleware.NewMiddleware(middleware.Options{})
	s := server.New(server.WithHostPorts(":0"))
	s.Use(mw.Recovery())
	s.GET("/test/panic", func(ctx context.Context, c *app.RequestContext) {
		panic("boom")
	})

	w := ut.PerformRequest(s.Engine, "GET", "/test/panic", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 500 {
		t.Fatalf("status = %d, want 500", got)
	}
}
