// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"crypto-analyst/internal/agent/job"
	"crypto-analyst/internal/api/http"
	"crypto-analyst/internal/api/http/middleware"
	"crypto-analyst/internal/app"
	"crypto-analyst/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware；jobs.scheduler 未关闭时进程内执行任务）
type App struct {
	bootstrap    *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
	jobScheduler *job.Scheduler
	cancel       context.CancelFunc
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(ctx context.Context, bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	a := &App{bootstrap: bootstrap}

	if cfg.Jobs.SchedulerEnabled() {
		loop, err := bootstrap.Loop(ctx)
		if err != nil {
			return nil, err
		}
		a.jobScheduler = bootstrap.Scheduler(loop)
	} else {
		bootstrap.Logger.Info("进程内 Scheduler 已关闭，任务由 Worker 执行", "store", cfg.Jobs.Store)
	}

	handler := http.NewHandler(bootstrap.JobService(), bootstrap.Logger.Component("http"))
	rps := 0
	if cfg.API.Middleware.RateLimit {
		rps = cfg.API.Middleware.RateLimitRPS
	}
	mw := middleware.NewMiddleware(middleware.Options{
		CORS:         cfg.API.CORS.Enable,
		AllowOrigins: cfg.API.CORS.AllowOrigins,
		RateLimitRPS: rps,
		Logger:       bootstrap.Logger.Component("access"),
	})
	a.router = http.NewRouter(handler, mw)
	return a, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"；阻塞直到服务退出
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	output := os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	tr := cfg.Monitoring.Tracing
	exportEndpoint := tr.ExportEndpoint
	if exportEndpoint == "" {
		exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if tr.Enable && exportEndpoint != "" {
		serviceName := tr.ServiceName
		if serviceName == "" {
			serviceName = "crypto-analyst-api"
		}
		opts := []provider.Option{
			provider.WithServiceName(serviceName),
			provider.WithExportEndpoint(exportEndpoint),
		}
		if tr.Insecure {
			opts = append(opts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
		tracerOpt, tcfg := hertztracing.NewServerTracer()
		a.hertz = a.router.Build(addr, tracerOpt)
		a.hertz.Use(hertztracing.ServerMiddleware(tcfg))
		a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
	} else {
		a.hertz = a.router.Build(addr)
	}

	if a.jobScheduler != nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.cancel = cancel
		a.jobScheduler.Start(ctx)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.jobScheduler != nil {
		a.jobScheduler.Stop()
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	a.bootstrap.Close()
	return firstErr
}
