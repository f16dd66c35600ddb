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

package worker

import (
	"context"
	"fmt"
	"os"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"crypto-analyst/internal/agent/job"
	"crypto-analyst/internal/app"
	"crypto-analyst/internal/pipeline/ingest"
	"crypto-analyst/pkg/log"
	"crypto-analyst/pkg/tracing"
)

// App Worker 应用：从共享 JobStore 认领分析任务执行；ingest.enabled 时按 cron 抓取新闻
type App struct {
	bootstrap *app.Bootstrap
	logger    *log.Logger
	scheduler *job.Scheduler
	ingest    *ingest.Scheduler
	tracer    *sdktrace.TracerProvider
	cancel    context.CancelFunc
}

// NewApp 创建新的 Worker 应用
func NewApp(ctx context.Context, bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	if cfg.Jobs.Store == "memory" {
		// memory 存储无法跨进程共享，Worker 拿不到 API 提交的任务
		bootstrap.Logger.Warn("jobs.store=memory，Worker 只会执行本进程内提交的任务")
	}
	loop, err := bootstrap.Loop(ctx)
	if err != nil {
		return nil, err
	}
	a := &App{
		bootstrap: bootstrap,
		logger:    bootstrap.Logger.Component("worker"),
		scheduler: bootstrap.Scheduler(loop),
	}
	if tr := cfg.Monitoring.Tracing; tr.Enable {
		endpoint := tr.ExportEndpoint
		if endpoint == "" {
			endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if endpoint != "" {
			name := tr.ServiceName
			if name == "" {
				name = "crypto-analyst-worker"
			}
			a.tracer, err = tracing.InitTracer(tracing.OTelConfig{ServiceName: name, ExportEndpoint: endpoint, Insecure: tr.Insecure})
			if err != nil {
				return nil, fmt.Errorf("初始化链路追踪失败: %w", err)
			}
			a.logger.Info("链路追踪已启用", "service_name", name, "endpoint", endpoint)
		}
	}
	if cfg.Ingest.Enabled {
		svc, err := bootstrap.Ingest(ctx)
		if err != nil {
			return nil, err
		}
		a.ingest, err = ingest.NewScheduler(svc, cfg.Ingest.Schedule, bootstrap.Logger.Component("ingest"))
		if err != nil {
			return nil, fmt.Errorf("解析抓取计划失败: %w", err)
		}
	}
	return a, nil
}

// Start 启动任务调度与新闻抓取，不阻塞
func (a *App) Start() error {
	a.logger.Info("启动 worker 应用", "store", a.bootstrap.Config.Jobs.Store, "ingest", a.ingest != nil)
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.scheduler.Start(ctx)
	if a.ingest != nil {
		a.ingest.Start(ctx)
	}
	a.logger.Info("worker 应用启动成功")
	return nil
}

// Shutdown 关闭应用：停止认领新任务，等待执行中的任务结束后释放存储
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("关闭 worker 应用")
	done := make(chan struct{})
	go func() {
		if a.cancel != nil {
			a.cancel()
		}
		if a.ingest != nil {
			a.ingest.Stop()
		}
		a.scheduler.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("等待执行中任务超时", "error", ctx.Err())
	}
	if a.tracer != nil {
		_ = a.tracer.Shutdown(ctx)
	}
	a.bootstrap.Close()
	a.logger.Info("worker 应用关闭成功")
	return nil
}
