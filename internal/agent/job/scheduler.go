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

package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crypto-analyst/internal/agent"
	apperrors "crypto-analyst/pkg/errors"
	"crypto-analyst/pkg/log"
	"crypto-analyst/pkg/metrics"
	"crypto-analyst/pkg/redaction"
	"crypto-analyst/pkg/tracing"
)

// RunFunc 执行一次问题处理（由应用层注入，如 Loop.Run）。
// 返回 error 表示未能产生 LoopRun；LoopRun 自身的失败记录在返回的 Run 中。
type RunFunc func(ctx context.Context, query string) (*agent.Run, error)

// SchedulerConfig 调度器配置：并发上限、重试与 backoff
type SchedulerConfig struct {
	MaxConcurrency int           // 最大并发执行数，<=0 表示 1
	RetryMax       int           // 基础设施错误的最大重试次数（不含首次）
	Backoff        time.Duration // 重试前等待时间
	PollInterval   time.Duration // 队列为空时的等待间隔，<=0 为 200ms
	RunTimeout     time.Duration // 单次执行的宿主超时，<=0 不限时
}

// Scheduler 在 JobStore 之上提供排队、并发限制与重试；形态为 API→Job Queue→Scheduler→Agent Loop
type Scheduler struct {
	store   JobStore
	run     RunFunc
	config  SchedulerConfig
	logger  *log.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup // 调度循环
	running sync.WaitGroup // 执行中的 Job
	limiter chan struct{}  // 信号量，限制并发
	once    sync.Once
}

// NewScheduler 创建调度器；config 为并发与重试策略
func NewScheduler(store JobStore, run RunFunc, config SchedulerConfig, logger *log.Logger) *Scheduler {
	max := config.MaxConcurrency
	if max <= 0 {
		max = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 200 * time.Millisecond
	}
	if config.RetryMax < 0 {
		config.RetryMax = 0
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Scheduler{
		store:   store,
		run:     run,
		config:  config,
		logger:  logger,
		stopCh:  make(chan struct{}),
		limiter: make(chan struct{}, max),
	}
}

// Start 启动调度循环：最多 MaxConcurrency 个 Job 同时执行；成功或 LoopRun 失败都写入终态，
// 基础设施错误按 RetryMax/Backoff 重新入队
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case s.limiter <- struct{}{}:
				j, err := s.store.ClaimNextPending(ctx)
				if err != nil {
					s.logger.Error("认领任务失败", "error", err)
				}
				if j == nil {
					<-s.limiter
					select {
					case <-s.stopCh:
						return
					case <-ctx.Done():
						return
					case <-time.After(s.config.PollInterval):
					}
					continue
				}
				s.running.Add(1)
				go func(job *Job) {
					defer s.running.Done()
					defer func() { <-s.limiter }()
					s.execute(job)
				}(j)
			}
		}
	}()
}

// Stop 优雅退出：关闭 stopCh，等待调度循环与执行中的 Job 结束
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.running.Wait()
}

func (s *Scheduler) execute(job *Job) {
	// 执行与调度循环生命周期解耦，Stop 不会中断已认领的 Job
	runCtx := context.Background()
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, s.config.RunTimeout)
		defer cancel()
	}
	runCtx, span := tracing.StartJobSpan(runCtx, job.ID)
	logger := s.logger.With("job_id", job.ID, "attempt", job.Attempts)

	metrics.WorkerBusy.Inc()
	start := time.Now()
	run, err := s.safeRun(runCtx, job.Query)
	metrics.WorkerBusy.Dec()
	metrics.JobDuration.Observe(time.Since(start).Seconds())
	tracing.EndSpan(span, err)

	storeCtx := context.Background()
	if err != nil {
		if !errors.Is(err, apperrors.ErrInvalidArg) && job.Attempts <= s.config.RetryMax {
			logger.Warn("任务执行出错，稍后重试", "error", err)
			time.Sleep(s.config.Backoff)
			if rqErr := s.store.Requeue(storeCtx, job); rqErr == nil {
				metrics.JobTotal.WithLabelValues("retried").Inc()
				return
			}
		}
		job.Status = StatusFailed
		job.Error = redaction.String(err.Error())
	} else {
		job.Iterations = run.Iterations
		if run.Completed() {
			job.Status = StatusCompleted
			job.Answer = run.Answer
		} else {
			job.Status = StatusFailed
			job.Error = run.Reason
		}
	}

	if err := s.store.Finish(storeCtx, job); err != nil {
		logger.Error("写入任务结果失败", "error", err)
		return
	}
	metrics.JobTotal.WithLabelValues(job.Status.String()).Inc()
	logger.Info("任务结束", "status", job.Status.String(), "iterations", job.Iterations, "duration", time.Since(start))
}

func (s *Scheduler) safeRun(ctx context.Context, query string) (run *agent.Run, err error) {
	defer func() {
		if r := recover(); r != nil {
			run, err = nil, fmt.Errorf("panic while running job: %v", r)
		}
	}()
	return s.run(ctx, query)
}
