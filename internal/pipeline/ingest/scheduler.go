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

package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"crypto-analyst/pkg/log"
)

// Scheduler 按 cron 表达式周期触发入库
type Scheduler struct {
	service *Service
	expr    *cronexpr.Expression
	logger  *log.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewScheduler 解析 cron 表达式（如 "0 * * * *"）并创建调度器
func NewScheduler(service *Service, spec string, logger *log.Logger) (*Scheduler, error) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid ingest schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Scheduler{
		service: service,
		expr:    expr,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Next 返回 from 之后的下一次触发时间
func (s *Scheduler) Next(from time.Time) time.Time {
	return s.expr.Next(from)
}

// Start 启动后台循环；单次入库失败只记录日志，不影响后续触发
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			next := s.Next(time.Now())
			if next.IsZero() {
				s.logger.Warn("cron 表达式没有后续触发时间，入库调度退出")
				return
			}
			timer := time.NewTimer(time.Until(next))
			select {
			case <-s.stopCh:
				timer.Stop()
				return
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if _, err := s.service.Run(ctx); err != nil {
				s.logger.Error("定时入库失败", "error", err)
			}
		}
	}()
}

// Stop 停止调度并等待进行中的入库结束
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
