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
	"strings"
	"time"

	apperrors "crypto-analyst/pkg/errors"
	"crypto-analyst/pkg/log"
)

// ErrNotFinished Job 尚未到终态
var ErrNotFinished = errors.New("job not finished")

// Service 面向调用方的任务接口：提交、查询状态、获取结果
type Service struct {
	store  JobStore
	logger *log.Logger
}

// NewService 创建 Service
func NewService(store JobStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{store: store, logger: logger}
}

// Submit 创建 Queued Job 并返回 ID；空问题不创建 Job
func (s *Service) Submit(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query is required", apperrors.ErrInvalidArg)
	}
	id, err := s.store.Create(ctx, &Job{Query: query})
	if err != nil {
		return "", apperrors.Wrap(err, "failed to create job")
	}
	s.logger.Info("任务已提交", "job_id", id)
	return id, nil
}

// Get 返回 Job 快照；不存在返回 ErrNotFound
func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load job")
	}
	if j == nil {
		return nil, fmt.Errorf("%w: job %s", apperrors.ErrNotFound, jobID)
	}
	return j, nil
}

// Status 返回 Job 当前状态
func (s *Service) Status(ctx context.Context, jobID string) (JobStatus, error) {
	j, err := s.Get(ctx, jobID)
	if err != nil {
		return StatusQueued, err
	}
	return j.Status, nil
}

// Result 完成时返回回答；失败时返回携带原因的错误；未到终态返回 ErrNotFinished
func (s *Service) Result(ctx context.Context, jobID string) (string, error) {
	j, err := s.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	switch j.Status {
	case StatusCompleted:
		return j.Answer, nil
	case StatusFailed:
		return "", errors.New(j.Error)
	default:
		return "", ErrNotFinished
	}
}

// Wait 轮询直到 Job 到终态或 ctx 结束
func (s *Service) Wait(ctx context.Context, jobID string, interval time.Duration) (*Job, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		j, err := s.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if j.Terminal() {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return j, ctx.Err()
		case <-ticker.C:
		}
	}
}
