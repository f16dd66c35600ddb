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
	"fmt"
	"strings"
	"sync"
	"time"

	"crypto-analyst/pkg/config"
	"crypto-analyst/pkg/utils"
)

// JobStore 任务存储：API 写入、Scheduler 认领并回写结果
type JobStore interface {
	// Create 以 Queued 状态入队，返回 Job ID
	Create(ctx context.Context, job *Job) (string, error)
	// Get 按 ID 查询；不存在返回 nil, nil
	Get(ctx context.Context, jobID string) (*Job, error)
	// ClaimNextPending 原子取出一条 Queued 并置为 Running（Attempts+1），无则返回 nil, nil
	ClaimNextPending(ctx context.Context) (*Job, error)
	// Requeue 将 Running 的 Job 重新置为 Queued（用于基础设施错误重试）
	Requeue(ctx context.Context, job *Job) error
	// Finish 写入终态：Status、Answer、Error、Iterations
	Finish(ctx context.Context, job *Job) error
	Close() error
}

// NewStore 按配置创建 JobStore
func NewStore(ctx context.Context, cfg config.JobsConfig) (JobStore, error) {
	switch strings.ToLower(cfg.Store) {
	case "", "memory":
		return NewJobStoreMem(), nil
	case "redis":
		return NewJobStoreRedis(ctx, cfg.Addr, cfg.Password, cfg.DB, utils.CoalesceString(cfg.KeyPrefix, "analysis"))
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("jobs.dsn is required for postgres job store")
		}
		return NewJobStorePg(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported job store: %s", cfg.Store)
	}
}

// JobStoreMem 内存实现：map + Queued 队列，Create 时入队，ClaimNextPending 取队首并置 Running
type JobStoreMem struct {
	mu      sync.Mutex
	byID    map[string]*Job
	pending []string
}

// NewJobStoreMem 创建内存 JobStore
func NewJobStoreMem() *JobStoreMem {
	return &JobStoreMem{byID: make(map[string]*Job)}
}

func (s *JobStoreMem) Create(ctx context.Context, job *Job) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = newJobID()
	}
	job.Status = StatusQueued
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	cp := *job
	s.byID[job.ID] = &cp
	s.pending = append(s.pending, job.ID)
	return job.ID, nil
}

func (s *JobStoreMem) Get(ctx context.Context, jobID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.byID[jobID]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (s *JobStoreMem) ClaimNextPending(ctx context.Context) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) > 0 {
		id := s.pending[0]
		s.pending = s.pending[1:]
		j, ok := s.byID[id]
		if !ok || j.Status != StatusQueued {
			continue
		}
		j.Status = StatusRunning
		j.Attempts++
		j.UpdatedAt = time.Now()
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (s *JobStoreMem) Requeue(ctx context.Context, job *Job) error {
	if job == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.byID[job.ID]
	if !ok || j.Terminal() {
		return nil
	}
	j.Status = StatusQueued
	j.UpdatedAt = time.Now()
	s.pending = append(s.pending, job.ID)
	return nil
}

func (s *JobStoreMem) Finish(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.byID[job.ID]
	if !ok {
		return nil
	}
	// 终态不可变
	if j.Terminal() {
		return nil
	}
	j.Status = job.Status
	j.Answer = job.Answer
	j.Error = job.Error
	j.Iterations = job.Iterations
	j.UpdatedAt = time.Now()
	return nil
}

// Close 实现 JobStore
func (s *JobStoreMem) Close() error { return nil }
