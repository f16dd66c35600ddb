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
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobStoreRedis Redis 实现：每个 Job 一个 hash，Queued 的 ID 存放在 list 中（RPUSH 入队、LPOP 认领）
type JobStoreRedis struct {
	client *redis.Client
	prefix string
}

// NewJobStoreRedis 连接 Redis 并创建 JobStore
func NewJobStoreRedis(ctx context.Context, addr, password string, db int, prefix string) (*JobStoreRedis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis job store: %w", err)
	}
	return NewJobStoreRedisWithClient(client, prefix), nil
}

// NewJobStoreRedisWithClient 复用已有客户端
func NewJobStoreRedisWithClient(client *redis.Client, prefix string) *JobStoreRedis {
	return &JobStoreRedis{client: client, prefix: prefix}
}

func (s *JobStoreRedis) jobKey(id string) string { return s.prefix + ":job:" + id }
func (s *JobStoreRedis) queueKey() string        { return s.prefix + ":queue" }

func (s *JobStoreRedis) Create(ctx context.Context, j *Job) (string, error) {
	if j == nil {
		return "", errors.New("job is nil")
	}
	if j.ID == "" {
		j.ID = newJobID()
	}
	now := time.Now()
	j.Status = StatusQueued
	j.CreatedAt = now
	j.UpdatedAt = now

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.jobKey(j.ID), map[string]interface{}{
		"id":         j.ID,
		"query":      j.Query,
		"status":     StatusQueued.String(),
		"answer":     "",
		"error":      "",
		"attempts":   0,
		"iterations": 0,
		"created_at": now.Format(time.RFC3339Nano),
		"updated_at": now.Format(time.RFC3339Nano),
	})
	pipe.RPush(ctx, s.queueKey(), j.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return j.ID, nil
}

func (s *JobStoreRedis) Get(ctx context.Context, jobID string) (*Job, error) {
	vals, err := s.client.HGetAll(ctx, s.jobKey(jobID)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return jobFromHash(vals), nil
}

func jobFromHash(vals map[string]string) *Job {
	j := &Job{
		ID:     vals["id"],
		Query:  vals["query"],
		Status: ParseStatus(vals["status"]),
		Answer: vals["answer"],
		Error:  vals["error"],
	}
	j.Attempts, _ = strconv.Atoi(vals["attempts"])
	j.Iterations, _ = strconv.Atoi(vals["iterations"])
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, vals["created_at"])
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, vals["updated_at"])
	return j
}

// ClaimNextPending LPOP 保证同一 ID 只被一个 Worker 取得
func (s *JobStoreRedis) ClaimNextPending(ctx context.Context) (*Job, error) {
	for {
		id, err := s.client.LPop(ctx, s.queueKey()).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		j, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if j == nil || j.Status != StatusQueued {
			continue
		}
		now := time.Now()
		pipe := s.client.TxPipeline()
		pipe.HSet(ctx, s.jobKey(id), "status", StatusRunning.String(), "updated_at", now.Format(time.RFC3339Nano))
		attempts := pipe.HIncrBy(ctx, s.jobKey(id), "attempts", 1)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
		j.Status = StatusRunning
		j.Attempts = int(attempts.Val())
		j.UpdatedAt = now
		return j, nil
	}
}

func (s *JobStoreRedis) Requeue(ctx context.Context, j *Job) error {
	if j == nil {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.jobKey(j.ID), "status", StatusQueued.String(), "updated_at", time.Now().Format(time.RFC3339Nano))
	pipe.RPush(ctx, s.queueKey(), j.ID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *JobStoreRedis) Finish(ctx context.Context, j *Job) error {
	cur, err := s.Get(ctx, j.ID)
	if err != nil || cur == nil || cur.Terminal() {
		return err
	}
	return s.client.HSet(ctx, s.jobKey(j.ID), map[string]interface{}{
		"status":     j.Status.String(),
		"answer":     j.Answer,
		"error":      j.Error,
		"iterations": j.Iterations,
		"updated_at": time.Now().Format(time.RFC3339Nano),
	}).Err()
}

// Close 关闭客户端
func (s *JobStoreRedis) Close() error {
	return s.client.Close()
}
