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
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// status 与 JobStatus 一致：0=Queued, 1=Running, 2=Completed, 3=Failed
const (
	pgStatusQueued    = 0
	pgStatusRunning   = 1
	pgStatusCompleted = 2
	pgStatusFailed    = 3
)

const jobColumns = `id, query, status, answer, error, attempts, iterations, created_at, updated_at`

// JobStorePg Postgres 实现：analysis_jobs 表，供 API 与 Worker 共享
type JobStorePg struct {
	pool *pgxpool.Pool
}

// NewJobStorePg 创建基于 PostgreSQL 的 JobStore；表结构由 migrate 子命令创建
func NewJobStorePg(ctx context.Context, dsn string) (*JobStorePg, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &JobStorePg{pool: pool}, nil
}

// Close 关闭连接池
func (s *JobStorePg) Close() error {
	s.pool.Close()
	return nil
}

func statusToPg(s JobStatus) int {
	switch s {
	case StatusRunning:
		return pgStatusRunning
	case StatusCompleted:
		return pgStatusCompleted
	case StatusFailed:
		return pgStatusFailed
	default:
		return pgStatusQueued
	}
}

func pgToStatus(i int) JobStatus {
	switch i {
	case pgStatusRunning:
		return StatusRunning
	case pgStatusCompleted:
		return StatusCompleted
	case pgStatusFailed:
		return StatusFailed
	default:
		return StatusQueued
	}
}

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var status int
	if err := row.Scan(&j.ID, &j.Query, &status, &j.Answer, &j.Error, &j.Attempts, &j.Iterations, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Status = pgToStatus(status)
	return &j, nil
}

func (s *JobStorePg) Create(ctx context.Context, j *Job) (string, error) {
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_jobs (id, query, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		j.ID, j.Query, pgStatusQueued, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return "", err
	}
	return j.ID, nil
}

func (s *JobStorePg) Get(ctx context.Context, jobID string) (*Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return j, nil
}

// ClaimNextPending 以 FOR UPDATE SKIP LOCKED 认领最早入队的一条，多个 Worker 可并发认领
func (s *JobStorePg) ClaimNextPending(ctx context.Context) (*Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE analysis_jobs SET status = $1, attempts = attempts + 1, updated_at = now()
		 WHERE id = (SELECT id FROM analysis_jobs WHERE status = $2 ORDER BY updated_at ASC, created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED)
		 RETURNING `+jobColumns,
		pgStatusRunning, pgStatusQueued))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return j, nil
}

func (s *JobStorePg) Requeue(ctx context.Context, j *Job) error {
	if j == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		pgStatusQueued, j.ID, pgStatusRunning)
	return err
}

func (s *JobStorePg) Finish(ctx context.Context, j *Job) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs SET status = $1, answer = $2, error = $3, iterations = $4, updated_at = now()
		 WHERE id = $5 AND status NOT IN ($6, $7)`,
		statusToPg(j.Status), j.Answer, j.Error, j.Iterations, j.ID, pgStatusCompleted, pgStatusFailed)
	return err
}
