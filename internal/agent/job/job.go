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
	"time"

	"github.com/google/uuid"
)

// JobStatus 分析任务状态
type JobStatus int

const (
	StatusQueued JobStatus = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s JobStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseStatus 由字符串还原状态；未知值按 Queued 处理
func ParseStatus(s string) JobStatus {
	switch s {
	case "running":
		return StatusRunning
	case "completed":
		return StatusCompleted
	case "failed":
		return StatusFailed
	default:
		return StatusQueued
	}
}

// Job 一次提交的问题：Submit 创建 Job，由 Scheduler 拉取并执行决策循环，终态后不可变
type Job struct {
	ID     string
	Query  string
	Status JobStatus
	// Answer 完成时的最终回答
	Answer string
	// Error 失败原因
	Error string
	// Attempts 已开始执行的次数（含首次），供 Scheduler 重试判断
	Attempts int
	// Iterations 决策循环实际执行的 Thinking 步数
	Iterations int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Terminal 是否已到终态
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

func newJobID() string {
	return "job-" + uuid.New().String()
}
