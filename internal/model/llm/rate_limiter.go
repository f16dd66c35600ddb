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

package llm

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"
)

// LimitConfig 单个 Provider 的限流配置
type LimitConfig struct {
	RequestsPerMinute float64
	MaxConcurrent     int
}

// RateLimitedModel 包装任意 ChatModel，在真实调用前执行请求速率与并发限制
type RateLimitedModel struct {
	inner     ChatModel
	limiter   *rate.Limiter
	semaphore chan struct{}
}

// NewRateLimitedModel cfg 各项 <=0 时不限制对应维度
func NewRateLimitedModel(inner ChatModel, cfg LimitConfig) *RateLimitedModel {
	m := &RateLimitedModel{inner: inner}
	if cfg.RequestsPerMinute > 0 {
		// burst = 2 秒的配额，至少 1
		burst := int(math.Max(1, cfg.RequestsPerMinute/60*2))
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), burst)
	}
	if cfg.MaxConcurrent > 0 {
		m.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	return m
}

// Provider 返回提供商名称
func (m *RateLimitedModel) Provider() string { return m.inner.Provider() }

// Model 返回模型名称
func (m *RateLimitedModel) Model() string { return m.inner.Model() }

// Complete 等待许可后调用 inner
func (m *RateLimitedModel) Complete(ctx context.Context, messages []Message, tools []ToolSpec) (Message, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return Message{}, fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if m.semaphore != nil {
		select {
		case m.semaphore <- struct{}{}:
			defer func() { <-m.semaphore }()
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
	return m.inner.Complete(ctx, messages, tools)
}
