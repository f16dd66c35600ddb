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

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-analyst/internal/agent"
	"crypto-analyst/internal/agent/job"
	"crypto-analyst/internal/market"
	"crypto-analyst/internal/model/embedding"
	"crypto-analyst/internal/model/llm"
	"crypto-analyst/internal/pipeline/ingest"
	"crypto-analyst/internal/retrieval"
	"crypto-analyst/internal/storage/cache"
	"crypto-analyst/internal/storage/document"
	"crypto-analyst/internal/tool/builtin"
	"crypto-analyst/pkg/config"
	"crypto-analyst/pkg/log"
	"crypto-analyst/pkg/redaction"
	"crypto-analyst/pkg/secrets"
)

// Bootstrap 统一初始化：供 api、worker 与 CLI 复用，避免在 cmd 内写装配逻辑
type Bootstrap struct {
	Config    *config.Config
	Logger    *log.Logger
	Secrets   secrets.Store
	Documents document.Store
	Cache     cache.Store
	Jobs      job.JobStore
}

// NewBootstrap 根据配置创建 Bootstrap（日志、凭据、文档库、缓存、任务存储）
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	logger, err := log.NewLogger(&log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	sec, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Type,
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.VaultAddr,
			Token:      cfg.Secrets.VaultToken,
			PathPrefix: cfg.Secrets.VaultPath,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("初始化凭据存储失败: %w", err)
	}

	b := &Bootstrap{Config: cfg, Logger: logger, Secrets: sec}
	if b.Documents, err = document.NewStore(ctx, cfg.Storage.Documents); err != nil {
		return nil, fmt.Errorf("初始化文档存储失败: %w", err)
	}
	if b.Cache, err = cache.NewCache(ctx, cfg.Storage.Cache); err != nil {
		b.Close()
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}
	if b.Jobs, err = job.NewStore(ctx, cfg.Jobs); err != nil {
		b.Close()
		return nil, fmt.Errorf("初始化任务存储失败: %w", err)
	}
	logger.Info("bootstrap 完成",
		"documents", cfg.Storage.Documents.Type,
		"cache", cfg.Storage.Cache.Type,
		"jobs", cfg.Jobs.Store,
		"secrets", cfg.Secrets.Type)
	return b, nil
}

// apiKeyName 凭据存储中 provider 对应的 key，如 openai → OPENAI_API_KEY
func apiKeyName(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// apiKey 解析 provider 凭据并登记到脱敏引擎，避免出现在任务错误原因中
func (b *Bootstrap) apiKey(ctx context.Context, provider string, pc config.ProviderConfig) (string, error) {
	key, err := secrets.Resolve(ctx, b.Secrets, pc.APIKey, apiKeyName(provider))
	if err != nil {
		return "", err
	}
	redaction.Register(key)
	return key, nil
}

// Embedder 按 model.defaults.embedding 创建 Embedder
func (b *Bootstrap) Embedder(ctx context.Context) (embedding.Embedder, error) {
	provider, pc, info, err := config.ResolveModel(b.Config.Model.Embedding.Providers, b.Config.Model.Defaults.Embedding)
	if err != nil {
		return nil, err
	}
	key, err := b.apiKey(ctx, provider, pc)
	if err != nil {
		return nil, err
	}
	dim := info.Dimension
	if dim <= 0 {
		dim = b.Config.Storage.Documents.Dimension
	}
	return embedding.New(provider, info.Name, key, pc.BaseURL, dim)
}

// ChatModel 按 model.defaults.llm 创建决策模型；rate_limits.llm 配置了该 provider 时包装限流
func (b *Bootstrap) ChatModel(ctx context.Context) (llm.ChatModel, error) {
	provider, pc, info, err := config.ResolveModel(b.Config.Model.LLM.Providers, b.Config.Model.Defaults.LLM)
	if err != nil {
		return nil, err
	}
	key, err := b.apiKey(ctx, provider, pc)
	if err != nil {
		return nil, err
	}
	m, err := llm.NewChatModel(ctx, provider, info.Name, key, pc.BaseURL, info.Temperature)
	if err != nil {
		return nil, err
	}
	if lim, ok := b.Config.RateLimits.LLM[provider]; ok {
		m = llm.NewRateLimitedModel(m, llm.LimitConfig{
			RequestsPerMinute: lim.RequestsPerMinute,
			MaxConcurrent:     lim.MaxConcurrent,
		})
	}
	return m, nil
}

// PriceLookup 行情查询；cache_ttl 为 0 时不缓存
func (b *Bootstrap) PriceLookup() market.PriceLookup {
	mc := b.Config.Market
	client := market.NewExchangeClient(mc.BaseURL, mc.Quote, config.ParseDuration(mc.Timeout, 10*time.Second))
	ttl := config.ParseDuration(mc.CacheTTL, 30*time.Second)
	if ttl <= 0 || b.Cache == nil {
		return client
	}
	return market.NewCachedLookup(client, b.Cache, ttl)
}

// Loop 装配完整决策循环：模型 + 动作注册表（检索、行情）
func (b *Bootstrap) Loop(ctx context.Context) (*agent.Loop, error) {
	model, err := b.ChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("初始化决策模型失败: %w", err)
	}
	emb, err := b.Embedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("初始化 Embedder 失败: %w", err)
	}
	r, err := retrieval.New(emb, b.Documents, b.Config.Agent.TopK)
	if err != nil {
		return nil, err
	}
	reg, err := builtin.NewRegistry(r, b.Config.Agent.TopK, b.PriceLookup(), b.Config.Market.Quote)
	if err != nil {
		return nil, err
	}
	opts := append(agent.OptionsFromConfig(b.Config.Agent), agent.WithLogger(b.Logger.Component("agent")))
	return agent.NewLoop(model, reg, opts...)
}

// JobService 任务提交与查询
func (b *Bootstrap) JobService() *job.Service {
	return job.NewService(b.Jobs, b.Logger.Component("jobs"))
}

// Scheduler 以 loop 为执行函数创建任务调度器
func (b *Bootstrap) Scheduler(loop *agent.Loop) *job.Scheduler {
	jc := b.Config.Jobs
	return job.NewScheduler(b.Jobs, loop.Run, job.SchedulerConfig{
		MaxConcurrency: jc.MaxConcurrency,
		RetryMax:       jc.RetryMax,
		Backoff:        config.ParseDuration(jc.Backoff, time.Second),
		PollInterval:   config.ParseDuration(jc.PollInterval, 500*time.Millisecond),
		RunTimeout:     config.ParseDuration(jc.RunTimeout, 5*time.Minute),
	}, b.Logger.Component("scheduler"))
}

// Ingest 创建新闻抓取服务
func (b *Bootstrap) Ingest(ctx context.Context) (*ingest.Service, error) {
	emb, err := b.Embedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("初始化 Embedder 失败: %w", err)
	}
	loader := ingest.NewFeedLoader(30 * time.Second)
	return ingest.NewService(loader, emb, b.Documents, b.Config.Ingest, b.Logger.Component("ingest")), nil
}

// Close 释放存储连接
func (b *Bootstrap) Close() {
	if b.Jobs != nil {
		if err := b.Jobs.Close(); err != nil {
			b.Logger.Error("关闭任务存储失败", "error", err)
		}
	}
	if b.Cache != nil {
		if err := b.Cache.Close(); err != nil {
			b.Logger.Error("关闭缓存失败", "error", err)
		}
	}
	if b.Documents != nil {
		if err := b.Documents.Close(); err != nil {
			b.Logger.Error("关闭文档存储失败", "error", err)
		}
	}
}
