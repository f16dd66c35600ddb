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

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Model      ModelConfig      `mapstructure:"model"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Market     MarketConfig     `mapstructure:"market"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	RateLimit    bool `mapstructure:"rate_limit"`
	RateLimitRPS int  `mapstructure:"rate_limit_rps"`
}

// AgentConfig 决策循环配置；进程内只构造一次，所有 LoopRun 只读共享
type AgentConfig struct {
	MaxIterations   int    `mapstructure:"max_iterations"`   // Thinking→Acting 轮数上限，<=0 使用默认 10
	TopK            int    `mapstructure:"top_k"`            // 检索返回条数，<=0 使用默认 3
	ActionTimeout   string `mapstructure:"action_timeout"`   // 单个动作执行超时，如 "20s"；空表示不单独限时
	ParallelActions bool   `mapstructure:"parallel_actions"` // 同一轮内多个动作并发执行（结果顺序仍与请求一致）
}

// JobsConfig 异步任务层配置
type JobsConfig struct {
	Store          string `mapstructure:"store"`           // memory | redis | postgres
	DSN            string `mapstructure:"dsn"`             // store=postgres 时必填
	Addr           string `mapstructure:"addr"`            // store=redis 时 Redis 地址
	DB             int    `mapstructure:"db"`              // Redis DB 编号
	Password       string `mapstructure:"password"`        // Redis 密码，可选
	KeyPrefix      string `mapstructure:"key_prefix"`      // Redis key 前缀，空则 "analysis"
	Scheduler      *bool  `mapstructure:"scheduler"`       // 为 false 时 API 不在进程内执行任务，由 Worker 拉取；未配置时默认 true
	MaxConcurrency int    `mapstructure:"max_concurrency"` // 最大并发执行数，<=0 使用默认 2
	RetryMax       int    `mapstructure:"retry_max"`       // 基础设施错误的最大重试次数（不含首次），<0 视为 0
	Backoff        string `mapstructure:"backoff"`         // 重试前等待时间，空则默认 1s
	PollInterval   string `mapstructure:"poll_interval"`   // 队列为空时的轮询间隔，空则默认 500ms
	RunTimeout     string `mapstructure:"run_timeout"`     // 单个 LoopRun 的宿主超时，空则默认 5m
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// EmbeddingConfig Embedding 模型配置
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name          string  `mapstructure:"name"`
	ContextWindow int     `mapstructure:"context_window"`
	Temperature   float64 `mapstructure:"temperature"`
	Dimension     int     `mapstructure:"dimension"`
	MaxTokens     int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型，格式 "provider.model_key"
type DefaultsConfig struct {
	LLM       string `mapstructure:"llm"`
	Embedding string `mapstructure:"embedding"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Documents DocumentsConfig `mapstructure:"documents"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

// DocumentsConfig 新闻文档存储配置
type DocumentsConfig struct {
	Type      string `mapstructure:"type"`      // memory | postgres
	DSN       string `mapstructure:"dsn"`       // type=postgres 时必填
	Dimension int    `mapstructure:"dimension"` // 向量维度，<=0 使用默认 768
	PoolSize  int    `mapstructure:"pool_size"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// MarketConfig 行情查询配置
type MarketConfig struct {
	BaseURL  string `mapstructure:"base_url"`  // 交易所 REST 根地址，空则 https://api.binance.com
	Quote    string `mapstructure:"quote"`     // 计价币种，空则 USDT
	Timeout  string `mapstructure:"timeout"`   // 空则 10s
	CacheTTL string `mapstructure:"cache_ttl"` // 空则 30s；"0s" 关闭缓存
}

// IngestConfig 新闻抓取配置
type IngestConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FeedURL   string `mapstructure:"feed_url"`   // 空则 CoinDesk RSS
	Schedule  string `mapstructure:"schedule"`   // cron 表达式，空则 "0 * * * *"
	BatchSize int    `mapstructure:"batch_size"` // 每次最多处理条数，<=0 使用默认 20
}

// SecretsConfig 凭据来源配置
type SecretsConfig struct {
	Type       string `mapstructure:"type"` // env | vault
	VaultAddr  string `mapstructure:"vault_addr"`
	VaultToken string `mapstructure:"vault_token"`
	VaultPath  string `mapstructure:"vault_path"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// RateLimitsConfig 限流配置（按 LLM Provider）
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// 默认值
const (
	DefaultMaxIterations = 10
	DefaultTopK          = 3
	DefaultDimension     = 768
	DefaultFeedURL       = "https://www.coindesk.com/arc/outboundfeeds/rss/"
	DefaultSchedule      = "0 * * * *"
	DefaultBatchSize     = 20
)

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	config.ApplyDefaults()
	return &config, nil
}

// expandEnv 展开 "${VAR}" 或 "$VAR" 形式的值；环境变量为空时返回空串，由调用方判定缺失
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	name := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	name = strings.TrimPrefix(name, "$")
	return os.Getenv(name)
}

// replaceEnvVars 替换配置中的环境变量
func replaceEnvVars(config *Config) {
	for _, providers := range []map[string]ProviderConfig{config.Model.LLM.Providers, config.Model.Embedding.Providers} {
		for name, p := range providers {
			p.APIKey = expandEnv(p.APIKey)
			providers[name] = p
		}
	}
	config.Storage.Documents.DSN = expandEnv(config.Storage.Documents.DSN)
	config.Jobs.DSN = expandEnv(config.Jobs.DSN)
	config.Jobs.Password = expandEnv(config.Jobs.Password)
	config.Storage.Cache.Password = expandEnv(config.Storage.Cache.Password)
	config.Secrets.VaultToken = expandEnv(config.Secrets.VaultToken)
}

// ApplyDefaults 填充缺省值，LoadConfig 已调用；手工构造 Config 时可再调用
func (c *Config) ApplyDefaults() {
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = DefaultMaxIterations
	}
	if c.Agent.TopK <= 0 {
		c.Agent.TopK = DefaultTopK
	}
	if c.Storage.Documents.Type == "" {
		c.Storage.Documents.Type = "memory"
	}
	if c.Storage.Documents.Dimension <= 0 {
		c.Storage.Documents.Dimension = DefaultDimension
	}
	if c.Jobs.Store == "" {
		c.Jobs.Store = "memory"
	}
	if c.Jobs.MaxConcurrency <= 0 {
		c.Jobs.MaxConcurrency = 2
	}
	if c.Jobs.RetryMax < 0 {
		c.Jobs.RetryMax = 0
	}
	if c.Ingest.FeedURL == "" {
		c.Ingest.FeedURL = DefaultFeedURL
	}
	if c.Ingest.Schedule == "" {
		c.Ingest.Schedule = DefaultSchedule
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = DefaultBatchSize
	}
	if c.Secrets.Type == "" {
		c.Secrets.Type = "env"
	}
}

// SchedulerEnabled API 进程是否启动进程内 Scheduler
func (j JobsConfig) SchedulerEnabled() bool {
	return j.Scheduler == nil || *j.Scheduler
}

// ResolveModel 解析 "provider.model_key" 形式的默认模型
func ResolveModel(providers map[string]ProviderConfig, ref string) (string, ProviderConfig, ModelInfo, error) {
	provider, key, ok := strings.Cut(ref, ".")
	if !ok || provider == "" || key == "" {
		return "", ProviderConfig{}, ModelInfo{}, fmt.Errorf("invalid model reference %q, want provider.model_key", ref)
	}
	p, ok := providers[provider]
	if !ok {
		return "", ProviderConfig{}, ModelInfo{}, fmt.Errorf("model provider %q not configured", provider)
	}
	info, ok := p.Models[key]
	if !ok {
		return "", ProviderConfig{}, ModelInfo{}, fmt.Errorf("model %q not configured for provider %q", key, provider)
	}
	if info.Name == "" {
		info.Name = key
	}
	return provider, p, info, nil
}

// ParseDuration 解析时长字符串，空或非法时返回 def
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// LoadAPIConfigWithModel 加载 API 配置并合并 model 配置
func LoadAPIConfigWithModel() (*Config, error) {
	return loadWithModel("configs/api.yaml")
}

// LoadWorkerConfigWithModel 加载 Worker 配置并合并 model 配置。
// model 路径解析为与 worker 配置同目录（configs/），避免 cwd 导致 model.yaml 未加载。
func LoadWorkerConfigWithModel() (*Config, error) {
	return loadWithModel("configs/worker.yaml")
}

// LoadWithModel 加载任意配置文件并合并同目录下的 model.yaml，CLI 使用
func LoadWithModel(path string) (*Config, error) {
	return loadWithModel(path)
}

func loadWithModel(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	modelPath := filepath.Join(filepath.Dir(path), "model.yaml")
	if abs, errAbs := filepath.Abs(path); errAbs == nil {
		modelPath = filepath.Join(filepath.Dir(abs), "model.yaml")
	}
	modelCfg, err := LoadConfig(modelPath)
	if err != nil {
		log.Printf("[config] 未加载 model 配置 %q，将无 LLM/Embedding 配置: %v", modelPath, err)
		return cfg, nil
	}
	cfg.Model = modelCfg.Model
	if len(modelCfg.RateLimits.LLM) > 0 {
		cfg.RateLimits = modelCfg.RateLimits
	}
	return cfg, nil
}
