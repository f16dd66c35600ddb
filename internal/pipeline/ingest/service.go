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
	"time"

	"crypto-analyst/internal/model/embedding"
	"crypto-analyst/internal/storage/document"
	"crypto-analyst/pkg/config"
	"crypto-analyst/pkg/log"
	"crypto-analyst/pkg/metrics"
)

// Loader 拉取 feed 条目
type Loader interface {
	Load(ctx context.Context, url string) ([]FeedItem, error)
}

// Report 一次入库的统计
type Report struct {
	Fetched  int
	Skipped  int // 缺字段或已存在
	Stored   int
	Duration time.Duration
}

// Service 新闻入库：拉取 → 去重 → 向量化 → 批量写入
type Service struct {
	loader    Loader
	embedder  embedding.Embedder
	store     document.Store
	feedURL   string
	batchSize int
	logger    *log.Logger
}

// NewService 创建入库服务
func NewService(loader Loader, embedder embedding.Embedder, store document.Store, cfg config.IngestConfig, logger *log.Logger) *Service {
	if cfg.FeedURL == "" {
		cfg.FeedURL = config.DefaultFeedURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = config.DefaultBatchSize
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		loader:    loader,
		embedder:  embedder,
		store:     store,
		feedURL:   cfg.FeedURL,
		batchSize: cfg.BatchSize,
		logger:    logger,
	}
}

// Run 执行一次入库；只处理 feed 中前 batchSize 条
func (s *Service) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	items, err := s.loader.Load(ctx, s.feedURL)
	if err != nil {
		metrics.IngestArticlesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(items) > s.batchSize {
		items = items[:s.batchSize]
	}
	rep := &Report{Fetched: len(items)}
	s.logger.Info("feed 拉取完成", "url", s.feedURL, "items", len(items))

	docs, err := s.fresh(ctx, items)
	if err != nil {
		return nil, err
	}
	rep.Skipped = len(items) - len(docs)
	metrics.IngestArticlesTotal.WithLabelValues("skipped").Add(float64(rep.Skipped))
	if len(docs) == 0 {
		rep.Duration = time.Since(start)
		return rep, nil
	}

	stored, err := s.Index(ctx, docs)
	if err != nil {
		return nil, err
	}
	rep.Stored = stored
	rep.Duration = time.Since(start)
	metrics.IngestArticlesTotal.WithLabelValues("stored").Add(float64(stored))
	s.logger.Info("新闻入库完成", "stored", stored, "skipped", rep.Skipped, "duration", rep.Duration)
	return rep, nil
}

// fresh 丢弃缺少标题或链接、批内重复以及库中已存在的条目
func (s *Service) fresh(ctx context.Context, items []FeedItem) ([]document.Document, error) {
	seen := make(map[string]bool, len(items))
	var urls []string
	var candidates []document.Document
	for _, it := range items {
		if it.Title == "" || it.Link == "" || seen[it.Link] {
			continue
		}
		seen[it.Link] = true
		urls = append(urls, it.Link)
		published := it.Published
		if published.IsZero() {
			published = time.Now().UTC()
		}
		candidates = append(candidates, document.Document{
			Title:       it.Title,
			Summary:     it.Summary,
			URL:         it.Link,
			PublishedAt: published,
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	existing, err := s.store.FindByURLs(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("lookup existing articles: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, u := range existing {
		known[u] = true
	}
	out := candidates[:0]
	for _, d := range candidates {
		if !known[d.URL] {
			out = append(out, d)
		}
	}
	return out, nil
}

// Index 为文档生成向量（"title summary"）并按 url 写入
func (s *Service) Index(ctx context.Context, docs []document.Document) (int, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = EmbeddingText(d)
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed articles: %w", err)
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}
	return s.store.BulkUpsert(ctx, docs)
}

// EmbeddingText 文档向量化所用文本
func EmbeddingText(d document.Document) string {
	return d.Title + " " + d.Summary
}
