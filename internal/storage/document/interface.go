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

// Package document 新闻文档存储：保存带向量的文章并按余弦距离检索
package document

import (
	"context"
	"time"
)

// Document 新闻文章；URL 为唯一键，写入后向量不再变化
type Document struct {
	ID          int64     `json:"-"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Embedding   []float64 `json:"-"`
}

// Ranked 文档及其与查询向量的余弦距离（越小越相似）
type Ranked struct {
	Document
	Distance float64 `json:"distance"`
}

// Store 文档存储接口
type Store interface {
	// FindByURLs 返回 urls 中已存在的子集
	FindByURLs(ctx context.Context, urls []string) ([]string, error)
	// SimilaritySearch 按距离升序返回至多 limit 条；距离相同时按写入顺序
	SimilaritySearch(ctx context.Context, vector []float64, limit int) ([]Ranked, error)
	// BulkUpsert 以 URL 为唯一键写入，返回写入条数
	BulkUpsert(ctx context.Context, docs []Document) (int, error)
	// Count 返回文档总数
	Count(ctx context.Context) (int, error)
	// Dimension 存储的向量维度
	Dimension() int
	// Close 释放资源
	Close() error
}

// TitleMaxLen 标题最大长度，与表结构 varchar(255) 一致
const TitleMaxLen = 255

// Normalize 截断超长标题并去除首尾空白
func (d Document) Normalize() Document {
	if r := []rune(d.Title); len(r) > TitleMaxLen {
		d.Title = string(r[:TitleMaxLen])
	}
	return d
}
