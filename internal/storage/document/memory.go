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

package document

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	apperrors "crypto-analyst/pkg/errors"
)

// MemoryStore 内存文档存储实现
type MemoryStore struct {
	mu        sync.RWMutex
	docs      []*Document // 写入顺序
	byURL     map[string]*Document
	dimension int
	nextID    int64
}

// NewMemoryStore 创建新的内存文档存储
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		byURL:     make(map[string]*Document),
		dimension: dimension,
	}
}

// Dimension 存储的向量维度
func (s *MemoryStore) Dimension() int { return s.dimension }

// FindByURLs 返回已存在的 URL
func (s *MemoryStore) FindByURLs(ctx context.Context, urls []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var existing []string
	for _, u := range urls {
		if _, ok := s.byURL[u]; ok {
			existing = append(existing, u)
		}
	}
	return existing, nil
}

// BulkUpsert 按 URL 插入或覆盖；覆盖时保留原写入位置，未携带向量时沿用已有向量
func (s *MemoryStore) BulkUpsert(ctx context.Context, docs []Document) (int, error) {
	for _, d := range docs {
		if d.URL == "" {
			return 0, fmt.Errorf("document %q: %w: empty url", d.Title, apperrors.ErrInvalidArg)
		}
		if d.Embedding != nil && len(d.Embedding) != s.dimension {
			return 0, apperrors.Configf("vector dimension %d does not match store dimension %d", len(d.Embedding), s.dimension)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range docs {
		d = d.Normalize()
		if cur, ok := s.byURL[d.URL]; ok {
			d.ID = cur.ID
			if d.Embedding == nil {
				d.Embedding = cur.Embedding
			}
			*cur = d
			continue
		}
		s.nextID++
		d.ID = s.nextID
		stored := d
		s.docs = append(s.docs, &stored)
		s.byURL[d.URL] = &stored
	}
	return len(docs), nil
}

// SimilaritySearch 计算余弦距离并按升序返回
func (s *MemoryStore) SimilaritySearch(ctx context.Context, vector []float64, limit int) ([]Ranked, error) {
	if len(vector) != s.dimension {
		return nil, apperrors.Configf("query dimension %d does not match store dimension %d", len(vector), s.dimension)
	}

	s.mu.RLock()
	results := make([]Ranked, 0, len(s.docs))
	for _, d := range s.docs {
		if d.Embedding == nil {
			continue
		}
		results = append(results, Ranked{Document: *d, Distance: CosineDistance(vector, d.Embedding)})
	}
	s.mu.RUnlock()

	// SliceStable 保证距离相同时维持写入顺序
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count 返回文档总数
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Close 内存实现无需释放
func (s *MemoryStore) Close() error { return nil }

// CosineDistance 1 - cos(a, b)；任一向量为零向量时返回 1
func CosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
