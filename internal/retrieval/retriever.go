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

// Package retrieval 将查询文本向量化后在文档存储中做相似度检索
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"crypto-analyst/internal/model/embedding"
	"crypto-analyst/internal/storage/document"
	apperrors "crypto-analyst/pkg/errors"
	"crypto-analyst/pkg/metrics"
	"crypto-analyst/pkg/utils"
)

// DefaultTopK 默认返回条数
const DefaultTopK = 3

// Retriever 检索器：Embedder + 文档存储；只读，不修改存储
type Retriever struct {
	embedder embedding.Embedder
	store    document.Store
	topK     int
}

// New 创建检索器；Embedder 与存储的向量维度不一致时返回 ErrConfiguration
func New(embedder embedding.Embedder, store document.Store, topK int) (*Retriever, error) {
	if embedder == nil || store == nil {
		return nil, apperrors.Configf("retriever requires an embedder and a document store")
	}
	if embedder.Dimension() != store.Dimension() {
		return nil, apperrors.Configf("embedding dimension %d does not match document store dimension %d",
			embedder.Dimension(), store.Dimension())
	}
	return &Retriever{embedder: embedder, store: store, topK: utils.DefaultInt(topK, DefaultTopK)}, nil
}

// Retrieve 返回与 query 最相似的至多 topK 条文档，按余弦距离升序；topK<=0 使用默认值。
// 存储为空时返回空切片。
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]document.Ranked, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("retrieve: %w: empty query", apperrors.ErrInvalidArg)
	}
	if topK <= 0 {
		topK = r.topK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "embed query")
	}
	if len(vec) != r.store.Dimension() {
		return nil, apperrors.Configf("query embedding dimension %d does not match document store dimension %d",
			len(vec), r.store.Dimension())
	}

	results, err := r.store.SimilaritySearch(ctx, vec, topK)
	if err != nil {
		return nil, apperrors.Wrap(err, "similarity search")
	}
	if results == nil {
		results = []document.Ranked{}
	}
	metrics.RetrievalResults.Observe(float64(len(results)))
	return results, nil
}
