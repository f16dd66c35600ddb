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

package embedding

import (
	"context"
	"fmt"

	apperrors "crypto-analyst/pkg/errors"
)

// Embedder 文本向量化接口；同一存储的写入与查询必须使用同一维度
type Embedder interface {
	// Embed 对单条文本做向量化
	Embed(ctx context.Context, text string) ([]float64, error)
	// EmbedBatch 返回与 texts 一一对应、顺序一致的向量
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	// Dimension 返回向量维度
	Dimension() int
	// Model 返回模型名称
	Model() string
}

// checkDimensions 校验上游返回的向量条数与维度
func checkDimensions(vectors [][]float64, n, dimension int) error {
	if len(vectors) != n {
		return fmt.Errorf("embedding: expected %d vectors, got %d", n, len(vectors))
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return apperrors.Configf("embedding %d has dimension %d, configured dimension is %d", i, len(v), dimension)
		}
	}
	return nil
}

// embedOne 以 EmbedBatch 实现单条向量化
func embedOne(ctx context.Context, e Embedder, text string) ([]float64, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}
