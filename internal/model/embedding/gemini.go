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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiEmbedder 调用 Gemini batchEmbedContents
type GeminiEmbedder struct {
	model     string
	apiKey    string
	baseURL   string
	dimension int
	client    *resty.Client
}

// NewGeminiEmbedder 创建 Gemini Embedding 客户端；model 为空时使用 text-embedding-004
func NewGeminiEmbedder(model, apiKey, baseURL string, dimension int) *GeminiEmbedder {
	if model == "" {
		model = "text-embedding-004"
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if dimension <= 0 {
		dimension = 768
	}
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &GeminiEmbedder{model: model, apiKey: apiKey, baseURL: baseURL, dimension: dimension, client: client}
}

// Model 返回模型名称
func (e *GeminiEmbedder) Model() string { return e.model }

// Dimension 返回向量维度
func (e *GeminiEmbedder) Dimension() int { return e.dimension }

// Embed 对单条文本做向量化
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return embedOne(ctx, e, text)
}

// EmbedBatch 批量向量化
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := "models/" + e.model
	requests := make([]map[string]interface{}, len(texts))
	for i, t := range texts {
		requests[i] = map[string]interface{}{
			"model":                model,
			"content":              map[string]interface{}{"parts": []map[string]string{{"text": t}}},
			"outputDimensionality": e.dimension,
		}
	}

	response, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", e.apiKey).
		SetBody(map[string]interface{}{"requests": requests}).
		Post(e.baseURL + "/" + model + ":batchEmbedContents")
	if err != nil {
		return nil, fmt.Errorf("调用 Gemini Embedding API 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("Gemini Embedding API 返回错误 %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Embeddings []struct {
			Values []float64 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 Gemini Embedding 响应失败: %w", err)
	}

	out := make([][]float64, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	if err := checkDimensions(out, len(texts), e.dimension); err != nil {
		return nil, err
	}
	return out, nil
}
