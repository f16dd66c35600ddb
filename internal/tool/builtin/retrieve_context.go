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

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crypto-analyst/internal/storage/document"
	"crypto-analyst/internal/tool"
	apperrors "crypto-analyst/pkg/errors"
)

// NoRelevantNews 检索为空时返回的固定文本；空结果是正常结果而非失败
const NoRelevantNews = "No relevant news found."

// Retriever 检索能力，由 retrieval.Retriever 实现
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]document.Ranked, error)
}

// RetrieveContextTool 实现 retrieve_internal_context：在内部新闻库中做语义检索
type RetrieveContextTool struct {
	retriever Retriever
	topK      int
}

// NewRetrieveContextTool 创建 retrieve_internal_context 动作
func NewRetrieveContextTool(r Retriever, topK int) *RetrieveContextTool {
	return &RetrieveContextTool{retriever: r, topK: topK}
}

// Name 实现 tool.Tool
func (t *RetrieveContextTool) Name() tool.Name { return tool.RetrieveInternalContext }

// Description 实现 tool.Tool
func (t *RetrieveContextTool) Description() string {
	return "Searches the internal crypto news database for articles semantically related to the query. " +
		"Returns a JSON list of {title, summary, url, published_at}. Use this first for any market question."
}

// Schema 实现 tool.Tool
func (t *RetrieveContextTool) Schema() tool.Schema {
	return tool.Schema{
		Type:        "object",
		Description: "检索参数",
		Properties: map[string]tool.SchemaProperty{
			"query": {Type: "string", Description: "Free-text search query, e.g. \"bitcoin ETF inflows\""},
		},
		Required: []string{"query"},
	}
}

// articleView 返回给模型的文章字段
type articleView struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// Execute 实现 tool.Tool
func (t *RetrieveContextTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	if t.retriever == nil {
		return tool.Result{Err: "retrieval is not configured"}, nil
	}
	query, _ := input["query"].(string)
	results, err := t.retriever.Retrieve(ctx, query, t.topK)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrConfiguration) {
			return tool.Result{}, err
		}
		return tool.Result{Err: fmt.Sprintf("news search failed: %v", err)}, nil
	}
	if len(results) == 0 {
		return tool.Result{Content: NoRelevantNews}, nil
	}

	views := make([]articleView, len(results))
	for i, r := range results {
		views[i] = articleView{Title: r.Title, Summary: r.Summary, URL: r.URL, PublishedAt: r.PublishedAt}
	}
	out, err := json.Marshal(views)
	if err != nil {
		return tool.Result{Err: err.Error()}, nil
	}
	return tool.Result{Content: string(out)}, nil
}
