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

	apperrors "crypto-analyst/pkg/errors"
)

// NewChatModel 按 provider 创建决策模型：gemini 使用原生接口，其余走 OpenAI 兼容接口
func NewChatModel(ctx context.Context, provider, model, apiKey, baseURL string, temperature float64) (ChatModel, error) {
	if apiKey == "" {
		return nil, apperrors.Configf("LLM provider %s: missing api key", provider)
	}
	switch provider {
	case "gemini":
		return NewGeminiModel(model, apiKey, baseURL, temperature), nil
	case "openai", "qwen", "deepseek", "gemini_openai":
		return NewEinoModel(ctx, provider, model, apiKey, baseURL, temperature)
	default:
		return nil, apperrors.Configf("unsupported LLM provider: %s", provider)
	}
}
