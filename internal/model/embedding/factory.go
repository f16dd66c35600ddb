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
	apperrors "crypto-analyst/pkg/errors"
)

// New 按 provider 创建 Embedder；apiKey 为空视为配置错误
func New(provider, model, apiKey, baseURL string, dimension int) (Embedder, error) {
	if apiKey == "" {
		return nil, apperrors.Configf("embedding provider %s: missing api key", provider)
	}
	switch provider {
	case "gemini":
		return NewGeminiEmbedder(model, apiKey, baseURL, dimension), nil
	case "openai", "qwen", "deepseek", "ollama":
		return NewOpenAIEmbedder(model, apiKey, baseURL, dimension), nil
	default:
		return nil, apperrors.Configf("unsupported embedding provider: %s", provider)
	}
}
