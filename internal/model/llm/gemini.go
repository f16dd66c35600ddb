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
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiModel 直接调用 Gemini generateContent（原生 function calling）
type GeminiModel struct {
	model       string
	apiKey      string
	baseURL     string
	temperature float64
	client      *resty.Client
}

// NewGeminiModel 创建 Gemini 决策模型；model 为空时使用 gemini-2.5-flash
func NewGeminiModel(model, apiKey, baseURL string, temperature float64) *GeminiModel {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	// 单次思考步骤只发起一次请求，失败直接上抛，重试由作业层决定
	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetRetryCount(0)

	return &GeminiModel{model: model, apiKey: apiKey, baseURL: strings.TrimSuffix(baseURL, "/"), temperature: temperature, client: client}
}

// Provider 返回提供商名称
func (c *GeminiModel) Provider() string { return "gemini" }

// Model 返回模型名称
func (c *GeminiModel) Model() string { return c.model }

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// buildContents 转换会话：system 进入 systemInstruction；连续的 tool 结果合并为一条 user 内容
func buildContents(messages []Message) (*geminiContent, []geminiContent) {
	var system *geminiContent
	var contents []geminiContent
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = &geminiContent{Parts: []geminiPart{{Text: msg.Content}}}
		case RoleUser:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		case RoleTool:
			part := geminiPart{FunctionResponse: &geminiFunctionResponse{
				Name:     msg.Name,
				Response: map[string]any{"content": msg.Content},
			}}
			if n := len(contents); n > 0 && contents[n-1].Role == "user" && contents[n-1].Parts[0].FunctionResponse != nil {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{part}})
		default:
			c := geminiContent{Role: "model"}
			if msg.Content != "" {
				c.Parts = append(c.Parts, geminiPart{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := json.RawMessage(tc.Arguments)
				if !json.Valid(args) {
					args = json.RawMessage("{}")
				}
				c.Parts = append(c.Parts, geminiPart{FunctionCall: &geminiFunctionCall{Name: tc.Name, Args: args}})
			}
			if len(c.Parts) == 0 {
				c.Parts = []geminiPart{{Text: ""}}
			}
			contents = append(contents, c)
		}
	}
	return system, contents
}

func functionDeclarations(tools []ToolSpec) []map[string]any {
	decls := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]any, len(t.Parameters.Properties))
		for name, p := range t.Parameters.Properties {
			props[name] = map[string]any{"type": strings.ToUpper(p.Type), "description": p.Description}
		}
		params := map[string]any{"type": "OBJECT", "properties": props}
		if len(t.Parameters.Required) > 0 {
			params["required"] = t.Parameters.Required
		}
		decls = append(decls, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  params,
		})
	}
	return decls
}

// Complete 实现 ChatModel
func (c *GeminiModel) Complete(ctx context.Context, messages []Message, tools []ToolSpec) (Message, error) {
	system, contents := buildContents(messages)
	request := map[string]any{
		"contents":         contents,
		"generationConfig": map[string]any{"temperature": c.temperature},
	}
	if system != nil {
		request["systemInstruction"] = system
	}
	if len(tools) > 0 {
		request["tools"] = []map[string]any{{"functionDeclarations": functionDeclarations(tools)}}
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/models/" + c.model + ":generateContent")
	if err != nil {
		return Message{}, fmt.Errorf("调用 Gemini API 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return Message{}, fmt.Errorf("Gemini API 返回错误 %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Candidates []struct {
			Content      geminiContent `json:"content"`
			FinishReason string        `json:"finishReason"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return Message{}, fmt.Errorf("解析 Gemini 响应失败: %w", err)
	}
	if len(result.Candidates) == 0 {
		return Message{}, fmt.Errorf("Gemini API 没有返回结果")
	}

	out := Message{Role: RoleAssistant}
	var text []string
	for i, p := range result.Candidates[0].Content.Parts {
		if p.FunctionCall != nil {
			id := p.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			args := string(p.FunctionCall.Args)
			if args == "" || args == "null" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: id, Name: p.FunctionCall.Name, Arguments: args})
			continue
		}
		if p.Text != "" {
			text = append(text, p.Text)
		}
	}
	out.Content = strings.Join(text, "")
	if out.Content == "" && len(out.ToolCalls) == 0 {
		return Message{}, fmt.Errorf("Gemini API 没有返回文本 (finishReason=%s)", result.Candidates[0].FinishReason)
	}
	return out, nil
}
