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
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoModel 基于 eino-ext OpenAI ChatModel 的决策模型，适用于 OpenAI 及兼容端点
// （Qwen/DashScope、DeepSeek、Gemini OpenAI 兼容接口等）
type EinoModel struct {
	provider string
	model    string
	chat     model.ToolCallingChatModel
}

// NewEinoModel 创建 OpenAI 兼容决策模型
func NewEinoModel(ctx context.Context, provider, modelName, apiKey, baseURL string, temperature float64) (*EinoModel, error) {
	temp := float32(temperature)
	cfg := &openai.ChatModelConfig{
		Model:       modelName,
		APIKey:      apiKey,
		Temperature: &temp,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	chat, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return &EinoModel{provider: provider, model: modelName, chat: chat}, nil
}

// NewEinoModelWithChat 使用已有 ToolCallingChatModel，测试或自定义组件使用
func NewEinoModelWithChat(provider, modelName string, chat model.ToolCallingChatModel) *EinoModel {
	return &EinoModel{provider: provider, model: modelName, chat: chat}
}

// Provider 返回提供商名称
func (m *EinoModel) Provider() string { return m.provider }

// Model 返回模型名称
func (m *EinoModel) Model() string { return m.model }

// Complete 实现 ChatModel
func (m *EinoModel) Complete(ctx context.Context, messages []Message, tools []ToolSpec) (Message, error) {
	chat := m.chat
	if len(tools) > 0 {
		bound, err := m.chat.WithTools(ToEinoTools(tools))
		if err != nil {
			return Message{}, fmt.Errorf("bind tools: %w", err)
		}
		chat = bound
	}
	out, err := chat.Generate(ctx, ToEinoMessages(messages))
	if err != nil {
		return Message{}, err
	}
	if out == nil {
		return Message{}, fmt.Errorf("empty response from %s", m.model)
	}
	return FromEinoMessage(out), nil
}

// ToEinoMessages 转换为 eino schema 消息
func ToEinoMessages(messages []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		em := &schema.Message{Content: msg.Content}
		switch msg.Role {
		case RoleSystem:
			em.Role = schema.System
		case RoleUser:
			em.Role = schema.User
		case RoleTool:
			em.Role = schema.Tool
			em.ToolCallID = msg.ToolCallID
		default:
			em.Role = schema.Assistant
			for _, tc := range msg.ToolCalls {
				em.ToolCalls = append(em.ToolCalls, schema.ToolCall{
					ID:       tc.ID,
					Type:     "function",
					Function: schema.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
				})
			}
		}
		out = append(out, em)
	}
	return out
}

// FromEinoMessage 将模型输出转换为 assistant 消息
func FromEinoMessage(em *schema.Message) Message {
	msg := Message{Role: RoleAssistant, Content: em.Content}
	for i, tc := range em.ToolCalls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{ID: id, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return msg
}

// ToEinoTools 将动作描述转换为 eino ToolInfo
func ToEinoTools(tools []ToolSpec) []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		required := make(map[string]bool, len(t.Parameters.Required))
		for _, r := range t.Parameters.Required {
			required[r] = true
		}
		params := make(map[string]*schema.ParameterInfo, len(t.Parameters.Properties))
		for name, p := range t.Parameters.Properties {
			params[name] = &schema.ParameterInfo{
				Type:     dataType(p.Type),
				Desc:     p.Description,
				Required: required[name],
			}
		}
		out = append(out, &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return out
}

func dataType(t string) schema.DataType {
	switch t {
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}
