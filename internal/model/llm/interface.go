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

	"crypto-analyst/internal/tool"
)

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall 模型请求的一次动作调用
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // 原始 JSON
}

// Message 会话消息。assistant 消息可带 ToolCalls；tool 消息通过 ToolCallID 关联请求
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"` // tool 消息对应的动作名
}

// ToolSpec 提供给模型的动作描述
type ToolSpec struct {
	Name        string
	Description string
	Parameters  tool.Schema
}

// ChatModel 决策模型：给定完整会话历史与可用动作，返回最终回答或动作请求
type ChatModel interface {
	Complete(ctx context.Context, messages []Message, tools []ToolSpec) (Message, error)
	Provider() string
	Model() string
}
