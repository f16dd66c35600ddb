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

package agent

import (
	"fmt"

	"crypto-analyst/internal/model/llm"
)

// Kind 会话消息类别
type Kind int

const (
	KindSystem Kind = iota
	KindUser
	KindModelResponse
	KindActionResult
)

func (k Kind) String() string {
	switch k {
	case KindSystem:
		return "system"
	case KindUser:
		return "user"
	case KindModelResponse:
		return "model_response"
	case KindActionResult:
		return "action_result"
	default:
		return "unknown"
	}
}

// KindOf 由消息角色得到类别
func KindOf(m llm.Message) Kind {
	switch m.Role {
	case llm.RoleSystem:
		return KindSystem
	case llm.RoleUser:
		return KindUser
	case llm.RoleTool:
		return KindActionResult
	default:
		return KindModelResponse
	}
}

// History 单次 LoopRun 的会话历史，仅追加。
// 顺序固定为 System, User, (ModelResponse, ActionResult+)*，可选地以一条 ModelResponse 结尾。
type History struct {
	msgs []llm.Message
	// pending 最近一条 ModelResponse 中尚未写入结果的动作请求数
	pending int
}

// NewHistory 以系统指令与用户问题初始化
func NewHistory(system, query string) *History {
	return &History{msgs: []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: query},
	}}
}

// AppendModelResponse 追加模型响应；上一条动作请求必须已全部有结果
func (h *History) AppendModelResponse(m llm.Message) error {
	if h.pending > 0 {
		return fmt.Errorf("history: %d action results still pending", h.pending)
	}
	last := KindOf(h.msgs[len(h.msgs)-1])
	if last != KindUser && last != KindActionResult {
		return fmt.Errorf("history: model response cannot follow %s", last)
	}
	m.Role = llm.RoleAssistant
	m.ToolCalls = append([]llm.ToolCall(nil), m.ToolCalls...)
	h.msgs = append(h.msgs, m)
	h.pending = len(m.ToolCalls)
	return nil
}

// AppendActionResult 追加动作结果；必须对应最近一条 ModelResponse 中的下一个请求
func (h *History) AppendActionResult(callID, name, content string) error {
	if h.pending == 0 {
		return fmt.Errorf("history: no pending action request for %q", callID)
	}
	resp := h.lastModelResponse()
	want := resp.ToolCalls[len(resp.ToolCalls)-h.pending]
	if want.ID != callID {
		return fmt.Errorf("history: action result %q out of order, expected %q", callID, want.ID)
	}
	h.msgs = append(h.msgs, llm.Message{Role: llm.RoleTool, ToolCallID: callID, Name: name, Content: content})
	h.pending--
	return nil
}

func (h *History) lastModelResponse() llm.Message {
	for i := len(h.msgs) - 1; i >= 0; i-- {
		if h.msgs[i].Role == llm.RoleAssistant {
			return h.msgs[i]
		}
	}
	return llm.Message{}
}

// Messages 返回副本
func (h *History) Messages() []llm.Message {
	out := make([]llm.Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Len 消息条数
func (h *History) Len() int { return len(h.msgs) }

// Last 最后一条消息
func (h *History) Last() llm.Message { return h.msgs[len(h.msgs)-1] }

// Validate 校验完整历史满足顺序约束
func Validate(msgs []llm.Message) error {
	if len(msgs) < 2 || KindOf(msgs[0]) != KindSystem || KindOf(msgs[1]) != KindUser {
		return fmt.Errorf("history must start with system and user messages")
	}
	pending := 0
	for i := 2; i < len(msgs); i++ {
		switch KindOf(msgs[i]) {
		case KindModelResponse:
			if pending > 0 {
				return fmt.Errorf("message %d: model response while %d results pending", i, pending)
			}
			if KindOf(msgs[i-1]) == KindModelResponse {
				return fmt.Errorf("message %d: consecutive model responses", i)
			}
			pending = len(msgs[i].ToolCalls)
		case KindActionResult:
			if pending == 0 {
				return fmt.Errorf("message %d: action result without request", i)
			}
			pending--
		default:
			return fmt.Errorf("message %d: unexpected %s message", i, KindOf(msgs[i]))
		}
	}
	return nil
}
