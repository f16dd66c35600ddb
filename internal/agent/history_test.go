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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-analyst/internal/model/llm"
)

func TestHistory_AppendOrder(t *testing.T) {
	h := NewHistory("sys", "q")
	assert.Equal(t, 2, h.Len())

	require.NoError(t, h.AppendModelResponse(llm.Message{ToolCalls: []llm.ToolCall{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}}))
	// 动作结果未写完不能追加新的模型响应
	assert.Error(t, h.AppendModelResponse(llm.Message{Content: "early"}))
	// 必须按请求顺序写入结果
	assert.Error(t, h.AppendActionResult("2", "b", "x"))
	require.NoError(t, h.AppendActionResult("1", "a", "x"))
	require.NoError(t, h.AppendActionResult("2", "b", "y"))
	assert.Error(t, h.AppendActionResult("3", "c", "z"))

	require.NoError(t, h.AppendModelResponse(llm.Message{Content: "final"}))
	assert.Error(t, h.AppendModelResponse(llm.Message{Content: "again"}))
	assert.Equal(t, "final", h.Last().Content)
	assert.Equal(t, llm.RoleAssistant, h.Last().Role)
	assert.NoError(t, Validate(h.Messages()))
}

func TestHistory_MessagesIsCopy(t *testing.T) {
	h := NewHistory("sys", "q")
	msgs := h.Messages()
	msgs[1].Content = "changed"
	assert.Equal(t, "q", h.Messages()[1].Content)
}

func TestValidate(t *testing.T) {
	sys := llm.Message{Role: llm.RoleSystem}
	user := llm.Message{Role: llm.RoleUser}
	req := llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "1"}}}
	res := llm.Message{Role: llm.RoleTool, ToolCallID: "1"}
	final := llm.Message{Role: llm.RoleAssistant, Content: "ok"}

	cases := []struct {
		name string
		msgs []llm.Message
		ok   bool
	}{
		{"minimal", []llm.Message{sys, user}, true},
		{"complete", []llm.Message{sys, user, req, res, final}, true},
		{"missing system", []llm.Message{user, final}, false},
		{"result without request", []llm.Message{sys, user, res}, false},
		{"extra result", []llm.Message{sys, user, req, res, res}, false},
		{"answer before result", []llm.Message{sys, user, req, final}, false},
		{"two answers", []llm.Message{sys, user, final, final}, false},
		{"second user", []llm.Message{sys, user, final, user}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.msgs)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
