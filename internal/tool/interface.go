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

package tool

import (
	"context"
)

// Name 动作标识；注册表在启动时一次性解析，运行期不做反射查找
type Name string

// 内置动作
const (
	RetrieveInternalContext Name = "retrieve_internal_context"
	GetPrice                Name = "get_price"
)

// Schema 动作入参的 JSON Schema（object 类型）
type Schema struct {
	Type        string                    `json:"type"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
}

// SchemaProperty 表示 Schema 中单个属性的描述
type SchemaProperty struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Result 动作执行结果；Err 非空表示失败，内容作为结果文本回填给模型
type Result struct {
	Content string `json:"content"`
	Err     string `json:"error,omitempty"`
}

// Tool 决策循环可调用的动作
type Tool interface {
	Name() Name
	// Description 原样提供给模型，用于判断何时调用
	Description() string
	Schema() Schema
	// Execute 执行动作；可预期的失败应通过 Result.Err 返回，error 仅用于无法归类的异常
	Execute(ctx context.Context, input map[string]any) (Result, error)
}

// Call 模型发起的一次动作请求；Arguments 为模型给出的原始 JSON
type Call struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
