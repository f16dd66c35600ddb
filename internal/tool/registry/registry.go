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

package registry

import (
	"fmt"

	"crypto-analyst/internal/model/llm"
	"crypto-analyst/internal/tool"
)

// Registry 静态动作注册表：启动时一次性构造，之后只读，可被多个 LoopRun 并发共享
type Registry struct {
	tools map[tool.Name]tool.Tool
	order []tool.Name
}

// New 创建注册表；名称为空或重复时返回错误
func New(tools ...tool.Tool) (*Registry, error) {
	r := &Registry{tools: make(map[tool.Name]tool.Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("registry: nil tool")
		}
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("registry: tool with empty name")
		}
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("registry: duplicate tool %q", name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// Get 按名称获取动作
func (r *Registry) Get(name string) (tool.Tool, bool) {
	t, ok := r.tools[tool.Name(name)]
	return t, ok
}

// List 按注册顺序返回所有动作
func (r *Registry) List() []tool.Tool {
	list := make([]tool.Tool, 0, len(r.order))
	for _, n := range r.order {
		list = append(list, r.tools[n])
	}
	return list
}

// Schemas 按注册顺序返回所有动作供决策模型使用的描述（name, description, parameters）
func (r *Registry) Schemas() []llm.ToolSpec {
	list := make([]llm.ToolSpec, 0, len(r.order))
	for _, t := range r.List() {
		list = append(list, llm.ToolSpec{
			Name:        string(t.Name()),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return list
}
