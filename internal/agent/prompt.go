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

// DefaultSystemPrompt 分析师角色与检索优先的调用协议
const DefaultSystemPrompt = `You are a senior crypto analyst. You are skeptical, data-driven, and concise.
PROTOCOL:
1. ALWAYS search the internal news database (RAG) first.
2. If news is relevant, check the current price using the tool.
3. Synthesize both to answer if there is an opportunity.
4. If you use a tool, cite it in your final answer.`
