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

package redaction

// Mode 脱敏模式
type Mode string

const (
	ModeRedact Mode = "redact" // 替换为 "***REDACTED***"
	ModeHash   Mode = "hash"   // 替换为截断的 SHA256，便于比对同一凭据
)

// Policy 文本脱敏策略；作用于错误原因、日志等对外可见的字符串
type Policy struct {
	Params []string // URL 查询参数名，如 key、api_key
	Bearer bool     // 是否遮蔽 "Bearer <token>"
	Mode   Mode
	Salt   string // Hash 模式的 salt（可选）
}

// DefaultPolicy 覆盖各模型 Provider 传递凭据的常见方式
func DefaultPolicy() *Policy {
	return &Policy{
		Params: []string{"key", "api_key", "apikey", "access_token", "token"},
		Bearer: true,
		Mode:   ModeRedact,
	}
}
