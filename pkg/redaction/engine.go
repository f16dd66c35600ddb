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

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"sync"
)

const redacted = "***REDACTED***"

// Engine 文本脱敏引擎：遮蔽已登记的凭据原文、URL 凭据参数与 Bearer token
type Engine struct {
	policy  *Policy
	params  *regexp.Regexp
	bearer  *regexp.Regexp
	mu      sync.RWMutex
	secrets []string
}

// NewEngine 创建脱敏引擎，policy 为 nil 时使用 DefaultPolicy
func NewEngine(policy *Policy) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	e := &Engine{policy: policy}
	if len(policy.Params) > 0 {
		names := make([]string, len(policy.Params))
		for i, p := range policy.Params {
			names[i] = regexp.QuoteMeta(p)
		}
		e.params = regexp.MustCompile(`(?i)([?&](?:` + strings.Join(names, "|") + `)=)([^&\s"'#]+)`)
	}
	if policy.Bearer {
		e.bearer = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9._~+/=-]+)`)
	}
	return e
}

// AddSecret 登记凭据原文；过短的值不登记，避免误伤正常文本
func (e *Engine) AddSecret(v string) {
	v = strings.TrimSpace(v)
	if len(v) < 8 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.secrets {
		if s == v {
			return
		}
	}
	e.secrets = append(e.secrets, v)
	// 长的先替换，防止包含关系下只替换一部分
	sort.Slice(e.secrets, func(i, j int) bool { return len(e.secrets[i]) > len(e.secrets[j]) })
}

// Redact 返回脱敏后的字符串
func (e *Engine) Redact(s string) string {
	if s == "" {
		return s
	}
	e.mu.RLock()
	for _, secret := range e.secrets {
		s = strings.ReplaceAll(s, secret, e.mask(secret))
	}
	e.mu.RUnlock()
	if e.params != nil {
		s = e.params.ReplaceAllStringFunc(s, func(m string) string {
			sub := e.params.FindStringSubmatch(m)
			return sub[1] + e.mask(sub[2])
		})
	}
	if e.bearer != nil {
		s = e.bearer.ReplaceAllStringFunc(s, func(m string) string {
			sub := e.bearer.FindStringSubmatch(m)
			return sub[1] + e.mask(sub[2])
		})
	}
	return s
}

func (e *Engine) mask(v string) string {
	if e.policy.Mode != ModeHash {
		return redacted
	}
	h := sha256.New()
	h.Write([]byte(v))
	if e.policy.Salt != "" {
		h.Write([]byte(e.policy.Salt))
	}
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

var defaultEngine = NewEngine(nil)

// Register 向全局引擎登记凭据原文（Bootstrap 解析出 API Key 后调用）
func Register(secret string) { defaultEngine.AddSecret(secret) }

// String 使用全局引擎脱敏
func String(s string) string { return defaultEngine.Redact(s) }
