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

package secrets

import (
	"context"
	"fmt"
	"strings"

	apperrors "crypto-analyst/pkg/errors"
)

// Store 凭据读写接口；模型 API Key 等敏感配置经此解析
type Store interface {
	// Get 获取 secret 值，不存在时返回包装 ErrNotFound 的错误
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error

	// List 列出前缀匹配的 secret keys
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config Secret Store 配置
type Config struct {
	Provider string      // env | memory | vault
	Vault    VaultConfig // Provider=vault 时使用
}

// NewStore 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(config.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// Resolve 返回凭据：configured 非空时直接使用，否则从 store 读取 key。
// 两者都缺失时返回 ErrConfiguration，调用方应在启动阶段失败。
func Resolve(ctx context.Context, store Store, configured, key string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	if store == nil || key == "" {
		return "", apperrors.Configf("missing credential %s", key)
	}
	v, err := store.Get(ctx, key)
	if err != nil || v == "" {
		return "", apperrors.Configf("missing credential %s", key)
	}
	return v, nil
}

func notFound(key string) error {
	return fmt.Errorf("secret %s: %w", key, apperrors.ErrNotFound)
}
