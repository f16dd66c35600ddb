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

package document

import (
	"context"
	"fmt"

	"crypto-analyst/pkg/config"
	"crypto-analyst/pkg/utils"
)

// NewStore 根据配置创建文档存储
func NewStore(ctx context.Context, cfg config.DocumentsConfig) (Store, error) {
	dim := utils.DefaultInt(cfg.Dimension, config.DefaultDimension)
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(dim), nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage.documents.dsn is required for postgres")
		}
		return NewPGStore(ctx, cfg.DSN, dim, cfg.PoolSize)
	default:
		return nil, fmt.Errorf("unsupported document store type: %s", cfg.Type)
	}
}
