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

package market

import (
	"context"
	"time"

	"crypto-analyst/internal/storage/cache"
)

// CachedLookup 为 PriceLookup 增加短时缓存，同一 ticker 在 ttl 内只查询一次上游
type CachedLookup struct {
	inner PriceLookup
	cache cache.Store
	ttl   time.Duration
}

// NewCachedLookup ttl<=0 时直接返回 inner
func NewCachedLookup(inner PriceLookup, store cache.Store, ttl time.Duration) PriceLookup {
	if ttl <= 0 || store == nil {
		return inner
	}
	return &CachedLookup{inner: inner, cache: store, ttl: ttl}
}

// GetPrice 先查缓存，未命中再请求上游；失败结果不缓存
func (c *CachedLookup) GetPrice(ctx context.Context, ticker string) (float64, error) {
	key := "price:" + NormalizeTicker(ticker)
	var price float64
	if err := c.cache.Get(ctx, key, &price); err == nil {
		return price, nil
	}
	price, err := c.inner.GetPrice(ctx, ticker)
	if err != nil {
		return 0, err
	}
	_ = c.cache.Set(ctx, key, price, c.ttl)
	return price, nil
}
