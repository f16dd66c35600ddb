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

package builtin

import (
	"context"
	"fmt"
	"strconv"

	"crypto-analyst/internal/market"
	"crypto-analyst/internal/tool"
)

// PriceTool 实现 get_price：查询加密货币实时价格
type PriceTool struct {
	lookup market.PriceLookup
	quote  string
}

// NewPriceTool 创建 get_price 动作；quote 仅用于结果文本中的币种说明
func NewPriceTool(lookup market.PriceLookup, quote string) *PriceTool {
	if quote == "" {
		quote = "USD"
	}
	return &PriceTool{lookup: lookup, quote: quote}
}

// Name 实现 tool.Tool
func (t *PriceTool) Name() tool.Name { return tool.GetPrice }

// Description 实现 tool.Tool
func (t *PriceTool) Description() string {
	return "Gets the current market price of a cryptocurrency by its ticker symbol (e.g. BTC, ETH, SOL)."
}

// Schema 实现 tool.Tool
func (t *PriceTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"ticker": {Type: "string", Description: "Ticker symbol such as BTC"},
		},
		Required: []string{"ticker"},
	}
}

// Execute 实现 tool.Tool；任何网络或解析失败都转为描述性文本
func (t *PriceTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	raw, _ := input["ticker"].(string)
	ticker := market.NormalizeTicker(raw)
	if ticker == "" {
		return tool.Result{Err: "Could not fetch price: ticker is required."}, nil
	}
	if t.lookup == nil {
		return tool.Result{Err: fmt.Sprintf("Could not fetch price for %s: price lookup is not configured.", ticker)}, nil
	}
	price, err := t.lookup.GetPrice(ctx, ticker)
	if err != nil {
		return tool.Result{Err: fmt.Sprintf("Could not fetch price for %s: %v", ticker, err)}, nil
	}
	return tool.Result{Content: fmt.Sprintf("The current price of %s is $%s %s.", ticker, formatPrice(price), t.quote)}, nil
}

// formatPrice 大于等于 1 的价格保留两位小数；低于 1 的保留全部有效数字，避免小币种显示为 0.00
func formatPrice(price float64) string {
	if price >= 1 {
		return strconv.FormatFloat(price, 'f', 2, 64)
	}
	return strconv.FormatFloat(price, 'f', -1, 64)
}
