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

// Package market 实时行情查询
package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"crypto-analyst/pkg/utils"
)

// PriceLookup 按 ticker 查询当前价格
type PriceLookup interface {
	GetPrice(ctx context.Context, ticker string) (float64, error)
}

const defaultBaseURL = "https://api.binance.com"

// ExchangeClient 交易所 ticker 接口客户端（Binance /api/v3/ticker/price 格式）
type ExchangeClient struct {
	baseURL string
	quote   string
	client  *resty.Client
}

// NewExchangeClient 创建行情客户端；quote 为计价币种，如 USDT
func NewExchangeClient(baseURL, quote string, timeout time.Duration) *ExchangeClient {
	baseURL = utils.CoalesceString(baseURL, defaultBaseURL)
	quote = utils.CoalesceString(quote, "USDT")
	client := resty.New()
	client.SetTimeout(utils.DefaultDuration(timeout, 10*time.Second))
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(2 * time.Second)

	return &ExchangeClient{baseURL: strings.TrimSuffix(baseURL, "/"), quote: strings.ToUpper(quote), client: client}
}

// NormalizeTicker 去除空白并转为大写
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Symbol 交易对，如 BTC -> BTCUSDT；已带计价币种的 ticker 原样返回
func (c *ExchangeClient) Symbol(ticker string) string {
	t := NormalizeTicker(ticker)
	if strings.HasSuffix(t, c.quote) && len(t) > len(c.quote) {
		return t
	}
	return t + c.quote
}

// GetPrice 查询 ticker 对计价币种的最新成交价
func (c *ExchangeClient) GetPrice(ctx context.Context, ticker string) (float64, error) {
	if NormalizeTicker(ticker) == "" {
		return 0, fmt.Errorf("empty ticker")
	}
	symbol := c.Symbol(ticker)

	var result struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
		Code   int    `json:"code"`
		Msg    string `json:"msg"`
	}
	response, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		SetError(&result).
		Get(c.baseURL + "/api/v3/ticker/price")
	if err != nil {
		return 0, fmt.Errorf("price request for %s failed: %w", symbol, err)
	}
	if response.StatusCode() != http.StatusOK {
		if result.Msg != "" {
			return 0, fmt.Errorf("price source rejected %s: %s", symbol, result.Msg)
		}
		return 0, fmt.Errorf("price source returned status %d for %s", response.StatusCode(), symbol)
	}
	price, err := strconv.ParseFloat(result.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed price %q for %s", result.Price, symbol)
	}
	if price <= 0 {
		return 0, fmt.Errorf("no price available for %s", symbol)
	}
	return price, nil
}
