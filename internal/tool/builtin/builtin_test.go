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
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-analyst/internal/storage/document"
	"crypto-analyst/internal/tool"
	apperrors "crypto-analyst/pkg/errors"
)

type stubRetriever struct {
	results []document.Ranked
	err     error
	gotK    int
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, topK int) ([]document.Ranked, error) {
	s.gotK = topK
	return s.results, s.err
}

type stubLookup struct {
	price  float64
	err    error
	ticker string
}

func (s *stubLookup) GetPrice(ctx context.Context, ticker string) (float64, error) {
	s.ticker = ticker
	return s.price, s.err
}

func TestRetrieveContextTool_Results(t *testing.T) {
	published := time.Date(2024, 12, 25, 12, 0, 0, 0, time.UTC)
	r := &stubRetriever{results: []document.Ranked{
		{Document: document.Document{Title: "Bitcoin hits $100k", Summary: "ATH", URL: "https://coindesk.com/btc-100k", PublishedAt: published}, Distance: 0.1},
		{Document: document.Document{Title: "Ethereum Merge 2.0", Summary: "ETH", URL: "https://coindesk.com/eth", PublishedAt: published}, Distance: 0.3},
	}}
	tl := NewRetrieveContextTool(r, 3)
	assert.Equal(t, tool.RetrieveInternalContext, tl.Name())

	res, err := tl.Execute(context.Background(), map[string]any{"query": "crypto news"})
	require.NoError(t, err)
	assert.Empty(t, res.Err)
	assert.Equal(t, 3, r.gotK)

	var data []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content), &data))
	require.Len(t, data, 2)
	assert.Equal(t, "Bitcoin hits $100k", data[0]["title"])
	assert.Equal(t, "https://coindesk.com/btc-100k", data[0]["url"])
	assert.Equal(t, "2024-12-25T12:00:00Z", data[0]["published_at"])
	assert.NotContains(t, data[0], "distance")
}

func TestRetrieveContextTool_Empty(t *testing.T) {
	res, err := NewRetrieveContextTool(&stubRetriever{}, 3).Execute(context.Background(), map[string]any{"query": "x"})
	require.NoError(t, err)
	assert.Equal(t, NoRelevantNews, res.Content)
	assert.Empty(t, res.Err)
}

func TestRetrieveContextTool_Failures(t *testing.T) {
	res, err := NewRetrieveContextTool(&stubRetriever{err: errors.New("db down")}, 3).
		Execute(context.Background(), map[string]any{"query": "x"})
	require.NoError(t, err)
	assert.Equal(t, "news search failed: db down", res.Err)

	_, err = NewRetrieveContextTool(&stubRetriever{err: apperrors.Configf("dimension mismatch")}, 3).
		Execute(context.Background(), map[string]any{"query": "x"})
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
}

func TestPriceTool(t *testing.T) {
	l := &stubLookup{price: 68000}
	tl := NewPriceTool(l, "")
	res, err := tl.Execute(context.Background(), map[string]any{"ticker": "btc"})
	require.NoError(t, err)
	assert.Equal(t, "BTC", l.ticker)
	assert.Equal(t, "The current price of BTC is $68000.00 USD.", res.Content)
}

func TestPriceTool_SubCentPriceKeepsDigits(t *testing.T) {
	tl := NewPriceTool(&stubLookup{price: 0.00001234}, "USDT")
	res, err := tl.Execute(context.Background(), map[string]any{"ticker": "shib"})
	require.NoError(t, err)
	assert.Equal(t, "The current price of SHIB is $0.00001234 USDT.", res.Content)

	assert.Equal(t, "0.5", formatPrice(0.5))
	assert.Equal(t, "1.50", formatPrice(1.5))
	assert.Equal(t, "0", formatPrice(0))
}

func TestPriceTool_FailureIsText(t *testing.T) {
	tl := NewPriceTool(&stubLookup{err: errors.New("dial tcp: connection refused")}, "USD")
	res, err := tl.Execute(context.Background(), map[string]any{"ticker": "eth"})
	require.NoError(t, err)
	assert.Equal(t, "Could not fetch price for ETH: dial tcp: connection refused", res.Err)

	res, err = NewPriceTool(nil, "USD").Execute(context.Background(), map[string]any{"ticker": "eth"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Err)
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(&stubRetriever{}, 3, &stubLookup{}, "USD")
	require.NoError(t, err)
	schemas := reg.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "retrieve_internal_context", schemas[0].Name)
	assert.Equal(t, "get_price", schemas[1].Name)
}
