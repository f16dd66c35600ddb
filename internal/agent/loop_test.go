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

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-analyst/internal/model/llm"
	"crypto-analyst/internal/retrieval"
	"crypto-analyst/internal/storage/document"
	"crypto-analyst/internal/tool/builtin"
	"crypto-analyst/internal/tool/registry"
	apperrors "crypto-analyst/pkg/errors"
)

// scriptedModel 按脚本逐步返回；超出脚本后重复最后一步
type scriptedModel struct {
	mu    sync.Mutex
	steps []func(msgs []llm.Message) (llm.Message, error)
	seen  [][]llm.Message
	tools []llm.ToolSpec
}

func (m *scriptedModel) Complete(ctx context.Context, msgs []llm.Message, tools []llm.ToolSpec) (llm.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, msgs)
	m.tools = tools
	i := len(m.seen) - 1
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	return m.steps[i](msgs)
}

func (m *scriptedModel) Provider() string { return "scripted" }
func (m *scriptedModel) Model() string    { return "scripted" }

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func answer(text string) func([]llm.Message) (llm.Message, error) {
	return func([]llm.Message) (llm.Message, error) {
		return llm.Message{Role: llm.RoleAssistant, Content: text}, nil
	}
}

func request(calls ...llm.ToolCall) func([]llm.Message) (llm.Message, error) {
	return func([]llm.Message) (llm.Message, error) {
		return llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}, nil
	}
}

// keywordEmbedder 按关键词生成 3 维向量：[bitcoin, ethereum, 常量]
type keywordEmbedder struct{}

func (keywordEmbedder) vector(text string) []float64 {
	t := strings.ToLower(text)
	v := []float64{0, 0, 1}
	if strings.Contains(t, "bitcoin") || strings.Contains(t, "btc") {
		v[0] = 1
	}
	if strings.Contains(t, "ethereum") || strings.Contains(t, "eth") {
		v[1] = 1
	}
	return v
}

func (e keywordEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return e.vector(text), nil
}

func (e keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (keywordEmbedder) Dimension() int { return 3 }
func (keywordEmbedder) Model() string  { return "keyword" }

type fixedPrice struct {
	prices map[string]float64
}

func (f fixedPrice) GetPrice(ctx context.Context, ticker string) (float64, error) {
	p, ok := f.prices[strings.ToUpper(ticker)]
	if !ok {
		return 0, fmt.Errorf("symbol %s not listed", ticker)
	}
	return p, nil
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	ctx := context.Background()
	store := document.NewMemoryStore(3)
	emb := keywordEmbedder{}
	docs := []document.Document{
		{Title: "Bitcoin ETF inflows hit record", Summary: "Spot ETFs absorbed 1B USD", URL: "https://example.com/btc-etf", PublishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Title: "Ethereum upgrade scheduled", Summary: "Core devs agree on a date", URL: "https://example.com/eth-upgrade", PublishedAt: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	for i := range docs {
		docs[i].Embedding = emb.vector(docs[i].Title + " " + docs[i].Summary)
	}
	_, err := store.BulkUpsert(ctx, docs)
	require.NoError(t, err)

	r, err := retrieval.New(emb, store, 3)
	require.NoError(t, err)
	reg, err := builtin.NewRegistry(r, 3, fixedPrice{prices: map[string]float64{"BTC": 68000}}, "USD")
	require.NoError(t, err)
	return reg
}

func kinds(msgs []llm.Message) []Kind {
	out := make([]Kind, len(msgs))
	for i, m := range msgs {
		out[i] = KindOf(m)
	}
	return out
}

func TestLoop_EmptyQuery(t *testing.T) {
	model := &scriptedModel{steps: []func([]llm.Message) (llm.Message, error){answer("x")}}
	loop, err := NewLoop(model, newTestRegistry(t))
	require.NoError(t, err)

	run, err := loop.Run(context.Background(), "   ")
	assert.Nil(t, run)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArg))
	assert.Zero(t, model.calls())
}

func TestLoop_DirectAnswer(t *testing.T) {
	model := &scriptedModel{steps: []func([]llm.Message) (llm.Message, error){answer("Hello, I only discuss crypto markets.")}}
	loop, err := NewLoop(model, newTestRegistry(t))
	require.NoError(t, err)

	run, err := loop.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 1, run.Iterations)
	assert.Equal(t, "Hello, I only discuss crypto markets.", run.Answer)
	assert.Equal(t, []Kind{KindSystem, KindUser, KindModelResponse}, kinds(run.History.Messages()))
	assert.Equal(t, DefaultSystemPrompt, run.History.Messages()[0].Content)
}

func TestLoop_OffersRegistrySchemas(t *testing.T) {
	reg := newTestRegistry(t)
	model := &scriptedModel{steps: []func([]llm.Message) (llm.Message, error){answer("ok")}}
	loop, err := NewLoop(model, reg)
	require.NoError(t, err)

	_, err = loop.Run(context.Background(), "price of btc?")
	require.NoError(t, err)
	assert.Equal(t, reg.Schemas(), model.tools)
	require.Len(t, model.tools, 2)
	assert.Equal(t, []string{"ticker"}, model.tools[1].Parameters.Required)
}

func TestLoop_NewsAndPrice(t *testing.T) {
	model := &scriptedModel{steps: []func([]llm.Message) (llm.Message, error){
		request(llm.ToolCall{ID: "call_1", Name: "retrieve_internal_context", Arguments: `{"query":"bitcoin news"}`}),
		request(llm.ToolCall{ID: "call_2", Name: "get_price", Arguments: `{"ticker":"btc"}`}),
		func(msgs []llm.Message) (llm.Message, error) {
			var news, price string
			for _, m := range msgs {
				switch m.Name {
				case "retrieve_internal_context":
					news = m.Content
				case "get_price":
					price = m.Content
				}
			}
			text := fmt.Sprintf("Per retrieve_internal_context: %s. Per get_price: %s", news, price)
			return llm.Message{Role: llm.RoleAssistant, Content: text}, nil
		},
	}}
	loop, err := NewLoop(model, newTestRegistry(t))
	require.NoError(t, err)

	run, err := loop.Run(context.Background(), "Is there an opportunity in BTC based on recent news?")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, run.Status, run.Reason)
	assert.Equal(t, 3, run.Iterations)
	assert.Contains(t, run.Answer, "Bitcoin ETF inflows hit record")
	assert.Contains(t, run.Answer, "The current price of BTC is $68000.00 USD.")

	msgs := run.History.Messages()
	require.NoError(t, Validate(msgs))
	assert.Equal(t, []Kind{
		KindSystem, KindUser,
		KindModelResponse, KindActionResult,
		KindModelResponse, KindActionResult,
		KindModelResponse,
	}, kinds(msgs))
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.Equal(t, "call_2", msgs[5].ToolCallID)
	// 检索结果按距离升序
	assert.Less(t, strings.Index(msgs[3].Content, "Bitcoin"), strings.Index(msgs[3].Content, "Ethereum"))
}

func TestLoop_IterationLimit(t *testing.T) {
	model := &scriptedModel{steps: []func([]llm.Message) (llm.Message, error){
		request(llm.ToolCall{ID: "call_1", Name: "get_price", Arguments: `{"ticker":"btc"}`}),
	}}
	loop, err := NewLoop(model, newTestRegistry(t), WithMaxIterations(3))
	require.NoError(t, err)

	run, err := loop.Run(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "iteration limit exceeded", run.Reason)
	assert.True(t, errors.Is(run.Err, apperrors.ErrConvergence))
	assert.Equal(t, 3, run.Iterations)
	assert.Equal(t, 3, model.calls())
	assert.Empty(t, run.Answer)
	require.NoError(t, Validate(run.History.Messages()))
}

func TestLoop_DefaultIterationLimit(t *testing.T) {
	model := &scriptedModel{steps: []func([]llm.Message) (llm.Message, error){
		request(llm.ToolCall{ID: "call_1", Name: "get_price", Arguments: `{"ticker":"btc"}`}),
	}}
	loop, err := NewLoop(model, newTestRegistry(t))
	require.NoError(t, err)
	assert.Equal(t, 10, loop.MaxIterations())

	run, err := loop.Run(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, 10, model.calls())
}

func TestLoop_UnknownActionContinues(t *testing.T) {
	model := &scriptedModel{steps: []func([]llm.Message) (llm.Message, error){
		request(llm.ToolCall{ID: "call_1", Name: "do_magic", Arguments: `{}`}),
		answer("I could not use that tool."),
	}}
	loop, err := NewLoop(model, newTestRegistry(t))
	require.NoError(t, err)

	run, err := loop.Run(context.Background(), "do magic")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 2, run.Iterations)
	msgs := run.History.Messages()
	assert.Equal(t, "unknown action: do_magic", msgs[3].Content)
	assert.Equal(t, "do_magic", msgs[3].Name)
}

func TestLoop_PriceFailureIsTextual(t *testing.T) {
	model := &scriptedModel{steps: []func([]llm.Message) (llm.Message, error){
		request(llm.ToolCall{ID: "call_1", Name: "get_price", Arguments: `{"ticker":"doge"}`}),
		answer("Price unavailable."),
	}}
	loop, err := NewLoop(model, newTestRegistry(t))
	require.NoError(t, err)

	run, err := loop.Run(context.Background(), "doge price?")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Contains(t, run.History.Messages()[3].Content, "Could not fetch price for DOGE")
}

func TestLoop_ModelErrorFailsRun(t *testing.T) {
	model := &scriptedModel{steps: []func([]llm.Message) (llm.Message, error){
		func([]llm.Message) (llm.Message, error) { return llm.Message{}, errors.New("503 service unavailable") },
	}}
	loop, err := NewLoop(model, newTestRegistry(t))
	require.NoError(t, err)

	run, err := loop.Run(context.Background(), "btc?")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.True(t, errors.Is(run.Err, apperrors.ErrUpstreamModel))
	assert.Contains(t, run.Reason, "503")
	assert.Equal(t, []Kind{KindSystem, KindUser}, kinds(run.History.Messages()))
}

type brokenRetriever struct{}

func (brokenRetriever) Retrieve(ctx context.Context, query string, topK int) ([]document.Ranked, error) {
	return nil, apperrors.Configf("embedding dimension 3 does not match store dimension 768")
}

func TestLoop_ConfigurationErrorFailsRun(t *testing.T) {
	reg, err := builtin.NewRegistry(brokenRetriever{}, 3, fixedPrice{}, "USD")
	require.NoError(t, err)
	model := &scriptedModel{steps: []func([]llm.Message) (llm.Message, error){
		request(llm.ToolCall{ID: "call_1", Name: "retrieve_internal_context", Arguments: `{"query":"btc"}`}),
		answer("unreachable"),
	}}
	loop, err := NewLoop(model, reg)
	require.NoError(t, err)

	run, err := loop.Run(context.Background(), "btc news?")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.True(t, errors.Is(run.Err, apperrors.ErrConfiguration))
	assert.Equal(t, 1, model.calls())
}

func TestLoop_MultipleActionsKeepRequestOrder(t *testing.T) {
	model := &scriptedModel{steps: []func([]llm.Message) (llm.Message, error){
		request(
			llm.ToolCall{ID: "a", Name: "get_price", Arguments: `{"ticker":"btc"}`},
			llm.ToolCall{ID: "b", Name: "retrieve_internal_context", Arguments: `{"query":"ethereum"}`},
			llm.ToolCall{ID: "c", Name: "get_price", Arguments: `{"ticker":"xrp"}`},
		),
		answer("done"),
	}}
	loop, err := NewLoop(model, newTestRegistry(t), WithParallelActions(true))
	require.NoError(t, err)

	run, err := loop.Run(context.Background(), "compare")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, run.Status)
	msgs := run.History.Messages()
	require.NoError(t, Validate(msgs))
	assert.Equal(t, "a", msgs[3].ToolCallID)
	assert.Equal(t, "b", msgs[4].ToolCallID)
	assert.Equal(t, "c", msgs[5].ToolCallID)
	assert.Contains(t, msgs[3].Content, "68000.00")
	assert.Contains(t, msgs[5].Content, "Could not fetch price for XRP")
}

func TestNewLoop_RequiresDependencies(t *testing.T) {
	_, err := NewLoop(nil, newTestRegistry(t))
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
	_, err = NewLoop(&scriptedModel{}, nil)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
}
