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

package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-analyst/internal/storage/document"
	apperrors "crypto-analyst/pkg/errors"
)

// keywordEmbedder 按关键词命中生成二维向量：[bitcoin, ethereum]
type keywordEmbedder struct {
	dim   int
	calls int
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.calls++
	v := make([]float64, e.dim)
	switch text {
	case "bitcoin":
		v[0] = 1
	case "ethereum":
		v[1] = 1
	default:
		v[0], v[1] = 1, 1
	}
	return v, nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (e *keywordEmbedder) Dimension() int { return e.dim }
func (e *keywordEmbedder) Model() string  { return "keyword" }

type shortEmbedder struct{ keywordEmbedder }

func (e *shortEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1}, nil
}

func seed(t *testing.T, s document.Store, docs ...document.Document) {
	t.Helper()
	_, err := s.BulkUpsert(context.Background(), docs)
	require.NoError(t, err)
}

func TestRetrieve_EmptyStore(t *testing.T) {
	r, err := New(&keywordEmbedder{dim: 2}, document.NewMemoryStore(2), 0)
	require.NoError(t, err)

	res, err := r.Retrieve(context.Background(), "bitcoin", 3)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
}

func TestRetrieve_FewerThanTopK(t *testing.T) {
	store := document.NewMemoryStore(2)
	now := time.Now()
	seed(t, store,
		document.Document{Title: "ETH upgrade", URL: "u-eth", PublishedAt: now, Embedding: []float64{0, 1}},
		document.Document{Title: "BTC rally", URL: "u-btc", PublishedAt: now, Embedding: []float64{1, 0.2}},
	)
	r, err := New(&keywordEmbedder{dim: 2}, store, 3)
	require.NoError(t, err)

	res, err := r.Retrieve(context.Background(), "bitcoin", 0)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "u-btc", res[0].URL)
	assert.Equal(t, "u-eth", res[1].URL)
	assert.LessOrEqual(t, res[0].Distance, res[1].Distance)
}

func TestRetrieve_DoesNotMutateStore(t *testing.T) {
	store := document.NewMemoryStore(2)
	seed(t, store, document.Document{Title: "a", URL: "a", Embedding: []float64{1, 0}})
	r, _ := New(&keywordEmbedder{dim: 2}, store, 3)
	_, _ = r.Retrieve(context.Background(), "bitcoin", 3)
	n, _ := store.Count(context.Background())
	assert.Equal(t, 1, n)
}

func TestNew_DimensionMismatch(t *testing.T) {
	_, err := New(&keywordEmbedder{dim: 768}, document.NewMemoryStore(2), 3)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
}

func TestRetrieve_QueryDimensionMismatch(t *testing.T) {
	r, err := New(&shortEmbedder{keywordEmbedder{dim: 2}}, document.NewMemoryStore(2), 3)
	require.NoError(t, err)
	_, err = r.Retrieve(context.Background(), "bitcoin", 3)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	emb := &keywordEmbedder{dim: 2}
	r, _ := New(emb, document.NewMemoryStore(2), 3)
	_, err := r.Retrieve(context.Background(), "  ", 3)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArg))
	assert.Equal(t, 0, emb.calls)
}
