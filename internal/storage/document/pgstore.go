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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "crypto-analyst/pkg/errors"
)

// PGStore PostgreSQL + pgvector 实现，表结构见 migrations/
type PGStore struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewPGStore 创建基于 PostgreSQL 的文档存储；需先执行 Migrate
func NewPGStore(ctx context.Context, dsn string, dimension int, poolSize int) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperrors.Configf("invalid documents dsn: %v", err)
	}
	if poolSize > 0 {
		config.MaxConns = int32(poolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := checkColumnDimension(ctx, pool, dimension); err != nil {
		pool.Close()
		return nil, err
	}
	return &PGStore{pool: pool, dimension: dimension}, nil
}

// checkColumnDimension 比对 embedding 列声明的 vector(n) 与配置维度；表尚未迁移时跳过
func checkColumnDimension(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	var typmod int32
	err := pool.QueryRow(ctx, `SELECT a.atttypmod FROM pg_attribute a
		WHERE a.attrelid = to_regclass('news_articles') AND a.attname = 'embedding' AND NOT a.attisdropped`).Scan(&typmod)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect news_articles.embedding: %w", err)
	}
	if typmod > 0 && int(typmod) != dimension {
		return apperrors.Configf("news_articles.embedding is vector(%d) but configured dimension is %d", typmod, dimension)
	}
	return nil
}

// Dimension 存储的向量维度
func (s *PGStore) Dimension() int { return s.dimension }

// Close 关闭连接池
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// vectorLiteral 将向量编码为 pgvector 文本格式 "[a,b,c]"
func vectorLiteral(v []float64) string {
	var b strings.Builder
	b.Grow(len(v) * 8)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(x, 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// FindByURLs 返回已存在的 URL
func (s *PGStore) FindByURLs(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT url FROM news_articles WHERE url = ANY($1)`, urls)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// SimilaritySearch 使用 pgvector 余弦距离运算符 <=> 排序；距离相同按 id（写入顺序）
func (s *PGStore) SimilaritySearch(ctx context.Context, vector []float64, limit int) ([]Ranked, error) {
	if len(vector) != s.dimension {
		return nil, apperrors.Configf("query dimension %d does not match store dimension %d", len(vector), s.dimension)
	}
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, summary, url, published_at, embedding <=> $1::vector AS distance
		   FROM news_articles
		  WHERE embedding IS NOT NULL
		  ORDER BY distance, id
		  LIMIT $2`,
		vectorLiteral(vector), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Ranked{}
	for rows.Next() {
		var r Ranked
		if err := rows.Scan(&r.ID, &r.Title, &r.Summary, &r.URL, &r.PublishedAt, &r.Distance); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

const upsertSQL = `INSERT INTO news_articles (title, summary, url, published_at, embedding)
VALUES ($1, $2, $3, $4, $5::vector)
ON CONFLICT (url) DO UPDATE SET
    title = EXCLUDED.title,
    summary = EXCLUDED.summary,
    published_at = EXCLUDED.published_at,
    embedding = COALESCE(EXCLUDED.embedding, news_articles.embedding)`

// BulkUpsert 单事务批量写入，以 url 为冲突键
func (s *PGStore) BulkUpsert(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, d := range docs {
		if d.URL == "" {
			return 0, fmt.Errorf("document %q: %w: empty url", d.Title, apperrors.ErrInvalidArg)
		}
		var vec *string
		if d.Embedding != nil {
			if len(d.Embedding) != s.dimension {
				return 0, apperrors.Configf("vector dimension %d does not match store dimension %d", len(d.Embedding), s.dimension)
			}
			lit := vectorLiteral(d.Embedding)
			vec = &lit
		}
		d = d.Normalize()
		batch.Queue(upsertSQL, d.Title, d.Summary, d.URL, d.PublishedAt, vec)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, batch)
	for range docs {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("upsert news_articles: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Count 返回文档总数
func (s *PGStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM news_articles`).Scan(&n)
	return n, err
}
