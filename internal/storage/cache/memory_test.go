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

package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"crypto-analyst/pkg/config"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "k1", "v1", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var v string
	if err := s.Get(ctx, "k1", &v); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "v1" {
		t.Errorf("Get: got %q", v)
	}
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Get(ctx, "k1", &v); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after Delete should miss, got %v", err)
	}
}

func TestMemoryStore_Expiration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	if err := s.Set(ctx, "price:BTC", 68000.5, 30*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var p float64
	if err := s.Get(ctx, "price:BTC", &p); err != nil || p != 68000.5 {
		t.Fatalf("Get before expiry: %v %v", p, err)
	}
	now = now.Add(31 * time.Second)
	if err := s.Get(ctx, "price:BTC", &p); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after expiry should miss, got %v", err)
	}
}

func TestNewCache(t *testing.T) {
	if _, err := NewCache(context.Background(), config.CacheConfig{Type: "bogus"}); err == nil {
		t.Error("unknown cache type should error")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping Redis cache tests")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, addr, "", 0, "test:cache:")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer s.Close()

	if err := s.Set(ctx, "k", map[string]int{"a": 1}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got map[string]int
	if err := s.Get(ctx, "k", &got); err != nil || got["a"] != 1 {
		t.Fatalf("Get: %v %v", got, err)
	}
	_ = s.Delete(ctx, "k")
	if err := s.Get(ctx, "k", &got); !errors.Is(err, ErrMiss) {
		t.Errorf("expected miss, got %v", err)
	}
}
