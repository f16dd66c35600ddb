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
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "crypto-analyst/pkg/errors"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		wantErr     bool
		errContains string
	}{
		{name: "default env", provider: ""},
		{name: "memory", provider: "memory"},
		{name: "env", provider: "env"},
		{name: "vault", provider: "vault"},
		{name: "unknown provider", provider: "unknown", wantErr: true, errContains: "unsupported secret provider"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewStore(Config{Provider: tc.provider, Vault: VaultConfig{Address: "http://127.0.0.1:1"}})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("error = %q, want contains %q", err.Error(), tc.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store == nil {
				t.Fatalf("store should not be nil")
			}
		})
	}
}

func TestMemoryAndEnvStoreBasicContract(t *testing.T) {
	ctx := context.Background()
	for _, s := range []Store{NewMemoryStore(), NewEnvStore()} {
		if err := s.Set(ctx, "SECRET_TEST_KEY", "value"); err != nil {
			t.Fatalf("set secret failed: %v", err)
		}
		got, err := s.Get(ctx, "SECRET_TEST_KEY")
		if err != nil || got != "value" {
			t.Fatalf("get secret = %q, %v", got, err)
		}
		keys, err := s.List(ctx, "SECRET_TEST_")
		if err != nil || len(keys) != 1 {
			t.Fatalf("list = %v, %v", keys, err)
		}
		if err := s.Delete(ctx, "SECRET_TEST_KEY"); err != nil {
			t.Fatalf("delete secret failed: %v", err)
		}
		if _, err = s.Get(ctx, "SECRET_TEST_KEY"); !errors.Is(err, apperrors.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "GEMINI_API_KEY", "from-store")

	if v, err := Resolve(ctx, store, "inline", "GEMINI_API_KEY"); err != nil || v != "inline" {
		t.Errorf("configured value should win, got %q %v", v, err)
	}
	if v, err := Resolve(ctx, store, "", "GEMINI_API_KEY"); err != nil || v != "from-store" {
		t.Errorf("store fallback, got %q %v", v, err)
	}
	if _, err := Resolve(ctx, store, "  ", "OPENAI_API_KEY"); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Errorf("missing credential should be ErrConfiguration, got %v", err)
	}
}

func TestVaultStore_KVv2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/analyst/GEMINI_API_KEY" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"value":"vault-key"}}}`))
	}))
	defer srv.Close()

	store, err := NewVaultStore(VaultConfig{Address: srv.URL, Token: "t", PathPrefix: "secret/data/analyst"})
	if err != nil {
		t.Fatalf("NewVaultStore: %v", err)
	}
	got, err := store.Get(context.Background(), "GEMINI_API_KEY")
	if err != nil || got != "vault-key" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if _, err := store.Get(context.Background(), "MISSING"); err == nil {
		t.Fatal("expected error for missing secret")
	}
}
