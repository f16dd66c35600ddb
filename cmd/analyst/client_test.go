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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI 模拟 /api/analysis：第 polls 次查询后完成
func fakeAPI(t *testing.T, polls int32, final map[string]string) *httptest.Server {
	t.Helper()
	var seen atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analysis", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if strings.TrimSpace(req["query"]) == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Query is required"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "job-1", "status": "queued", "message": "Analysis started."})
	})
	mux.HandleFunc("/api/analysis/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.TrimPrefix(r.URL.Path, "/api/analysis/") != "job-1" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "Job not found"})
			return
		}
		if seen.Add(1) < polls {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "running"})
			return
		}
		_ = json.NewEncoder(w).Encode(final)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_SubmitAndStatus(t *testing.T) {
	srv := fakeAPI(t, 1, map[string]string{"status": "completed", "data": "BTC is up."})
	c := newClient(srv.URL)
	ctx := context.Background()

	id, err := c.submit(ctx, "what about bitcoin?")
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)

	st, err := c.status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "completed", st.Status)
	assert.Equal(t, "BTC is up.", st.Data)
}

func TestClient_SubmitRejected(t *testing.T) {
	srv := fakeAPI(t, 1, nil)
	_, err := newClient(srv.URL).submit(context.Background(), "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Query is required")
}

func TestClient_StatusNotFound(t *testing.T) {
	srv := fakeAPI(t, 1, nil)
	_, err := newClient(srv.URL).status(context.Background(), "job-missing")
	assert.ErrorIs(t, err, errJobNotFound)
}

func TestClient_WaitPollsUntilTerminal(t *testing.T) {
	srv := fakeAPI(t, 3, map[string]string{"status": "failed", "error": "iteration limit exceeded"})
	st, err := newClient(srv.URL).wait(context.Background(), "job-1", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "failed", st.Status)
	assert.Equal(t, "iteration limit exceeded", st.Error)
}

func TestClient_WaitHonoursContext(t *testing.T) {
	srv := fakeAPI(t, 1000, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newClient(srv.URL).wait(ctx, "job-1", 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmitCommand_Wait(t *testing.T) {
	srv := fakeAPI(t, 2, map[string]string{"status": "completed", "data": "ETH looks steady."})
	root := newRootCMD()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"submit", "--api-url", srv.URL, "--wait", "--interval", "10ms", "how", "is", "eth?"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "job-1: completed")
	assert.Contains(t, out.String(), "ETH looks steady.")
}

func TestStatusCommand_Failed(t *testing.T) {
	srv := fakeAPI(t, 1, map[string]string{"status": "failed", "error": "model unavailable"})
	root := newRootCMD()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"status", "--api-url", srv.URL, "job-1"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestMigrateCommand_RequiresDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644))
	root := newRootCMD()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"migrate", "--config", path})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}

func TestTruncate_CutsOnRunes(t *testing.T) {
	got := truncate("比特币现货ETF\n资金持续流入", 4)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "比特币现...", got)
	assert.Equal(t, "short text", truncate("short\ntext", 20))
}
