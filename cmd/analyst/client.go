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
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:8080"

var errJobNotFound = errors.New("job not found")

// submitResponse POST /api/analysis 响应
type submitResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// statusResponse GET /api/analysis/:task_id 响应
type statusResponse struct {
	Status  string `json:"status"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *statusResponse) terminal() bool {
	return s.Status == "completed" || s.Status == "failed"
}

type apiClient struct {
	rc *resty.Client
}

func newClient(baseURL string) *apiClient {
	return &apiClient{rc: resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")}
}

func (c *apiClient) submit(ctx context.Context, query string) (string, error) {
	var out submitResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(map[string]string{"query": query}).
		SetResult(&out).
		SetError(&out).
		Post("/api/analysis")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		if out.Error != "" {
			return "", fmt.Errorf("POST /api/analysis: %d %s", resp.StatusCode(), out.Error)
		}
		return "", fmt.Errorf("POST /api/analysis: %d %s", resp.StatusCode(), resp.String())
	}
	return out.TaskID, nil
}

func (c *apiClient) status(ctx context.Context, id string) (*statusResponse, error) {
	var out statusResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Get("/api/analysis/" + id)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return &out, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", id, errJobNotFound)
	default:
		return nil, fmt.Errorf("GET /api/analysis/%s: %d %s", id, resp.StatusCode(), resp.String())
	}
}

// wait 轮询直到任务进入终态或 ctx 结束
func (c *apiClient) wait(ctx context.Context, id string, interval time.Duration) (*statusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		st, err := c.status(ctx, id)
		if err != nil {
			return nil, err
		}
		if st.terminal() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printStatus(cmd *cobra.Command, id string, st *statusResponse) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", id, st.Status)
	switch st.Status {
	case "completed":
		fmt.Fprintln(out, st.Data)
	case "failed":
		return fmt.Errorf("analysis failed: %s", st.Error)
	}
	return nil
}

func submitCMD() *cobra.Command {
	var apiURL string
	var wait bool
	var interval, timeout time.Duration
	submit := &cobra.Command{
		Use:   "submit <query>",
		Short: "Submit a question to the API and optionally wait for the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(apiURL)
			id, err := c.submit(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !wait {
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := c.wait(ctx, id, interval)
			if err != nil {
				return err
			}
			return printStatus(cmd, id, st)
		},
	}
	submit.Flags().StringVar(&apiURL, "api-url", getenv("ANALYST_API_URL", defaultAPIURL), "API base URL")
	submit.Flags().BoolVarP(&wait, "wait", "w", false, "poll until the job finishes")
	submit.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval with --wait")
	submit.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "give up waiting after this long")
	return submit
}

func statusCMD() *cobra.Command {
	var apiURL string
	status := &cobra.Command{
		Use:   "status <task_id>",
		Short: "Show the status of a submitted job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newClient(apiURL).status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printStatus(cmd, args[0], st)
		},
	}
	status.Flags().StringVar(&apiURL, "api-url", getenv("ANALYST_API_URL", defaultAPIURL), "API base URL")
	return status
}
