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

package http

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"crypto-analyst/internal/agent/job"
	apperrors "crypto-analyst/pkg/errors"
	"crypto-analyst/pkg/log"
	"crypto-analyst/pkg/metrics"
)

// JobService 提交与查询分析任务
type JobService interface {
	Submit(ctx context.Context, query string) (string, error)
	Get(ctx context.Context, jobID string) (*job.Job, error)
}

// Handler HTTP 处理器
type Handler struct {
	jobs   JobService
	logger *log.Logger
}

// NewHandler 创建处理器
func NewHandler(jobs JobService, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Handler{jobs: jobs, logger: logger}
}

// AnalysisRequest POST /api/analysis 请求体
type AnalysisRequest struct {
	Query string `json:"query"`
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// SubmitAnalysis 提交问题，立即返回任务 ID
func (h *Handler) SubmitAnalysis(ctx context.Context, c *app.RequestContext) {
	var req AnalysisRequest
	if len(c.Request.Body()) > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "Query is required"})
		return
	}
	if h.jobs == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "job service not configured"})
		return
	}

	id, err := h.jobs.Submit(ctx, req.Query)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidArg) {
			c.JSON(consts.StatusBadRequest, map[string]string{"error": "Query is required"})
			return
		}
		h.logger.Error("提交分析任务失败", "error", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to submit analysis"})
		return
	}
	c.JSON(consts.StatusOK, map[string]string{
		"task_id": id,
		"status":  job.StatusQueued.String(),
		"message": "Analysis started.",
	})
}

// GetAnalysis 查询任务状态；完成时 data 为回答，失败时 error 为原因
func (h *Handler) GetAnalysis(ctx context.Context, c *app.RequestContext) {
	id := c.Param("task_id")
	if h.jobs == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "job service not configured"})
		return
	}
	j, err := h.jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"status": "error", "message": "Job not found"})
			return
		}
		h.logger.Error("查询分析任务失败", "job_id", id, "error", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"status": "error", "message": "failed to load job"})
		return
	}

	resp := map[string]string{"status": j.Status.String()}
	switch j.Status {
	case job.StatusCompleted:
		resp["data"] = j.Answer
	case job.StatusFailed:
		resp["error"] = j.Error
	}
	c.JSON(consts.StatusOK, resp)
}

// Metrics 以 Prometheus 文本格式导出指标
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	c.Response.Header.SetContentType("text/plain; version=0.0.4; charset=utf-8")
	if err := metrics.WritePrometheus(c.Response.BodyWriter()); err != nil {
		h.logger.Error("导出指标失败", "error", err)
		c.SetStatusCode(consts.StatusInternalServerError)
	}
}
