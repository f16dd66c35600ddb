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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"crypto-analyst/internal/model/llm"
	"crypto-analyst/internal/tool"
	"crypto-analyst/internal/tool/registry"
	"crypto-analyst/pkg/config"
	apperrors "crypto-analyst/pkg/errors"
	"crypto-analyst/pkg/log"
	"crypto-analyst/pkg/metrics"
	"crypto-analyst/pkg/redaction"
	"crypto-analyst/pkg/tracing"
)

// State 决策循环状态
type State int

const (
	StateThinking State = iota
	StateActing
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateThinking:
		return "thinking"
	case StateActing:
		return "acting"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Status LoopRun 终态
type Status int

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "running"
	}
}

// Run 一次问题处理的完整记录
type Run struct {
	ID         string
	Query      string
	History    *History
	Iterations int
	Status     Status
	// Answer 成功时的最终回答
	Answer string
	// Reason 失败原因
	Reason string
	// Err 失败时的分类错误（ErrConvergence / ErrUpstreamModel / ErrConfiguration）
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Completed 是否成功结束
func (r *Run) Completed() bool { return r.Status == StatusCompleted }

// Loop 有界的 Thinking→Acting 决策循环。构造后只读，可被多个 LoopRun 并发使用
type Loop struct {
	model         llm.ChatModel
	registry      *registry.Registry
	specs         []llm.ToolSpec
	maxIterations int
	systemPrompt  string
	dispatch      registry.DispatchOptions
	logger        *log.Logger
}

// Option 配置 Loop
type Option func(*Loop)

// WithMaxIterations 设置 Thinking 步上限（<=0 时保持默认 10）
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithSystemPrompt 替换系统指令
func WithSystemPrompt(p string) Option {
	return func(l *Loop) {
		if strings.TrimSpace(p) != "" {
			l.systemPrompt = p
		}
	}
}

// WithParallelActions 同一轮内的多个动作并发执行
func WithParallelActions(parallel bool) Option {
	return func(l *Loop) { l.dispatch.Parallel = parallel }
}

// WithActionTimeout 单个动作的执行超时
func WithActionTimeout(d time.Duration) Option {
	return func(l *Loop) { l.dispatch.Timeout = d }
}

// WithLogger 设置日志
func WithLogger(logger *log.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// OptionsFromConfig 由 agent 配置段生成选项
func OptionsFromConfig(cfg config.AgentConfig) []Option {
	return []Option{
		WithMaxIterations(cfg.MaxIterations),
		WithParallelActions(cfg.ParallelActions),
		WithActionTimeout(config.ParseDuration(cfg.ActionTimeout, 0)),
	}
}

// NewLoop 创建决策循环；动作集合取自 registry 且此后不再变化
func NewLoop(model llm.ChatModel, reg *registry.Registry, opts ...Option) (*Loop, error) {
	if model == nil {
		return nil, apperrors.Configf("decision model is required")
	}
	if reg == nil {
		return nil, apperrors.Configf("action registry is required")
	}
	l := &Loop{
		model:         model,
		registry:      reg,
		maxIterations: config.DefaultMaxIterations,
		systemPrompt:  DefaultSystemPrompt,
		logger:        log.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.specs = reg.Schemas()
	return l, nil
}

// MaxIterations 返回 Thinking 步上限
func (l *Loop) MaxIterations() int { return l.maxIterations }

// Run 处理一个问题直到得到最终回答或失败。
// 只有输入非法时返回 error（此时不创建 LoopRun）；处理过程中的失败记录在 Run.Status/Reason 中。
func (l *Loop) Run(ctx context.Context, query string) (*Run, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", apperrors.ErrInvalidArg)
	}

	run := &Run{
		ID:        uuid.NewString(),
		Query:     query,
		History:   NewHistory(l.systemPrompt, query),
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	ctx, span := tracing.StartRunSpan(ctx, query)
	logger := &log.Logger{Logger: l.logger.With("run_id", run.ID)}
	logger.Info("开始处理问题", "query", query)

	state := StateThinking
	var pending []llm.ToolCall
	for state != StateDone && state != StateError {
		switch state {
		case StateThinking:
			state, pending = l.think(ctx, run, logger)
		case StateActing:
			state = l.act(ctx, run, pending, logger)
		}
	}

	run.FinishedAt = time.Now()
	metrics.LoopRunsTotal.WithLabelValues(run.Status.String()).Inc()
	tracing.EndSpan(span, run.Err)
	if run.Status == StatusCompleted {
		logger.Info("问题处理完成", "iterations", run.Iterations, "duration", run.FinishedAt.Sub(run.StartedAt))
	} else {
		logger.Warn("问题处理失败", "iterations", run.Iterations, "reason", run.Reason)
	}
	return run, nil
}

func (l *Loop) think(ctx context.Context, run *Run, logger *log.Logger) (State, []llm.ToolCall) {
	run.Iterations++
	metrics.LoopIterationsTotal.Inc()

	start := time.Now()
	resp, err := l.model.Complete(ctx, run.History.Messages(), l.specs)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ModelDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err != nil {
		l.fail(run, apperrors.Upstream(err))
		return StateError, nil
	}

	if err := run.History.AppendModelResponse(resp); err != nil {
		l.fail(run, err)
		return StateError, nil
	}
	if len(resp.ToolCalls) == 0 {
		run.Status = StatusCompleted
		run.Answer = resp.Content
		return StateDone, nil
	}
	logger.Debug("模型请求动作", "iteration", run.Iterations, "actions", len(resp.ToolCalls))
	// 最后一个 Thinking 步仍在请求动作，无法再得到回答
	if run.Iterations >= l.maxIterations {
		l.fail(run, apperrors.ErrConvergence)
		return StateError, nil
	}
	return StateActing, resp.ToolCalls
}

func (l *Loop) act(ctx context.Context, run *Run, calls []llm.ToolCall, logger *log.Logger) State {
	reqs := make([]tool.Call, len(calls))
	for i, c := range calls {
		reqs[i] = tool.Call{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}

	var fatal error
	for _, o := range l.registry.Dispatch(ctx, reqs, l.dispatch) {
		if err := run.History.AppendActionResult(o.Call.ID, o.Call.Name, o.Content); err != nil {
			l.fail(run, err)
			return StateError
		}
		if o.Failed() {
			logger.Warn("动作执行失败", "action", o.Call.Name, "error", o.Err)
			if fatal == nil && apperrors.Is(o.Err, apperrors.ErrConfiguration) {
				fatal = o.Err
			}
		}
	}
	if fatal != nil {
		l.fail(run, fatal)
		return StateError
	}
	if err := ctx.Err(); err != nil {
		l.fail(run, err)
		return StateError
	}
	return StateThinking
}

func (l *Loop) fail(run *Run, err error) {
	run.Status = StatusFailed
	run.Err = err
	run.Reason = redaction.String(err.Error())
}
