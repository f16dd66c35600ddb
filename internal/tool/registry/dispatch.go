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

package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crypto-analyst/internal/tool"
	apperrors "crypto-analyst/pkg/errors"
	"crypto-analyst/pkg/metrics"
	"crypto-analyst/pkg/tracing"
)

// DispatchOptions 单轮动作执行选项
type DispatchOptions struct {
	// Parallel 为 true 时并发执行同一轮内的动作；返回顺序始终与请求顺序一致
	Parallel bool
	// Timeout 单个动作的执行超时，<=0 不单独限时
	Timeout time.Duration
}

// Outcome 单个动作请求的执行结果；Content 即写入会话历史的结果文本
type Outcome struct {
	Call     tool.Call
	Content  string
	Err      error
	Duration time.Duration
}

// Failed 是否失败
func (o Outcome) Failed() bool { return o.Err != nil }

// Dispatch 执行一轮动作请求。任何失败（未知动作、参数不合法、执行出错、panic）都被转换为
// 描述性的结果文本，不会中断调用方；Outcome.Err 保留分类以便调用方区分配置错误。
func (r *Registry) Dispatch(ctx context.Context, calls []tool.Call, opts DispatchOptions) []Outcome {
	out := make([]Outcome, len(calls))
	if !opts.Parallel || len(calls) < 2 {
		for i, c := range calls {
			out[i] = r.invoke(ctx, c, opts.Timeout)
		}
		return out
	}

	var wg sync.WaitGroup
	for i, c := range calls {
		wg.Add(1)
		go func(i int, c tool.Call) {
			defer wg.Done()
			out[i] = r.invoke(ctx, c, opts.Timeout)
		}(i, c)
	}
	wg.Wait()
	return out
}

func (r *Registry) invoke(ctx context.Context, call tool.Call, timeout time.Duration) (o Outcome) {
	start := time.Now()
	o.Call = call

	ctx, span := tracing.StartActionSpan(ctx, call.Name, call.ID)
	defer func() {
		o.Duration = time.Since(start)
		status := "ok"
		if o.Err != nil {
			status = "error"
		}
		metrics.ActionDuration.WithLabelValues(metricLabel(r, call.Name), status).Observe(o.Duration.Seconds())
		tracing.EndSpan(span, o.Err)
	}()

	t, ok := r.Get(call.Name)
	if !ok {
		o.Content = fmt.Sprintf("unknown action: %s", call.Name)
		o.Err = fmt.Errorf("%w: %s", apperrors.ErrActionExecution, o.Content)
		return o
	}

	args, err := tool.ParseArguments(call.Arguments)
	if err == nil {
		err = tool.Validate(t.Schema(), args)
	}
	if err != nil {
		o.Content = fmt.Sprintf("invalid arguments for %s: %v", call.Name, err)
		o.Err = fmt.Errorf("%w: %s", apperrors.ErrActionExecution, o.Content)
		return o
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := safeExecute(ctx, t, args)
	switch {
	case err != nil:
		o.Content = fmt.Sprintf("%s failed: %v", call.Name, err)
		if apperrors.Is(err, apperrors.ErrConfiguration) {
			o.Err = err
		} else {
			o.Err = fmt.Errorf("%w: %w", apperrors.ErrActionExecution, err)
		}
	case res.Err != "":
		o.Content = res.Err
		o.Err = fmt.Errorf("%w: %s", apperrors.ErrActionExecution, res.Err)
	default:
		o.Content = res.Content
	}
	return o
}

func safeExecute(ctx context.Context, t tool.Tool, args map[string]any) (res tool.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return t.Execute(ctx, args)
}

// metricLabel 未注册的名称统一记为 unknown，避免模型输出撑爆标签基数
func metricLabel(r *Registry, name string) string {
	if _, ok := r.Get(name); ok {
		return name
	}
	return "unknown"
}
