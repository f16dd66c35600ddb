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

// Package errors 提供统一错误分类与包装辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 错误分类哨兵；调用方通过 errors.Is 判定类别
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")

	// ErrConfiguration 缺失凭据、向量维度不一致等，启动或首次使用即失败，不重试
	ErrConfiguration = errors.New("configuration error")
	// ErrActionExecution 单个动作执行失败；在循环内被吸收为文本结果
	ErrActionExecution = errors.New("action execution failed")
	// ErrConvergence 超出迭代上限
	ErrConvergence = errors.New("iteration limit exceeded")
	// ErrUpstreamModel 决策模型调用本身失败（超时、配额、响应格式错误）
	ErrUpstreamModel = errors.New("upstream model error")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Configf 构造 ErrConfiguration 类错误
func Configf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Upstream 将决策模型调用失败归类为 ErrUpstreamModel；已归类的错误原样返回
func Upstream(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstreamModel) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstreamModel, err)
}

// Is 与标准库 errors.Is 相同，便于调用方只引入本包
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 与标准库 errors.As 相同
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New 与标准库 errors.New 相同
func New(text string) error {
	return errors.New(text)
}
