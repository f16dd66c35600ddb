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

package middleware

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	"crypto-analyst/pkg/log"
	"crypto-analyst/pkg/metrics"
)

// Options 中间件配置
type Options struct {
	CORS         bool
	AllowOrigins []string // 空表示 "*"
	RateLimitRPS int      // <=0 不限流
	Logger       *log.Logger
}

// Middleware 中间件
type Middleware struct {
	opts    Options
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewMiddleware 创建中间件
func NewMiddleware(opts Options) *Middleware {
	m := &Middleware{opts: opts, logger: opts.Logger}
	if m.logger == nil {
		m.logger = log.Nop()
	}
	if opts.RateLimitRPS > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitRPS)
	}
	return m
}

// Recovery 恢复中间件
func (m *Middleware) Recovery() app.HandlerFunc {
	return recovery.Recovery()
}

// CORS CORS 中间件；未启用时直接放行
func (m *Middleware) CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if !m.opts.CORS {
			c.Next(ctx)
			return
		}
		origin := "*"
		if len(m.opts.AllowOrigins) > 0 {
			origin = ""
			reqOrigin := string(c.GetHeader("Origin"))
			for _, o := range m.opts.AllowOrigins {
				if o == "*" && reqOrigin == "" {
					origin = "*"
					break
				}
				if o == "*" || strings.EqualFold(o, reqOrigin) {
					origin = reqOrigin
					break
				}
			}
		}
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if string(c.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

// RateLimit 令牌桶限流；未配置时直接放行
func (m *Middleware) RateLimit() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if m.limiter != nil && !m.limiter.Allow() {
			c.AbortWithStatusJSON(consts.StatusTooManyRequests, map[string]string{
				"error": "请求过于频繁，请稍后再试",
			})
			return
		}
		c.Next(ctx)
	}
}

// Metrics 按路由与状态码统计请求数
func (m *Middleware) Metrics() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		c.Next(ctx)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(string(c.Method()), route, strconv.Itoa(c.Response.StatusCode())).Inc()
	}
}

// AccessLog 访问日志
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		m.logger.Debug("http request",
			"method", string(c.Method()),
			"path", string(c.Path()),
			"status", c.Response.StatusCode(),
			"client_ip", c.ClientIP(),
			"latency", time.Since(start),
		)
	}
}
