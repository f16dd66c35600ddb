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

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// FeedLoader 通过 HTTP 拉取 RSS 原文
type FeedLoader struct {
	client *resty.Client
}

// NewFeedLoader 创建加载器；timeout<=0 时为 30s
func NewFeedLoader(timeout time.Duration) *FeedLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(time.Second)
	client.SetHeader("User-Agent", "crypto-analyst/1.0 (+rss)")
	return &FeedLoader{client: client}
}

// Load 拉取并解析 feed
func (l *FeedLoader) Load(ctx context.Context, url string) ([]FeedItem, error) {
	resp, err := l.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch feed %s: status %d", url, resp.StatusCode())
	}
	return ParseFeed(resp.Body())
}
