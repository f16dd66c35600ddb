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

package builtin

import (
	"crypto-analyst/internal/market"
	"crypto-analyst/internal/tool/registry"
)

// NewRegistry 构造包含全部内置动作的静态注册表，进程启动时调用一次
func NewRegistry(r Retriever, topK int, lookup market.PriceLookup, quote string) (*registry.Registry, error) {
	return registry.New(
		NewRetrieveContextTool(r, topK),
		NewPriceTool(lookup, quote),
	)
}
