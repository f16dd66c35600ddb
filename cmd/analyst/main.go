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

// analyst 运维与调试入口：数据库迁移、语料灌入、新闻抓取、本地提问与远程任务提交。
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crypto-analyst/internal/app"
	"crypto-analyst/pkg/config"
)

func main() {
	root := newRootCMD()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCMD() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "analyst",
		Short:         "crypto market analyst CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", getenv("ANALYST_CONFIG", "configs/api.yaml"), "config file (model.yaml is merged from the same directory)")

	load := func(ctx context.Context) (*app.Bootstrap, error) {
		cfg, err := config.LoadWithModel(cfgPath)
		if err != nil {
			return nil, err
		}
		return app.NewBootstrap(ctx, cfg)
	}
	dsn := func() (string, error) {
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			return "", err
		}
		if cfg.Storage.Documents.DSN == "" {
			return "", fmt.Errorf("storage.documents.dsn is not configured")
		}
		return cfg.Storage.Documents.DSN, nil
	}

	root.AddCommand(
		migrateCMD(dsn),
		seedCMD(load),
		ingestCMD(load),
		askCMD(load),
		submitCMD(),
		statusCMD(),
	)
	return root
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
