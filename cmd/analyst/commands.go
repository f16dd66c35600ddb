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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"crypto-analyst/internal/app"
	"crypto-analyst/internal/storage/document"
)

type loadFunc func(ctx context.Context) (*app.Bootstrap, error)

func migrateCMD(dsn func() (string, error)) *cobra.Command {
	var direction string
	var steps int
	var dsnFlag string

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations (articles, analysis_jobs)",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := dsnFlag
			if target == "" {
				var err error
				if target, err = dsn(); err != nil {
					return err
				}
			}
			if err := document.Migrate(target, direction, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s done\n", direction)
			return nil
		},
	}
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	migrate.Flags().StringVar(&dsnFlag, "dsn", "", "postgres DSN (default storage.documents.dsn)")
	return migrate
}

func seedCMD(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the curated sample articles into the document store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := load(ctx)
			if err != nil {
				return err
			}
			defer b.Close()
			svc, err := b.Ingest(ctx)
			if err != nil {
				return err
			}
			n, err := svc.Seed(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d articles\n", n)
			return nil
		},
	}
}

func ingestCMD(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch the news feed once and store new articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := load(ctx)
			if err != nil {
				return err
			}
			defer b.Close()
			svc, err := b.Ingest(ctx)
			if err != nil {
				return err
			}
			rep, err := svc.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched=%d skipped=%d stored=%d duration=%s\n",
				rep.Fetched, rep.Skipped, rep.Stored, rep.Duration)
			return nil
		},
	}
}

func askCMD(load loadFunc) *cobra.Command {
	var verbose bool
	ask := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a question in-process, without the job queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := load(ctx)
			if err != nil {
				return err
			}
			defer b.Close()
			loop, err := b.Loop(ctx)
			if err != nil {
				return err
			}
			run, err := loop.Run(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if verbose {
				for i, m := range run.History.Messages() {
					fmt.Fprintf(out, "[%d] %s %s\n", i, m.Role, truncate(m.Content, 200))
				}
			}
			if !run.Completed() {
				return fmt.Errorf("run %s failed after %d iterations: %s", run.ID, run.Iterations, run.Reason)
			}
			fmt.Fprintln(out, run.Answer)
			return nil
		},
	}
	ask.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the conversation history")
	return ask
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
