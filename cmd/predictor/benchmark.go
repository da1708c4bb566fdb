// Copyright 2026 predictor Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
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
	"math/rand/v2"
	"time"

	"github.com/juju/errors"
	"github.com/nyagato-00/predictor/base/log"
	"github.com/nyagato-00/predictor/config"
	"github.com/nyagato-00/predictor/recommender"
	"github.com/nyagato-00/predictor/storage"
	"github.com/olekukonko/tablewriter"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type benchmarkOptions struct {
	items  int
	users  int
	parts  int
	sample int
	seed   uint64
	jobs   int
	limit  int
}

type benchmarkResult struct {
	technique string
	add       time.Duration
	process   time.Duration
	neighbors float64
}

func newBenchmarkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Time adding and processing synthetic data with every technique",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			conf, err := config.LoadConfig(configPath)
			if err != nil {
				return errors.Annotate(err, "failed to load config")
			}
			client, err := storage.OpenRedis(conf.Database.CacheStore)
			if err != nil {
				return errors.Annotate(err, "failed to connect store")
			}
			defer client.Close()

			var opt benchmarkOptions
			opt.items, _ = cmd.Flags().GetInt("items")
			opt.users, _ = cmd.Flags().GetInt("users")
			opt.parts, _ = cmd.Flags().GetInt("parts")
			opt.sample, _ = cmd.Flags().GetInt("sample")
			opt.seed, _ = cmd.Flags().GetUint64("seed")
			opt.jobs = conf.Recommender.ProcessJobs
			opt.limit = conf.Recommender.SimilarityLimit
			prefix := conf.Recommender.Prefix + ":benchmark"

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Technique", "Add", "Process", "Avg. Neighbors")
			for _, name := range recommender.Techniques {
				result, err := runBenchmark(cmd.Context(), client, prefix, name, opt)
				if err != nil {
					return err
				}
				if err = table.Append(result.technique,
					result.add.Round(time.Millisecond).String(),
					result.process.Round(time.Millisecond).String(),
					fmt.Sprintf("%.2f", result.neighbors)); err != nil {
					return errors.Trace(err)
				}
			}
			return errors.Trace(table.Render())
		},
	}
	cmd.Flags().Int("items", 100, "number of items")
	cmd.Flags().Int("users", 50, "number of sets in the users matrix")
	cmd.Flags().Int("parts", 50, "number of sets in the parts matrix")
	cmd.Flags().Int("sample", 20, "number of items sampled into each set")
	cmd.Flags().Uint64("seed", 0, "random seed")
	return cmd
}

// runBenchmark fills a users matrix weighted 2 and a parts matrix weighted 1 with the
// same pseudo-random data for every technique, then processes all items.
func runBenchmark(ctx context.Context, client redis.UniversalClient, prefix, technique string, opt benchmarkOptions) (benchmarkResult, error) {
	result := benchmarkResult{technique: technique}
	t, err := recommender.ParseTechnique(technique)
	if err != nil {
		return result, err
	}
	r, err := recommender.NewRecommender(client, prefix, []recommender.MatrixOptions{
		recommender.Matrix("users").WithWeight(2),
		recommender.Matrix("parts").WithWeight(1),
	}, recommender.WithTechnique(t), recommender.WithJobs(opt.jobs), recommender.WithSimilarityLimit(opt.limit))
	if err != nil {
		return result, err
	}
	if err = r.Clean(ctx); err != nil {
		return result, err
	}
	defer func() {
		if err := r.Clean(ctx); err != nil {
			log.Logger().Warn("failed to clean benchmark keys", zap.Error(err))
		}
	}()

	rng := rand.New(rand.NewPCG(opt.seed, opt.seed))
	items := lo.Times(opt.items, func(i int) string { return fmt.Sprintf("item-%d", i+1) })
	sample := func() []string {
		shuffled := append([]string(nil), items...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		return shuffled[:min(opt.sample, len(shuffled))]
	}

	start := time.Now()
	for i := 0; i < opt.users; i++ {
		if err = r.AddToMatrix(ctx, "users", fmt.Sprintf("user-%d", i+1), sample()...); err != nil {
			return result, err
		}
	}
	for i := 0; i < opt.parts; i++ {
		if err = r.AddToMatrix(ctx, "parts", fmt.Sprintf("part-%d", i+1), sample()...); err != nil {
			return result, err
		}
	}
	result.add = time.Since(start)

	start = time.Now()
	if err = r.ProcessAll(ctx); err != nil {
		return result, err
	}
	result.process = time.Since(start)

	all, err := r.AllItems(ctx)
	if err != nil {
		return result, err
	}
	var total int
	for _, item := range all {
		neighbors, err := r.SimilaritiesFor(ctx, item, 0, -1)
		if err != nil {
			return result, err
		}
		total += len(neighbors)
	}
	if len(all) > 0 {
		result.neighbors = float64(total) / float64(len(all))
	}
	return result, nil
}
