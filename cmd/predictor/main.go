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
	"fmt"
	"io"
	"strconv"

	"github.com/juju/errors"
	"github.com/nyagato-00/predictor/base/log"
	"github.com/nyagato-00/predictor/cmd/version"
	"github.com/nyagato-00/predictor/config"
	"github.com/nyagato-00/predictor/recommender"
	"github.com/nyagato-00/predictor/storage"
	"github.com/olekukonko/tablewriter"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "predictor",
		Short:         "Item similarities and predictions backed by Redis.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			debug, _ := cmd.Flags().GetBool("debug")
			log.SetLogger(cmd.Flags(), debug)
			otel.SetErrorHandler(log.GetErrorHandler())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				_, err := fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
				return err
			}
			return cmd.Help()
		},
	}
	log.AddFlags(root.PersistentFlags())
	root.PersistentFlags().Bool("debug", false, "use debug log mode")
	root.PersistentFlags().StringP("config", "c", "", "configuration file path")
	root.Flags().BoolP("version", "v", false, "predictor version")
	root.AddCommand(
		newAddCommand(),
		newProcessCommand(),
		newSimilarCommand(),
		newPredictCommand(),
		newDeleteCommand(),
		newEnforceLimitCommand(),
		newCleanCommand(),
		newBenchmarkCommand(),
	)
	return root
}

// openRecommender loads the configuration and connects to the store.
func openRecommender(cmd *cobra.Command) (*recommender.Recommender, redis.UniversalClient, error) {
	configPath, _ := cmd.Flags().GetString("config")
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to load config")
	}
	log.Logger().Debug("load config", zap.String("config", configPath), zap.Any("recommender", conf.Recommender))
	client, err := storage.OpenRedis(conf.Database.CacheStore)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to connect store")
	}
	matrices, opts, err := conf.RecommenderOptions()
	if err != nil {
		_ = client.Close()
		return nil, nil, errors.Trace(err)
	}
	r, err := recommender.NewRecommender(client, conf.Recommender.Prefix, matrices, opts...)
	if err != nil {
		_ = client.Close()
		return nil, nil, errors.Trace(err)
	}
	return r, client, nil
}

func renderScored(w io.Writer, items []recommender.Scored) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Item", "Score")
	for i, item := range items {
		if err := table.Append(strconv.Itoa(i+1), item.Id, strconv.FormatFloat(item.Score, 'f', 6, 64)); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
