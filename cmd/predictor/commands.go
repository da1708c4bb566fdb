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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/nyagato-00/predictor/recommender"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const processChunkSize = 100

func newAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <matrix> <set> <item>...",
		Short: "Add items to a set of an input matrix",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, client, err := openRecommender(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			process, _ := cmd.Flags().GetBool("process")
			if process {
				return r.AddToMatrixAndProcess(cmd.Context(), args[0], args[1], args[2:]...)
			}
			return r.AddToMatrix(cmd.Context(), args[0], args[1], args[2:]...)
		},
	}
	cmd.Flags().Bool("process", false, "recompute similarities of the added items")
	return cmd
}

func newProcessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "process [item]...",
		Short: "Recompute similarities of the given items, or of every item",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, client, err := openRecommender(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			items := args
			if len(items) == 0 {
				if items, err = r.AllItems(cmd.Context()); err != nil {
					return err
				}
			}
			bar := progressbar.NewOptions(len(items),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("processing"),
				progressbar.OptionShowCount())
			for _, chunk := range lo.Chunk(items, processChunkSize) {
				if err = r.ProcessItems(cmd.Context(), chunk...); err != nil {
					return err
				}
				_ = bar.Add(len(chunk))
			}
			return errors.Trace(bar.Finish())
		},
	}
}

func newSimilarCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <item>",
		Short: "Show the cached neighbors of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, client, err := openRecommender(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			offset, _ := cmd.Flags().GetInt("offset")
			limit, _ := cmd.Flags().GetInt("limit")
			exclude, _ := cmd.Flags().GetStringSlice("exclude")
			neighbors, err := r.SimilaritiesFor(cmd.Context(), args[0], offset, limit, exclude...)
			if err != nil {
				return err
			}
			return renderScored(cmd.OutOrStdout(), neighbors)
		},
	}
	cmd.Flags().Int("offset", 0, "number of neighbors to skip")
	cmd.Flags().Int("limit", -1, "maximum number of neighbors, -1 for all")
	cmd.Flags().StringSlice("exclude", nil, "items to leave out")
	return cmd
}

func newPredictCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Rank items related to a seed",
		Long: `Rank items related to a seed given either as --items or as --matrix and --set.
Boosts are a JSON object keyed by matrix, e.g. '{"tags": ["tag1"]}' or
'{"tags": {"values": ["tag1"], "weight": 2.0}}'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseQuery(cmd)
			if err != nil {
				return err
			}
			r, client, err := openRecommender(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			predictions, err := r.PredictionsFor(cmd.Context(), query)
			if err != nil {
				return err
			}
			return renderScored(cmd.OutOrStdout(), predictions)
		},
	}
	cmd.Flags().StringSlice("items", nil, "seed items")
	cmd.Flags().String("matrix", "", "matrix of the seed set")
	cmd.Flags().String("set", "", "seed set")
	cmd.Flags().String("boost", "", "boosts as JSON")
	cmd.Flags().StringSlice("exclude", nil, "items to leave out")
	cmd.Flags().StringSlice("on", nil, "only rank these items")
	cmd.Flags().Int("offset", 0, "number of predictions to skip")
	cmd.Flags().Int("limit", -1, "maximum number of predictions, -1 for all")
	return cmd
}

func parseQuery(cmd *cobra.Command) (recommender.PredictionQuery, error) {
	var query recommender.PredictionQuery
	matrix, _ := cmd.Flags().GetString("matrix")
	set, _ := cmd.Flags().GetString("set")
	items, _ := cmd.Flags().GetStringSlice("items")
	switch {
	case matrix != "":
		query.Seed = recommender.SetSeed(matrix, set)
	case cmd.Flags().Changed("items"):
		query.Seed = recommender.ItemSeed(items...)
	}
	if boost, _ := cmd.Flags().GetString("boost"); boost != "" {
		var raw map[string]any
		decoder := json.NewDecoder(strings.NewReader(boost))
		decoder.UseNumber()
		if err := decoder.Decode(&raw); err != nil {
			return query, errors.Annotate(recommender.ErrMalformedBoost, err.Error())
		}
		boosts, err := recommender.ParseBoosts(raw)
		if err != nil {
			return query, err
		}
		query.Boosts = boosts
	}
	query.Exclude, _ = cmd.Flags().GetStringSlice("exclude")
	query.AllowOnly, _ = cmd.Flags().GetStringSlice("on")
	query.Offset, _ = cmd.Flags().GetInt("offset")
	query.Limit, _ = cmd.Flags().GetInt("limit")
	return query, nil
}

func newDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <item>",
		Short: "Delete an item from every matrix, or from one with --matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, client, err := openRecommender(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			if matrix, _ := cmd.Flags().GetString("matrix"); matrix != "" {
				return r.DeleteFromMatrix(cmd.Context(), matrix, args[0])
			}
			return r.DeleteItem(cmd.Context(), args[0])
		},
	}
	cmd.Flags().String("matrix", "", "only delete from this matrix")
	return cmd
}

func newEnforceLimitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enforce-limit",
		Short: "Trim every neighbor list to the configured similarity limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, client, err := openRecommender(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			return r.EnforceSimilarityLimit(cmd.Context())
		},
	}
}

func newCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete every key of the recommender",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, client, err := openRecommender(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			if err = r.Clean(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleaned %s\n", r.Prefix())
			return err
		},
	}
}
