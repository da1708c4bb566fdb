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

package recommender

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/nyagato-00/predictor/base/log"
	"github.com/nyagato-00/predictor/common/parallel"
	"go.uber.org/zap"
)

// ProcessItems recomputes the neighbor lists of items with the configured technique.
// Items are independent: a failure leaves earlier items updated.
func (r *Recommender) ProcessItems(ctx context.Context, items ...string) error {
	name := r.technique.Name()
	return parallel.ForEach(ctx, items, r.jobs, func(item string) error {
		start := time.Now()
		if err := r.technique.Process(ctx, r, item); err != nil {
			return errors.Annotatef(err, "process item %q", item)
		}
		ProcessSeconds.WithLabelValues(name).Observe(since(start))
		ProcessedItemsTotal.WithLabelValues(name).Inc()
		log.Logger().Debug("processed item", zap.String("item", item), zap.String("technique", name))
		return nil
	})
}

// ProcessAll recomputes every known item.
func (r *Recommender) ProcessAll(ctx context.Context) error {
	items, err := r.AllItems(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	log.Logger().Info("start processing items",
		zap.String("prefix", r.Prefix()),
		zap.String("technique", r.technique.Name()),
		zap.Int("n_items", len(items)))
	if err = r.ProcessItems(ctx, items...); err != nil {
		return err
	}
	log.Logger().Info("complete processing items",
		zap.String("prefix", r.Prefix()),
		zap.Int("n_items", len(items)),
		zap.Duration("used_time", time.Since(start)))
	return nil
}

// EnforceSimilarityLimit trims every neighbor list to the configured limit.
func (r *Recommender) EnforceSimilarityLimit(ctx context.Context) error {
	items, err := r.AllItems(ctx)
	if err != nil {
		return err
	}
	if err = r.cache.trim(ctx, items); err != nil {
		return err
	}
	log.Logger().Info("enforce similarity limit",
		zap.String("prefix", r.Prefix()),
		zap.Int("limit", r.cache.limit),
		zap.Int("n_items", len(items)))
	return nil
}
