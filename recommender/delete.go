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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/nyagato-00/predictor/base/log"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DeleteItem removes item from every matrix, drops its neighbor list and removes it
// from every list that references it. The item's own list is watched, so a
// concurrent recompute of the item forces a retry.
func (r *Recommender) DeleteItem(ctx context.Context, item string) error {
	start := time.Now()
	related, err := r.RelatedItems(ctx, item)
	if err != nil {
		return err
	}
	for _, m := range r.matrices {
		if err = m.DeleteItem(ctx, item); err != nil {
			return err
		}
	}

	key := r.cache.key(item)
	err = watch(ctx, r.client, func(tx *redis.Tx) error {
		neighbors, err := tx.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			return errors.Trace(err)
		}
		// owners that kept the item after an asymmetric eviction are found through membership
		owners := mapset.NewThreadUnsafeSet(neighbors...)
		owners.Append(related...)
		owners.Remove(item)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for owner := range owners.Iter() {
				pipe.ZRem(ctx, r.cache.key(owner), item)
			}
			pipe.Del(ctx, key)
			pipe.SRem(ctx, r.namespace.Key(allItemsKey), item)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return err
	}
	DeleteItemSeconds.Observe(since(start))
	log.Logger().Debug("deleted item", zap.String("item", item), zap.Int("n_related", len(related)))
	return nil
}

// DeleteFromMatrix removes item from one matrix and rescores the pairs it formed
// with its former co-members. The item leaves all_items once it has no set left.
func (r *Recommender) DeleteFromMatrix(ctx context.Context, matrix, item string) error {
	m, err := r.Matrix(matrix)
	if err != nil {
		return err
	}
	related, err := r.RelatedItems(ctx, item)
	if err != nil {
		return err
	}
	if err = m.DeleteItem(ctx, item); err != nil {
		return err
	}
	if _, ok := r.technique.(ApproximateUnionRecompute); ok {
		// union lists are rebuilt per owner rather than per pair
		if err = r.ProcessItems(ctx, append([]string{item}, related...)...); err != nil {
			return err
		}
	} else {
		for _, other := range related {
			if err = r.cacheSimilarity(ctx, item, other); err != nil {
				return err
			}
		}
	}
	sets, err := r.SetsFor(ctx, item)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return errors.Trace(r.client.SRem(ctx, r.namespace.Key(allItemsKey), item).Err())
	}
	return nil
}
