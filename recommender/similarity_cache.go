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

	"github.com/juju/errors"
	"github.com/nyagato-00/predictor/storage"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// similarityCache keeps a ranked neighbor list per item in a sorted set. A
// negative limit means unbounded.
type similarityCache struct {
	client redis.UniversalClient
	ns     storage.Namespace
	limit  int
}

func (c *similarityCache) key(item string) string {
	return c.ns.Key(item)
}

func (c *similarityCache) bounded() bool {
	return c.limit >= 0
}

// insertOrUpdate stores neighbor in owner's list. A non-positive score removes the
// entry. When the list is full, a new neighbor must beat the lowest score strictly
// to evict it; ties keep the incumbent.
func (c *similarityCache) insertOrUpdate(ctx context.Context, owner, neighbor string, score float64) error {
	if owner == neighbor {
		return nil
	}
	key := c.key(owner)
	if score <= 0 {
		return errors.Trace(c.client.ZRem(ctx, key, neighbor).Err())
	}
	if !c.bounded() {
		return errors.Trace(c.client.ZAdd(ctx, key, redis.Z{Score: score, Member: neighbor}).Err())
	}
	return watch(ctx, c.client, func(tx *redis.Tx) error {
		evict, store, err := c.admit(ctx, tx, key, neighbor, score)
		if err != nil || !store {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if evict != "" {
				pipe.ZRem(ctx, key, evict)
			}
			pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: neighbor})
			return nil
		})
		return err
	}, key)
}

// admit decides whether neighbor may enter a bounded list and which member it replaces.
func (c *similarityCache) admit(ctx context.Context, tx *redis.Tx, key, neighbor string, score float64) (evict string, store bool, err error) {
	if err = tx.ZScore(ctx, key, neighbor).Err(); err == nil {
		// already ranked, update in place
		return "", true, nil
	} else if !errors.Is(err, redis.Nil) {
		return "", false, errors.Trace(err)
	}
	size, err := tx.ZCard(ctx, key).Result()
	if err != nil {
		return "", false, errors.Trace(err)
	}
	if size < int64(c.limit) {
		return "", true, nil
	}
	lowest, err := tx.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return "", false, errors.Trace(err)
	}
	if len(lowest) == 0 || score <= lowest[0].Score {
		return "", false, nil
	}
	return lowest[0].Member.(string), true, nil
}

// removePair drops a and b from each other's lists.
func (c *similarityCache) removePair(ctx context.Context, a, b string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, c.key(a), b)
		pipe.ZRem(ctx, c.key(b), a)
		return nil
	})
	return errors.Trace(err)
}

// top returns owner's neighbors in descending order without the excluded items,
// starting at offset. A non-positive count reads to the end.
func (c *similarityCache) top(ctx context.Context, owner string, offset, count int, exclude []string) ([]Scored, error) {
	if len(exclude) == 0 {
		start, stop := rankRange(offset, count)
		zs, err := c.client.ZRevRangeWithScores(ctx, c.key(owner), start, stop).Result()
		if err != nil {
			return nil, errors.Trace(err)
		}
		return fromZ(zs), nil
	}
	zs, err := c.client.ZRevRangeWithScores(ctx, c.key(owner), 0, -1).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	excluded := lo.SliceToMap(exclude, func(item string) (string, struct{}) { return item, struct{}{} })
	neighbors := lo.Filter(fromZ(zs), func(s Scored, _ int) bool {
		_, ok := excluded[s.Id]
		return !ok
	})
	return paginate(neighbors, offset, count), nil
}

// trim cuts the lists of items down to the limit, dropping the lowest ranks.
func (c *similarityCache) trim(ctx context.Context, items []string) error {
	if !c.bounded() {
		return nil
	}
	for _, chunk := range lo.Chunk(items, scanBatchSize) {
		if _, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, item := range chunk {
				pipe.ZRemRangeByRank(ctx, c.key(item), 0, -int64(c.limit)-1)
			}
			return nil
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// rankRange converts offset/count into inclusive ZRANGE bounds.
func rankRange(offset, count int) (start, stop int64) {
	offset = max(offset, 0)
	if count <= 0 {
		return int64(offset), -1
	}
	return int64(offset), int64(offset + count - 1)
}

func paginate[T any](list []T, offset, count int) []T {
	offset = max(offset, 0)
	if offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if count > 0 && count < len(list) {
		list = list[:count]
	}
	return list
}
