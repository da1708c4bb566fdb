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
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/nyagato-00/predictor/similarity"
	"github.com/nyagato-00/predictor/storage"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// InputMatrix is one weighted bipartite relation between items and sets, stored
// as two inverted indices.
type InputMatrix struct {
	client   redis.UniversalClient
	name     string
	weight   float64
	measure  similarity.Measure
	ns       storage.Namespace
	allItems string
}

func (m *InputMatrix) Name() string {
	return m.name
}

func (m *InputMatrix) Weight() float64 {
	return m.weight
}

func (m *InputMatrix) Measure() similarity.Measure {
	return m.measure
}

// ItemsKey is the key of the items in set.
func (m *InputMatrix) ItemsKey(set string) string {
	return m.ns.Key("items", set)
}

// SetsKey is the key of the sets containing item.
func (m *InputMatrix) SetsKey(item string) string {
	return m.ns.Key("sets", item)
}

// Add makes items members of set. All memberships become visible together.
func (m *InputMatrix) Add(ctx context.Context, set string, items ...string) error {
	if len(items) == 0 {
		return nil
	}
	members := lo.ToAnySlice(items)
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, m.allItems, members...)
		pipe.SAdd(ctx, m.ItemsKey(set), members...)
		for _, item := range items {
			pipe.SAdd(ctx, m.SetsKey(item), set)
		}
		return nil
	})
	return errors.Trace(err)
}

// ItemsFor returns the members of set, sorted.
func (m *InputMatrix) ItemsFor(ctx context.Context, set string) ([]string, error) {
	items, err := m.client.SMembers(ctx, m.ItemsKey(set)).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	slices.Sort(items)
	return items, nil
}

// SetsFor returns the sets containing item, sorted.
func (m *InputMatrix) SetsFor(ctx context.Context, item string) ([]string, error) {
	sets, err := m.client.SMembers(ctx, m.SetsKey(item)).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	slices.Sort(sets)
	return sets, nil
}

// RelatedItems returns the items co-occurring with item in any of its sets.
func (m *InputMatrix) RelatedItems(ctx context.Context, item string) ([]string, error) {
	sets, err := m.client.SMembers(ctx, m.SetsKey(item)).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(sets) == 0 {
		return []string{}, nil
	}
	keys := lo.Map(sets, func(set string, _ int) string { return m.ItemsKey(set) })
	members, err := m.client.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	related := lo.Without(members, item)
	slices.Sort(related)
	return related, nil
}

// DeleteItem removes item from every set it belongs to. The item's set index is
// watched so a concurrent Add for the same item forces a retry.
func (m *InputMatrix) DeleteItem(ctx context.Context, item string) error {
	setsKey := m.SetsKey(item)
	return watch(ctx, m.client, func(tx *redis.Tx) error {
		sets, err := tx.SMembers(ctx, setsKey).Result()
		if err != nil {
			return errors.Trace(err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, set := range sets {
				pipe.SRem(ctx, m.ItemsKey(set), item)
			}
			pipe.Del(ctx, setsKey)
			return nil
		})
		return err
	}, setsKey)
}

// Score applies the matrix measure to the set memberships of two items. The
// result is not weighted.
func (m *InputMatrix) Score(ctx context.Context, item1, item2 string) (float64, error) {
	var cmd1, cmd2 *redis.StringSliceCmd
	if _, err := m.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		cmd1 = pipe.SMembers(ctx, m.SetsKey(item1))
		cmd2 = pipe.SMembers(ctx, m.SetsKey(item2))
		return nil
	}); err != nil {
		return 0, errors.Trace(err)
	}
	a := mapset.NewThreadUnsafeSet(cmd1.Val()...)
	b := mapset.NewThreadUnsafeSet(cmd2.Val()...)
	return m.measure.Score(a, b)
}
