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
	_ "embed"
	"strconv"

	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

const (
	Pairwise         = "pairwise"
	AtomicScript     = "script"
	ApproximateUnion = "union"
)

// Techniques lists the names accepted by ParseTechnique.
var Techniques = []string{Pairwise, AtomicScript, ApproximateUnion}

// Technique recomputes the neighbor list of one item.
type Technique interface {
	Name() string
	Process(ctx context.Context, r *Recommender, item string) error
}

// ParseTechnique resolves a configured technique name. An empty name selects pairwise.
func ParseTechnique(name string) (Technique, error) {
	switch name {
	case "", Pairwise:
		return PairwiseRecompute{}, nil
	case AtomicScript:
		return AtomicScriptRecompute{}, nil
	case ApproximateUnion:
		return ApproximateUnionRecompute{}, nil
	default:
		return nil, errors.NotValidf("processing technique %q", name)
	}
}

// PairwiseRecompute scores every related item on the client and writes both
// directions of each pair. Readers may observe a partially updated list.
type PairwiseRecompute struct{}

func (PairwiseRecompute) Name() string {
	return Pairwise
}

func (PairwiseRecompute) Process(ctx context.Context, r *Recommender, item string) error {
	related, err := r.RelatedItems(ctx, item)
	if err != nil {
		return err
	}
	for _, other := range related {
		if err = r.cacheSimilarity(ctx, item, other); err != nil {
			return err
		}
	}
	return nil
}

//go:embed process_item.lua
var processItemSource string

var processItemScript = redis.NewScript(processItemSource)

// AtomicScriptRecompute runs the pairwise computation inside the store as one
// script, so the whole recompute of an item is applied at once.
type AtomicScriptRecompute struct{}

func (AtomicScriptRecompute) Name() string {
	return AtomicScript
}

func (AtomicScriptRecompute) Process(ctx context.Context, r *Recommender, item string) error {
	args := make([]any, 0, 3+3*len(r.matrices))
	args = append(args, r.Prefix(), r.cache.limit, item)
	for _, m := range r.matrices {
		args = append(args, m.name, strconv.FormatFloat(m.weight, 'g', -1, 64), string(m.measure))
	}
	return errors.Trace(processItemScript.Run(ctx, r.client, []string{}, args...).Err())
}

// ApproximateUnionRecompute replaces the owner's list with a weighted union of the
// item's sets, each set weighted by matrix weight over set size. This is a
// co-occurrence count, not Jaccard or Sørensen, and it ranks differently. Only the
// owner's list is rewritten, so the result is not symmetric.
type ApproximateUnionRecompute struct{}

func (ApproximateUnionRecompute) Name() string {
	return ApproximateUnion
}

func (ApproximateUnionRecompute) Process(ctx context.Context, r *Recommender, item string) error {
	var (
		keys    []string
		weights []float64
	)
	for _, m := range r.matrices {
		sets, err := r.client.SMembers(ctx, m.SetsKey(item)).Result()
		if err != nil {
			return errors.Trace(err)
		}
		if len(sets) == 0 {
			continue
		}
		setKeys := lo.Map(sets, func(set string, _ int) string { return m.ItemsKey(set) })
		counts := make([]*redis.IntCmd, len(setKeys))
		if _, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, key := range setKeys {
				counts[i] = pipe.SCard(ctx, key)
			}
			return nil
		}); err != nil {
			return errors.Trace(err)
		}
		for i, key := range setKeys {
			if n := counts[i].Val(); n > 0 {
				keys = append(keys, key)
				weights = append(weights, m.weight/float64(n))
			}
		}
	}

	key := r.cache.key(item)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(keys) == 0 {
			return nil
		}
		pipe.ZUnionStore(ctx, key, &redis.ZStore{Keys: keys, Weights: weights})
		pipe.ZRem(ctx, key, item)
		if r.cache.bounded() {
			pipe.ZRemRangeByRank(ctx, key, 0, -int64(r.cache.limit)-1)
		}
		return nil
	})
	return errors.Trace(err)
}

// cacheSimilarity aggregates the weighted measure of a pair over all matrices and
// stores it in both directions, or drops the pair when the aggregate is not positive.
func (r *Recommender) cacheSimilarity(ctx context.Context, item1, item2 string) error {
	var score float64
	for _, m := range r.matrices {
		s, err := m.Score(ctx, item1, item2)
		if err != nil {
			return err
		}
		score += float64(s * m.weight)
	}
	if score <= 0 {
		return r.cache.removePair(ctx, item1, item2)
	}
	if err := r.cache.insertOrUpdate(ctx, item1, item2, score); err != nil {
		return err
	}
	return r.cache.insertOrUpdate(ctx, item2, item1, score)
}
