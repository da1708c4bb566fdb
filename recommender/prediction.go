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
	"encoding/json"
	"math"
	"slices"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// Seed selects the items a prediction starts from: either an explicit list or
// the members of one set of a matrix.
type Seed struct {
	Items  []string
	Matrix string
	Set    string
}

func ItemSeed(items ...string) *Seed {
	return &Seed{Items: items}
}

func SetSeed(matrix, set string) *Seed {
	return &Seed{Matrix: matrix, Set: set}
}

// Boost mixes the raw members of some sets of a matrix into a prediction.
type Boost struct {
	Matrix string
	Values []string
	Weight float64
}

// ParseBoosts decodes loosely typed boosts keyed by matrix name. A value is either a
// list of set ids with weight 1, or a map with "values" and an optional "weight".
func ParseBoosts(raw map[string]any) ([]Boost, error) {
	names := lo.Keys(raw)
	sort.Strings(names)
	boosts := make([]Boost, 0, len(names))
	for _, name := range names {
		boost := Boost{Matrix: name, Weight: 1}
		switch value := raw[name].(type) {
		case map[string]any:
			values, ok := toStrings(value["values"])
			if !ok {
				return nil, errors.Annotatef(ErrMalformedBoost, "values of %q", name)
			}
			boost.Values = values
			if w, exist := value["weight"]; exist {
				if boost.Weight, ok = toFloat(w); !ok {
					return nil, errors.Annotatef(ErrMalformedBoost, "weight of %q", name)
				}
			}
		default:
			values, ok := toStrings(value)
			if !ok {
				return nil, errors.Annotatef(ErrMalformedBoost, "%q", name)
			}
			boost.Values = values
		}
		boosts = append(boosts, boost)
	}
	return boosts, nil
}

func toStrings(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		values := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			values = append(values, s)
		}
		return values, true
	default:
		return nil, false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// PredictionQuery ranks candidates by summing the neighbor lists of the seed items
// and the boosted sets. Limit <= 0 reads to the end.
type PredictionQuery struct {
	Seed      *Seed
	Boosts    []Boost
	Exclude   []string
	AllowOnly []string
	Offset    int
	Limit     int
}

// PredictionsFor answers a prediction query. Seed items and excluded items never
// appear in the result. With AllowOnly, only those items are returned and the ones
// without any score come last with score 0.
func (r *Recommender) PredictionsFor(ctx context.Context, q PredictionQuery) ([]Scored, error) {
	start := time.Now()
	if q.Seed == nil {
		return nil, errors.Trace(ErrMissingSeed)
	}
	seeds, err := r.resolveSeed(ctx, q.Seed)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(seeds))
	weights := make([]float64, 0, len(seeds))
	for _, item := range seeds {
		keys = append(keys, r.cache.key(item))
		weights = append(weights, 1)
	}
	for _, boost := range q.Boosts {
		m, err := r.Matrix(boost.Matrix)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(boost.Weight) || math.IsInf(boost.Weight, 0) {
			return nil, errors.Annotatef(ErrMalformedBoost, "weight %v of %q", boost.Weight, boost.Matrix)
		}
		for _, set := range boost.Values {
			keys = append(keys, m.ItemsKey(set))
			weights = append(weights, boost.Weight)
		}
	}
	if len(keys) == 0 {
		return []Scored{}, nil
	}

	removed := slices.Concat(seeds, q.Exclude)
	var allowed []string
	if len(q.AllowOnly) > 0 {
		excluded := mapset.NewThreadUnsafeSet(removed...)
		allowed = lo.Filter(lo.Uniq(q.AllowOnly), func(item string, _ int) bool {
			return !excluded.Contains(item)
		})
		if len(allowed) == 0 {
			return []Scored{}, nil
		}
	}

	tmp := r.tempKey()
	var result *redis.ZSliceCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZUnionStore(ctx, tmp, &redis.ZStore{Keys: keys, Weights: weights})
		if len(removed) > 0 {
			pipe.ZRem(ctx, tmp, lo.ToAnySlice(removed)...)
		}
		if len(allowed) > 0 {
			// destinations never alias their inputs
			allowKey, interKey := r.tempKey(), r.tempKey()
			pipe.ZAdd(ctx, allowKey, lo.Map(allowed, func(item string, _ int) redis.Z {
				return redis.Z{Score: 0, Member: item}
			})...)
			pipe.ZInterStore(ctx, interKey, &redis.ZStore{Keys: []string{tmp, allowKey}})
			pipe.ZUnionStore(ctx, tmp, &redis.ZStore{Keys: []string{interKey, allowKey}})
			pipe.Del(ctx, interKey, allowKey)
		}
		first, last := rankRange(q.Offset, q.Limit)
		result = pipe.ZRevRangeWithScores(ctx, tmp, first, last)
		pipe.Del(ctx, tmp)
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	PredictSeconds.Observe(since(start))
	return fromZ(result.Val()), nil
}

func (r *Recommender) resolveSeed(ctx context.Context, seed *Seed) ([]string, error) {
	if seed.Matrix == "" {
		return lo.Uniq(seed.Items), nil
	}
	m, err := r.Matrix(seed.Matrix)
	if err != nil {
		return nil, err
	}
	return m.ItemsFor(ctx, seed.Set)
}

// SimilaritiesFor reads the cached neighbors of item in descending order. Limit <= 0
// reads to the end.
func (r *Recommender) SimilaritiesFor(ctx context.Context, item string, offset, limit int, exclude ...string) ([]Scored, error) {
	return r.cache.top(ctx, item, offset, limit, exclude)
}
