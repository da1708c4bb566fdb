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

// Package recommender computes item-to-item similarities from set co-membership,
// keeps a bounded ranked neighbor list per item in Redis and answers prediction
// queries over those lists.
//
// Keys under a recommender prefix:
//
//	<prefix>:all_items                every known item
//	<prefix>:similarities:<item>      ranked neighbors of an item (sorted set)
//	<prefix>:<matrix>:items:<set>     items of a set
//	<prefix>:<matrix>:sets:<item>     sets of an item
//	<prefix>:temp:<uuid>              scratch keys of a running query
package recommender

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/juju/errors"
	"github.com/nyagato-00/predictor/base/log"
	"github.com/nyagato-00/predictor/similarity"
	"github.com/nyagato-00/predictor/storage"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultSimilarityLimit = 128
	NoSimilarityLimit      = -1

	allItemsKey     = "all_items"
	similaritiesKey = "similarities"
	tempKey         = "temp"

	scanBatchSize = 1000
)

var (
	ErrMissingSeed    = errors.NotValidf("prediction seed")
	ErrUnknownMatrix  = errors.NotFoundf("input matrix")
	ErrMalformedBoost = errors.NotValidf("boost")
)

var reservedNames = []string{allItemsKey, similaritiesKey, tempKey}

// MatrixOptions declares one input matrix.
type MatrixOptions struct {
	Name    string
	Weight  float64
	Measure similarity.Measure
}

// Matrix declares a matrix with weight 1 and the Jaccard index.
func Matrix(name string) MatrixOptions {
	return MatrixOptions{Name: name, Weight: 1, Measure: similarity.JaccardIndex}
}

func (m MatrixOptions) WithWeight(weight float64) MatrixOptions {
	m.Weight = weight
	return m
}

func (m MatrixOptions) WithMeasure(measure similarity.Measure) MatrixOptions {
	m.Measure = measure
	return m
}

type Options struct {
	SimilarityLimit int
	Technique       Technique
	Jobs            int
}

type Option func(*Options)

// WithSimilarityLimit caps every neighbor list. Negative means unbounded.
func WithSimilarityLimit(limit int) Option {
	return func(o *Options) {
		o.SimilarityLimit = limit
	}
}

func WithoutSimilarityLimit() Option {
	return WithSimilarityLimit(NoSimilarityLimit)
}

func WithTechnique(technique Technique) Option {
	return func(o *Options) {
		o.Technique = technique
	}
}

// WithJobs sets how many items ProcessItems recomputes concurrently.
func WithJobs(jobs int) Option {
	return func(o *Options) {
		o.Jobs = jobs
	}
}

func NewOptions(opts ...Option) Options {
	opt := Options{
		SimilarityLimit: DefaultSimilarityLimit,
		Technique:       PairwiseRecompute{},
		Jobs:            1,
	}
	for _, o := range opts {
		o(&opt)
	}
	return opt
}

// Recommender is one configured recommender type. Its configuration never changes
// after construction; all mutable state lives in the store.
type Recommender struct {
	client    redis.UniversalClient
	namespace storage.Namespace
	matrices  []*InputMatrix
	byName    map[string]*InputMatrix
	cache     *similarityCache
	technique Technique
	jobs      int
}

// NewRecommender validates the matrix declarations and binds them to a key prefix.
// Matrices are aggregated in the declared order.
func NewRecommender(client redis.UniversalClient, prefix string, matrices []MatrixOptions, opts ...Option) (*Recommender, error) {
	if prefix == "" {
		return nil, errors.NotValidf("empty prefix")
	}
	opt := NewOptions(opts...)
	if opt.Technique == nil {
		return nil, errors.NotValidf("nil processing technique")
	}
	ns := storage.Namespace(prefix)
	r := &Recommender{
		client:    client,
		namespace: ns,
		byName:    make(map[string]*InputMatrix, len(matrices)),
		technique: opt.Technique,
		jobs:      max(opt.Jobs, 1),
		cache: &similarityCache{
			client: client,
			ns:     ns.Child(similaritiesKey),
			limit:  max(opt.SimilarityLimit, NoSimilarityLimit),
		},
	}
	for _, m := range matrices {
		if m.Name == "" {
			return nil, errors.NotValidf("empty matrix name")
		}
		if slices.Contains(reservedNames, m.Name) {
			return nil, errors.NotValidf("reserved matrix name %q", m.Name)
		}
		if _, exist := r.byName[m.Name]; exist {
			return nil, errors.AlreadyExistsf("input matrix %q", m.Name)
		}
		if m.Weight < 0 || math.IsNaN(m.Weight) || math.IsInf(m.Weight, 0) {
			return nil, errors.NotValidf("weight %v of matrix %q", m.Weight, m.Name)
		}
		if err := m.Measure.Validate(); err != nil {
			return nil, errors.Annotatef(err, "matrix %q", m.Name)
		}
		matrix := &InputMatrix{
			client:   client,
			name:     m.Name,
			weight:   m.Weight,
			measure:  m.Measure,
			ns:       ns.Child(m.Name),
			allItems: ns.Key(allItemsKey),
		}
		r.matrices = append(r.matrices, matrix)
		r.byName[m.Name] = matrix
	}
	return r, nil
}

func (r *Recommender) Prefix() string {
	return string(r.namespace)
}

func (r *Recommender) SimilarityLimit() int {
	return r.cache.limit
}

func (r *Recommender) Technique() Technique {
	return r.technique
}

// Matrix looks up a configured input matrix by name.
func (r *Recommender) Matrix(name string) (*InputMatrix, error) {
	m, ok := r.byName[name]
	if !ok {
		return nil, errors.Annotatef(ErrUnknownMatrix, "%q", name)
	}
	return m, nil
}

// Matrices returns input matrices in declaration order.
func (r *Recommender) Matrices() []*InputMatrix {
	return slices.Clone(r.matrices)
}

// AllItems returns every item present in any matrix, sorted.
func (r *Recommender) AllItems(ctx context.Context) ([]string, error) {
	items, err := r.client.SMembers(ctx, r.namespace.Key(allItemsKey)).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	slices.Sort(items)
	return items, nil
}

// AddToMatrix records that items belong to set in the named matrix.
func (r *Recommender) AddToMatrix(ctx context.Context, matrix, set string, items ...string) error {
	m, err := r.Matrix(matrix)
	if err != nil {
		return err
	}
	return m.Add(ctx, set, items...)
}

// AddToMatrixAndProcess adds items and recomputes their similarities right away.
func (r *Recommender) AddToMatrixAndProcess(ctx context.Context, matrix, set string, items ...string) error {
	if err := r.AddToMatrix(ctx, matrix, set, items...); err != nil {
		return err
	}
	return r.ProcessItems(ctx, items...)
}

// SetsFor returns the sets containing item across all matrices.
func (r *Recommender) SetsFor(ctx context.Context, item string) ([]string, error) {
	if len(r.matrices) == 0 {
		return []string{}, nil
	}
	keys := lo.Map(r.matrices, func(m *InputMatrix, _ int) string { return m.SetsKey(item) })
	sets, err := r.client.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	slices.Sort(sets)
	return sets, nil
}

// RelatedItems returns, sorted, every other item sharing at least one set with item in any matrix.
func (r *Recommender) RelatedItems(ctx context.Context, item string) ([]string, error) {
	cmds := make([]*redis.StringSliceCmd, len(r.matrices))
	if len(r.matrices) > 0 {
		if _, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, m := range r.matrices {
				cmds[i] = pipe.SMembers(ctx, m.SetsKey(item))
			}
			return nil
		}); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var keys []string
	for i, m := range r.matrices {
		for _, set := range cmds[i].Val() {
			keys = append(keys, m.ItemsKey(set))
		}
	}
	return r.unionWithout(ctx, keys, item)
}

func (r *Recommender) unionWithout(ctx context.Context, keys []string, item string) ([]string, error) {
	if len(keys) == 0 {
		return []string{}, nil
	}
	members, err := r.client.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	related := lo.Without(members, item)
	slices.Sort(related)
	return related, nil
}

// Clean deletes every key under the prefix.
func (r *Recommender) Clean(ctx context.Context) error {
	var (
		cursor  uint64
		keys    []string
		err     error
		deleted int
	)
	for {
		keys, cursor, err = r.client.Scan(ctx, cursor, r.namespace.Pattern(), scanBatchSize).Result()
		if err != nil {
			return errors.Trace(err)
		}
		if len(keys) > 0 {
			if err = r.client.Del(ctx, keys...).Err(); err != nil {
				return errors.Trace(err)
			}
			deleted += len(keys)
		}
		if cursor == 0 {
			break
		}
	}
	log.Logger().Info("clean recommender", zap.String("prefix", r.Prefix()), zap.Int("n_keys", deleted))
	return nil
}

func (r *Recommender) tempKey() string {
	return r.namespace.Key(tempKey, newTempId())
}

func since(start time.Time) float64 {
	return time.Since(start).Seconds()
}
