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
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/juju/errors"
	"github.com/nyagato-00/predictor/similarity"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type TechniqueTestSuite struct {
	baseTestSuite
	technique Technique
}

// exact reports whether the technique computes the configured measures.
func (suite *TechniqueTestSuite) exact() bool {
	_, approximate := suite.technique.(ApproximateUnionRecompute)
	return !approximate
}

func (suite *TechniqueTestSuite) requireExact() {
	if !suite.exact() {
		suite.T().Skip("approximate technique ranks by co-occurrence")
	}
}

func (suite *TechniqueTestSuite) newRecommender(matrices []MatrixOptions, opts ...Option) *Recommender {
	return suite.baseTestSuite.newRecommender(testPrefix, matrices, append(opts, WithTechnique(suite.technique))...)
}

// predictionFixture has users weighted 4 and tags weighted 1.
func (suite *TechniqueTestSuite) predictionFixture(withMe bool, tag2 ...string) *Recommender {
	r := suite.newRecommender([]MatrixOptions{Matrix("users").WithWeight(4), Matrix("tags").WithWeight(1)})
	if withMe {
		suite.add(r, "users", "me", "foo", "bar", "fnord")
	}
	suite.add(r, "users", "not_me", "foo", "shmoo")
	suite.add(r, "users", "another", "fnord", "other")
	suite.add(r, "users", "another", "nada")
	suite.add(r, "tags", "tag1", "foo", "fnord", "shmoo")
	suite.add(r, "tags", "tag2", lo.Ternary(len(tag2) > 0, tag2, []string{"bar", "shmoo"})...)
	suite.add(r, "tags", "tag3", "shmoo", "nada")
	suite.NoError(r.ProcessAll(context.Background()))
	return r
}

func (suite *TechniqueTestSuite) predict(r *Recommender, q PredictionQuery) []string {
	predictions, err := r.PredictionsFor(context.Background(), q)
	suite.Require().NoError(err)
	return RemoveScores(predictions)
}

func (suite *TechniqueTestSuite) TestPredictions() {
	r := suite.predictionFixture(true)
	me := SetSeed("users", "me")
	items := ItemSeed("foo", "bar", "fnord")
	suite.Equal([]string{"shmoo", "other", "nada"}, suite.predict(r, PredictionQuery{Seed: me}))
	suite.Equal([]string{"shmoo", "other", "nada"}, suite.predict(r, PredictionQuery{Seed: items}))
	suite.Equal([]string{"other"}, suite.predict(r, PredictionQuery{Seed: me, Offset: 1, Limit: 1}))
	suite.Equal([]string{"other", "nada"}, suite.predict(r, PredictionQuery{Seed: me, Offset: 1}))
	suite.Equal([]string{"other", "nada"}, suite.predict(r, PredictionQuery{Seed: me, Exclude: []string{"shmoo"}}))
	suite.Equal([]string{}, suite.predict(r, PredictionQuery{Seed: me, Offset: 10}))
}

func (suite *TechniqueTestSuite) TestPredictionsWithBoost() {
	r := suite.predictionFixture(true)
	me := SetSeed("users", "me")
	items := ItemSeed("foo", "bar", "fnord")
	boost := []Boost{{Matrix: "tags", Values: []string{"tag3"}, Weight: 1}}
	suite.Equal([]string{"shmoo", "nada", "other"}, suite.predict(r, PredictionQuery{Seed: me, Boosts: boost}))
	suite.Equal([]string{"shmoo", "nada", "other"}, suite.predict(r, PredictionQuery{Seed: items, Boosts: boost}))
	suite.Equal([]string{"nada"}, suite.predict(r, PredictionQuery{Seed: me, Boosts: boost, Offset: 1, Limit: 1}))
	suite.Equal([]string{"nada", "other"}, suite.predict(r, PredictionQuery{Seed: me, Boosts: boost, Offset: 1}))

	// weights reach the store
	predictions, err := r.PredictionsFor(context.Background(), PredictionQuery{
		Seed:   me,
		Boosts: []Boost{{Matrix: "tags", Values: []string{"tag3"}, Weight: 10000}},
	})
	suite.NoError(err)
	suite.Require().Len(predictions, 3)
	suite.Equal("shmoo", predictions[0].Id)
	suite.Greater(predictions[0].Score, 10000.0)
	suite.Equal("nada", predictions[1].Id)
	suite.Greater(predictions[1].Score, 10000.0)
	suite.Equal("other", predictions[2].Id)
	suite.Less(predictions[2].Score, 10.0)
}

func (suite *TechniqueTestSuite) TestPredictionsWithBoostAndEmptySeed() {
	r := suite.predictionFixture(false)
	me := SetSeed("users", "me")
	boost := []Boost{{Matrix: "tags", Values: []string{"tag3"}, Weight: 1}}
	suite.Equal([]string{"shmoo", "nada"}, suite.predict(r, PredictionQuery{Seed: me, Boosts: boost}))
	suite.Equal([]string{"shmoo", "nada"}, suite.predict(r, PredictionQuery{Seed: ItemSeed(), Boosts: boost}))
	suite.Equal([]string{"nada"}, suite.predict(r, PredictionQuery{Seed: me, Boosts: boost, Offset: 1, Limit: 1}))
	suite.Equal([]string{"nada"}, suite.predict(r, PredictionQuery{Seed: me, Boosts: boost, Offset: 1}))
	// neither seed items nor boosts
	suite.Equal([]string{}, suite.predict(r, PredictionQuery{Seed: me}))
}

func (suite *TechniqueTestSuite) TestPredictionsErrors() {
	ctx := context.Background()
	r := suite.predictionFixture(true)
	_, err := r.PredictionsFor(ctx, PredictionQuery{})
	suite.True(errors.Is(err, ErrMissingSeed))
	_, err = r.PredictionsFor(ctx, PredictionQuery{Seed: SetSeed("topics", "me")})
	suite.True(errors.Is(err, ErrUnknownMatrix))
	_, err = r.PredictionsFor(ctx, PredictionQuery{
		Seed:   ItemSeed("foo"),
		Boosts: []Boost{{Matrix: "tags", Values: []string{"tag3"}, Weight: math.NaN()}},
	})
	suite.True(errors.Is(err, ErrMalformedBoost))
}

func (suite *TechniqueTestSuite) TestPredictionsAllowOnly() {
	suite.requireExact()
	r := suite.predictionFixture(true, "bar", "shmoo", "other")
	me := SetSeed("users", "me")
	items := ItemSeed("foo", "bar", "fnord")
	predictions, err := r.PredictionsFor(context.Background(), PredictionQuery{Seed: me, AllowOnly: []string{"other"}})
	suite.NoError(err)
	suite.assertScored([]Scored{{"other", 3}}, predictions)
	predictions, err = r.PredictionsFor(context.Background(), PredictionQuery{Seed: me, AllowOnly: []string{"other", "nada"}})
	suite.NoError(err)
	suite.assertScored([]Scored{{"other", 3}, {"nada", 2}}, predictions)
	predictions, err = r.PredictionsFor(context.Background(), PredictionQuery{Seed: items, AllowOnly: []string{"other", "nada"}})
	suite.NoError(err)
	suite.assertScored([]Scored{{"other", 3}, {"nada", 2}}, predictions)
	predictions, err = r.PredictionsFor(context.Background(), PredictionQuery{Seed: me, AllowOnly: []string{"shmoo", "other", "nada"}, Offset: 1, Limit: 1})
	suite.NoError(err)
	suite.assertScored([]Scored{{"other", 3}}, predictions)
	predictions, err = r.PredictionsFor(context.Background(), PredictionQuery{Seed: me, AllowOnly: []string{"shmoo", "other", "nada"}, Offset: 1})
	suite.NoError(err)
	suite.assertScored([]Scored{{"other", 3}, {"nada", 2}}, predictions)

	// unscored items come last with score 0, seeds and excluded items never appear
	predictions, err = r.PredictionsFor(context.Background(), PredictionQuery{
		Seed:      me,
		AllowOnly: []string{"unknown", "nada", "foo", "other"},
		Exclude:   []string{"other"},
	})
	suite.NoError(err)
	suite.assertScored([]Scored{{"nada", 2}, {"unknown", 0}}, predictions)
	suite.Equal([]string{}, suite.predict(r, PredictionQuery{Seed: me, AllowOnly: []string{"foo"}}))
}

func (suite *TechniqueTestSuite) TestProcessItems() {
	ctx := context.Background()
	for _, limit := range []int{NoSimilarityLimit, 1} {
		suite.server.FlushAll()
		r := suite.newRecommender([]MatrixOptions{
			Matrix("myfirstinput"),
			Matrix("mysecondinput"),
			Matrix("mythirdinput").WithWeight(3),
		}, WithSimilarityLimit(limit))
		suite.add(r, "myfirstinput", "set1", "item1", "item2")
		suite.add(r, "mysecondinput", "set2", "item2", "item3")
		suite.add(r, "mythirdinput", "set3", "item2", "item3")
		suite.add(r, "mythirdinput", "set4", "item1", "item2", "item3")
		suite.Empty(suite.similarities(r, "item2"))
		suite.NoError(r.ProcessItems(ctx, "item2"))
		if limit < 0 {
			suite.Equal([]string{"item3", "item1"}, RemoveScores(suite.similarities(r, "item2")))
		} else {
			suite.Equal([]string{"item3"}, RemoveScores(suite.similarities(r, "item2")))
		}
	}
}

func (suite *TechniqueTestSuite) TestWeightedSum() {
	suite.requireExact()
	r := suite.newRecommender([]MatrixOptions{
		Matrix("users").WithWeight(1),
		Matrix("tags").WithWeight(2),
		Matrix("topics").WithWeight(4),
	})
	suite.add(r, "users", "user1", "c1", "c2", "c4")
	suite.add(r, "users", "user2", "c3", "c4")
	suite.add(r, "topics", "topic1", "c1", "c4")
	suite.add(r, "topics", "topic2", "c2", "c3")
	suite.add(r, "tags", "tag1", "c1", "c2", "c4")
	suite.add(r, "tags", "tag2", "c1", "c4")
	suite.NoError(r.ProcessAll(context.Background()))
	suite.assertScored([]Scored{{"c4", 6.5}, {"c2", 2.0}}, suite.similarities(r, "c1"))
	suite.assertScored([]Scored{{"c3", 4.0}, {"c1", 2.0}, {"c4", 1.5}}, suite.similarities(r, "c2"))
	suite.assertScored([]Scored{{"c2", 4.0}, {"c4", 0.5}}, suite.similarities(r, "c3"))
	suite.assertScored([]Scored{{"c1", 6.5}, {"c2", 1.5}}, suite.similarities(r, "c4", "c3"))

	neighbors, err := r.SimilaritiesFor(context.Background(), "c2", 1, 1)
	suite.NoError(err)
	suite.assertScored([]Scored{{"c1", 2.0}}, neighbors)
	neighbors, err = r.SimilaritiesFor(context.Background(), "c2", 1, 1, "c3")
	suite.NoError(err)
	suite.assertScored([]Scored{{"c4", 1.5}}, neighbors)
}

func (suite *TechniqueTestSuite) TestSorensen() {
	suite.requireExact()
	r := suite.newRecommender([]MatrixOptions{Matrix("users").WithMeasure(similarity.SorensenCoefficient)})
	suite.add(r, "users", "u1", "a", "b")
	suite.add(r, "users", "u2", "a")
	suite.NoError(r.ProcessAll(context.Background()))
	// a={u1,u2} b={u1}: 2*1/(2+1)
	suite.assertScored([]Scored{{"b", 2.0 / 3.0}}, suite.similarities(r, "a"))
}

func (suite *TechniqueTestSuite) TestSymmetry() {
	suite.requireExact()
	r := suite.randomFixture(WithoutSimilarityLimit())
	ctx := context.Background()
	items, err := r.AllItems(ctx)
	suite.NoError(err)
	for _, item := range items {
		for _, neighbor := range suite.similarities(r, item) {
			reverse := lo.SliceToMap(suite.similarities(r, neighbor.Id), func(s Scored) (string, float64) { return s.Id, s.Score })
			score, ok := reverse[item]
			if suite.True(ok, "%s -> %s", neighbor.Id, item) {
				suite.Equal(neighbor.Score, score)
			}
		}
	}
}

func (suite *TechniqueTestSuite) TestNoSelfLoops() {
	r := suite.randomFixture()
	items, err := r.AllItems(context.Background())
	suite.NoError(err)
	for _, item := range items {
		suite.NotContains(RemoveScores(suite.similarities(r, item)), item)
	}
}

func (suite *TechniqueTestSuite) TestBoundedSize() {
	ctx := context.Background()
	r := suite.randomFixture(WithSimilarityLimit(3))
	items, err := r.AllItems(ctx)
	suite.NoError(err)
	for _, item := range items {
		suite.LessOrEqual(len(suite.similarities(r, item)), 3)
	}

	suite.server.FlushAll()
	r = suite.randomFixture(WithSimilarityLimit(0))
	for _, item := range items {
		suite.Empty(suite.similarities(r, item))
	}
}

func (suite *TechniqueTestSuite) TestEvictionKeepsIncumbentOnTie() {
	suite.requireExact()
	r := suite.newRecommender([]MatrixOptions{Matrix("users")}, WithSimilarityLimit(1))
	suite.add(r, "users", "u1", "x", "y", "z")
	suite.NoError(r.ProcessItems(context.Background(), "x"))
	// y and z score the same, y is scored first
	suite.Equal([]string{"y"}, RemoveScores(suite.similarities(r, "x")))
}

func (suite *TechniqueTestSuite) TestIdempotence() {
	ctx := context.Background()
	r := suite.randomFixture()
	first := suite.dump(r)
	suite.NoError(r.ProcessAll(ctx))
	suite.Equal(first, suite.dump(r))
}

func (suite *TechniqueTestSuite) TestEnforceSimilarityLimit() {
	ctx := context.Background()
	matrices := []MatrixOptions{Matrix("myfirstinput")}
	r := suite.newRecommender(matrices, WithoutSimilarityLimit())
	items := lo.Map(lo.Range(130), func(i int, _ int) string { return fmt.Sprintf("item%d", i) })
	suite.add(r, "myfirstinput", "set1", items...)
	suite.Empty(suite.similarities(r, "item2"))
	suite.NoError(r.ProcessItems(ctx, "item2"))
	suite.Len(suite.similarities(r, "item2"), 129)
	key := r.cache.key("item2")
	suite.Equal(int64(129), suite.client.ZCard(ctx, key).Val())

	limited := suite.newRecommender(matrices)
	suite.NoError(limited.EnforceSimilarityLimit(ctx))
	suite.Equal(int64(DefaultSimilarityLimit), suite.client.ZCard(ctx, key).Val())
}

func (suite *TechniqueTestSuite) TestAddToMatrixAndProcess() {
	r := suite.newRecommender([]MatrixOptions{Matrix("anotherinput")})
	suite.NoError(r.AddToMatrixAndProcess(context.Background(), "anotherinput", "a", "foo", "bar"))
	suite.Equal([]string{"bar"}, RemoveScores(suite.similarities(r, "foo")))
	suite.Equal([]string{"foo"}, RemoveScores(suite.similarities(r, "bar")))
}

func (suite *TechniqueTestSuite) deleteFixture() *Recommender {
	r := suite.newRecommender([]MatrixOptions{Matrix("anotherinput"), Matrix("yetanotherinput")})
	suite.add(r, "anotherinput", "a", "foo", "bar")
	suite.add(r, "yetanotherinput", "b", "bar", "shmoo")
	suite.NoError(r.ProcessAll(context.Background()))
	suite.Subset(RemoveScores(suite.similarities(r, "bar")), []string{"foo", "shmoo"})
	return r
}

func (suite *TechniqueTestSuite) TestDeleteFromMatrix() {
	ctx := context.Background()
	r := suite.deleteFixture()
	suite.NoError(r.DeleteFromMatrix(ctx, "anotherinput", "foo"))
	suite.Equal([]string{"shmoo"}, RemoveScores(suite.similarities(r, "bar")))
	suite.Empty(suite.similarities(r, "foo"))
	items, err := r.AllItems(ctx)
	suite.NoError(err)
	suite.Equal([]string{"bar", "shmoo"}, items)

	// still in another matrix
	suite.NoError(r.DeleteFromMatrix(ctx, "anotherinput", "bar"))
	items, err = r.AllItems(ctx)
	suite.NoError(err)
	suite.Equal([]string{"bar", "shmoo"}, items)
	suite.Equal([]string{"shmoo"}, RemoveScores(suite.similarities(r, "bar")))
}

func (suite *TechniqueTestSuite) TestDeleteItem() {
	ctx := context.Background()
	r := suite.deleteFixture()
	suite.Contains(RemoveScores(suite.similarities(r, "shmoo")), "bar")
	suite.NoError(r.DeleteItem(ctx, "shmoo"))
	suite.NotContains(RemoveScores(suite.similarities(r, "bar")), "shmoo")
	suite.Empty(suite.similarities(r, "shmoo"))
	items, err := r.AllItems(ctx)
	suite.NoError(err)
	suite.Equal([]string{"bar", "foo"}, items)
	sets, err := r.SetsFor(ctx, "shmoo")
	suite.NoError(err)
	suite.Empty(sets)
	yet, err := r.Matrix("yetanotherinput")
	suite.NoError(err)
	members, err := yet.ItemsFor(ctx, "b")
	suite.NoError(err)
	suite.Equal([]string{"bar"}, members)
}

// randomFixture fills two matrices with a fixed pseudo-random membership and processes every item.
func (suite *TechniqueTestSuite) randomFixture(opts ...Option) *Recommender {
	r := suite.newRecommender([]MatrixOptions{
		Matrix("users"),
		Matrix("tags").WithWeight(0.5).WithMeasure(similarity.SorensenCoefficient),
	}, opts...)
	rng := rand.New(rand.NewPCG(42, 42))
	for _, matrix := range []string{"users", "tags"} {
		for set := 0; set < 12; set++ {
			items := lo.Uniq(lo.Times(5, func(int) string { return fmt.Sprintf("i%02d", rng.IntN(30)) }))
			suite.add(r, matrix, fmt.Sprintf("%s%d", matrix, set), items...)
		}
	}
	suite.NoError(r.ProcessAll(context.Background()))
	return r
}

func (suite *TechniqueTestSuite) dump(r *Recommender) map[string][]Scored {
	items, err := r.AllItems(context.Background())
	suite.NoError(err)
	return lo.SliceToMap(items, func(item string) (string, []Scored) { return item, suite.similarities(r, item) })
}

func TestPairwiseRecompute(t *testing.T) {
	suite.Run(t, &TechniqueTestSuite{technique: PairwiseRecompute{}})
}

func TestAtomicScriptRecompute(t *testing.T) {
	suite.Run(t, &TechniqueTestSuite{technique: AtomicScriptRecompute{}})
}

func TestApproximateUnionRecompute(t *testing.T) {
	suite.Run(t, &TechniqueTestSuite{technique: ApproximateUnionRecompute{}})
}

type EquivalenceTestSuite struct {
	baseTestSuite
}

func (suite *EquivalenceTestSuite) TestPairwiseMatchesScript() {
	suite.assertEquivalent(DefaultSimilarityLimit)
}

func (suite *EquivalenceTestSuite) TestPairwiseMatchesScriptWithEviction() {
	suite.assertEquivalent(3)
	suite.server.FlushAll()
	suite.assertEquivalent(1)
}

func (suite *EquivalenceTestSuite) assertEquivalent(limit int) {
	ctx := context.Background()
	matrices := []MatrixOptions{
		Matrix("users"),
		Matrix("tags").WithWeight(0.7).WithMeasure(similarity.SorensenCoefficient),
		Matrix("topics").WithWeight(3),
	}
	pairwise := suite.newRecommender(testPrefix+":pairwise", matrices, WithTechnique(PairwiseRecompute{}), WithSimilarityLimit(limit))
	script := suite.newRecommender(testPrefix+":script", matrices, WithTechnique(AtomicScriptRecompute{}), WithSimilarityLimit(limit))
	rng := rand.New(rand.NewPCG(7, 7))
	for _, m := range matrices {
		for set := 0; set < 20; set++ {
			items := lo.Uniq(lo.Times(6, func(int) string { return fmt.Sprintf("i%02d", rng.IntN(40)) }))
			name := fmt.Sprintf("s%d", set)
			suite.add(pairwise, m.Name, name, items...)
			suite.add(script, m.Name, name, items...)
		}
	}
	suite.NoError(pairwise.ProcessAll(ctx))
	suite.NoError(script.ProcessAll(ctx))

	items, err := pairwise.AllItems(ctx)
	suite.NoError(err)
	for _, item := range items {
		expected := lo.SliceToMap(suite.similarities(pairwise, item), func(s Scored) (string, float64) { return s.Id, s.Score })
		actual := lo.SliceToMap(suite.similarities(script, item), func(s Scored) (string, float64) { return s.Id, s.Score })
		suite.LessOrEqual(len(actual), limit, item)
		suite.ElementsMatch(lo.Keys(expected), lo.Keys(actual), item)
		for id, score := range expected {
			suite.InDelta(score, actual[id], 1e-9, "%s -> %s", item, id)
		}
	}
}

func TestEquivalence(t *testing.T) {
	suite.Run(t, new(EquivalenceTestSuite))
}

func TestParseTechnique(t *testing.T) {
	for _, name := range Techniques {
		technique, err := ParseTechnique(name)
		assert.NoError(t, err)
		assert.Equal(t, name, technique.Name())
	}
	technique, err := ParseTechnique("")
	assert.NoError(t, err)
	assert.Equal(t, PairwiseRecompute{}, technique)
	_, err = ParseTechnique("ruby")
	assert.True(t, errors.Is(err, errors.NotValid))
}
