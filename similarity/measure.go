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

// Package similarity scores two items by the overlap of the sets they belong to.
package similarity

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

// Measure names a set-overlap similarity.
type Measure string

const (
	JaccardIndex        Measure = "jaccard_index"
	SorensenCoefficient Measure = "sorensen_coefficient"
)

var ErrInvalidMeasure = errors.NotValidf("similarity measure")

// Measures lists every supported measure.
var Measures = []Measure{JaccardIndex, SorensenCoefficient}

// ParseMeasure converts a configured name. An empty name selects JaccardIndex.
func ParseMeasure(name string) (Measure, error) {
	if name == "" {
		return JaccardIndex, nil
	}
	m := Measure(name)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

func (m Measure) Validate() error {
	switch m {
	case JaccardIndex, SorensenCoefficient:
		return nil
	default:
		return errors.Annotatef(ErrInvalidMeasure, "%q", string(m))
	}
}

// Score applies the measure to the set memberships of two items.
func (m Measure) Score(a, b mapset.Set[string]) (float64, error) {
	switch m {
	case JaccardIndex:
		return Jaccard(a, b), nil
	case SorensenCoefficient:
		return Sorensen(a, b), nil
	default:
		return 0, m.Validate()
	}
}

// FromCounts scores from cardinalities only: |A|, |B| and |A∩B|.
func (m Measure) FromCounts(cardA, cardB, intersection int) (float64, error) {
	switch m {
	case JaccardIndex:
		union := cardA + cardB - intersection
		if union <= 0 {
			return 0, nil
		}
		return float64(intersection) / float64(union), nil
	case SorensenCoefficient:
		denom := cardA + cardB
		if denom <= 0 {
			return 0, nil
		}
		return 2 * float64(intersection) / float64(denom), nil
	default:
		return 0, m.Validate()
	}
}

// Jaccard returns |A∩B| / |A∪B|, or 0 when both sets are empty.
func Jaccard(a, b mapset.Set[string]) float64 {
	score, _ := JaccardIndex.FromCounts(a.Cardinality(), b.Cardinality(), intersection(a, b))
	return score
}

// Sorensen returns 2|A∩B| / (|A|+|B|), or 0 when both sets are empty.
func Sorensen(a, b mapset.Set[string]) float64 {
	score, _ := SorensenCoefficient.FromCounts(a.Cardinality(), b.Cardinality(), intersection(a, b))
	return score
}

func intersection(a, b mapset.Set[string]) int {
	// iterate the smaller one
	if a.Cardinality() > b.Cardinality() {
		a, b = b, a
	}
	n := 0
	a.Each(func(s string) bool {
		if b.Contains(s) {
			n++
		}
		return false
	})
	return n
}
