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
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// Scored is an item with its aggregate score.
type Scored struct {
	Id    string
	Score float64
}

// RemoveScores keeps only the item ids.
func RemoveScores(items []Scored) []string {
	return lo.Map(items, func(item Scored, _ int) string { return item.Id })
}

func fromZ(zs []redis.Z) []Scored {
	return lo.Map(zs, func(z redis.Z, _ int) Scored {
		return Scored{Id: z.Member.(string), Score: z.Score}
	})
}
