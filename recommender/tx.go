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

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/nyagato-00/predictor/base/log"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const maxTxAttempts = 16

// watch runs fn under WATCH on keys. A conflicting write to a watched key aborts
// the MULTI block; only that one operation is retried, with exponential backoff.
func watch(ctx context.Context, client redis.UniversalClient, fn func(tx *redis.Tx) error, keys ...string) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			TxRetriesTotal.Inc()
			log.Logger().Warn("transaction conflict",
				zap.Strings("keys", keys), zap.Int("attempt", attempt))
			return struct{}{}, err
		}
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(txBackOff()), backoff.WithMaxTries(maxTxAttempts))
	return errors.Trace(err)
}

func txBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}

func newTempId() string {
	return uuid.NewString()
}
