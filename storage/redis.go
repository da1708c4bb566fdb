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

package storage

import (
	"context"
	"strings"

	"github.com/juju/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to the membership store. Only single-node URLs are accepted:
// recomputation and queries combine keys of different items in one command, which
// a cluster would spread over different slots.
func OpenRedis(path string, opts ...Option) (redis.UniversalClient, error) {
	if !strings.HasPrefix(path, RedisPrefix) && !strings.HasPrefix(path, RedissPrefix) {
		return nil, errors.Errorf("unknown database: %s", path)
	}
	opt, err := redis.ParseURL(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	o := NewOptions(opts...)
	if o.PoolSize > 0 {
		opt.PoolSize = o.PoolSize
	}
	if o.ReadTimeout > 0 {
		opt.ReadTimeout = o.ReadTimeout
	}
	if o.WriteTimeout > 0 {
		opt.WriteTimeout = o.WriteTimeout
	}
	client := redis.NewClient(opt)
	if o.Tracing {
		if err = redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, errors.Trace(err)
		}
	}
	return client, nil
}

// Ping checks the connection.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	return errors.Trace(client.Ping(ctx).Err())
}
