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

package parallel

import (
	"context"
	"sync"

	"github.com/juju/errors"
)

const chanSize = 1024

// ForEach runs worker on every element of jobs with at most nWorkers goroutines.
// The first failure stops the remaining jobs and is returned. Jobs run in order
// on the calling goroutine when nWorkers <= 1.
func ForEach[T any](ctx context.Context, jobs []T, nWorkers int, worker func(job T) error) error {
	if nWorkers <= 1 {
		for _, job := range jobs {
			if err := ctx.Err(); err != nil {
				return errors.Trace(err)
			}
			if err := worker(job); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	c := make(chan T, chanSize)
	// producer
	go func() {
		defer close(c)
		for _, job := range jobs {
			select {
			case <-ctx.Done():
				return
			case c <- job:
			}
		}
	}()
	// consumers
	var wg sync.WaitGroup
	for i := 0; i < nWorkers; i++ {
		wg.Go(func() {
			for job := range c {
				if ctx.Err() != nil {
					continue
				}
				if err := worker(job); err != nil {
					fail(err)
				}
			}
		})
	}
	wg.Wait()
	if firstErr != nil {
		return errors.Trace(firstErr)
	}
	return errors.Trace(ctx.Err())
}
