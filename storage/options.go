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

import "time"

type Options struct {
	PoolSize     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Tracing      bool
}

type Option func(*Options)

func WithPoolSize(poolSize int) Option {
	return func(o *Options) {
		o.PoolSize = poolSize
	}
}

func WithReadTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.ReadTimeout = timeout
	}
}

func WithWriteTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.WriteTimeout = timeout
	}
}

// WithTracing toggles OpenTelemetry spans around every Redis command.
func WithTracing(enable bool) Option {
	return func(o *Options) {
		o.Tracing = enable
	}
}

func NewOptions(opts ...Option) Options {
	opt := Options{
		Tracing: true,
	}
	for _, o := range opts {
		o(&opt)
	}
	return opt
}
