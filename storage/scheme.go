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
	"strings"
)

const (
	RedisPrefix  = "redis://"
	RedissPrefix = "rediss://"
)

const keySeparator = ":"

// Namespace prefixes every key owned by one recommender. Keys are joined with ':'.
type Namespace string

// Key joins parts under the namespace, e.g. Namespace("p").Key("users", "sets", "a") is "p:users:sets:a".
func (ns Namespace) Key(parts ...string) string {
	if len(ns) == 0 {
		return strings.Join(parts, keySeparator)
	}
	if len(parts) == 0 {
		return string(ns)
	}
	return string(ns) + keySeparator + strings.Join(parts, keySeparator)
}

// Child returns a nested namespace.
func (ns Namespace) Child(name string) Namespace {
	return Namespace(ns.Key(name))
}

// Pattern matches every key under the namespace, for SCAN.
func (ns Namespace) Pattern() string {
	return ns.Key("*")
}
