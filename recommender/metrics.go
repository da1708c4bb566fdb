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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProcessSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "predictor",
		Subsystem: "recommender",
		Name:      "process_seconds",
	}, []string{"technique"})
	PredictSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "predictor",
		Subsystem: "recommender",
		Name:      "predict_seconds",
	})
	DeleteItemSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "predictor",
		Subsystem: "recommender",
		Name:      "delete_item_seconds",
	})

	ProcessedItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predictor",
		Subsystem: "recommender",
		Name:      "processed_items_total",
	}, []string{"technique"})
	TxRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "predictor",
		Subsystem: "recommender",
		Name:      "tx_retries_total",
	})
)
