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

package config

import (
	"strings"

	"github.com/juju/errors"
	"github.com/nyagato-00/predictor/recommender"
	"github.com/nyagato-00/predictor/similarity"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const envPrefix = "PREDICTOR"

// Config is the configuration of one recommender.
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Recommender RecommenderConfig `mapstructure:"recommender"`
}

// DatabaseConfig is the configuration for the store.
type DatabaseConfig struct {
	CacheStore string `mapstructure:"cache_store" validate:"required,startswith=redis://|startswith=rediss://"`
}

// RecommenderConfig declares the matrices and the processing of a recommender.
type RecommenderConfig struct {
	Prefix          string         `mapstructure:"prefix" validate:"required"`
	SimilarityLimit int            `mapstructure:"similarity_limit" validate:"gte=-1"`
	Technique       string         `mapstructure:"technique" validate:"technique"`
	ProcessJobs     int            `mapstructure:"process_jobs" validate:"gte=1"`
	Matrices        []MatrixConfig `mapstructure:"matrices" validate:"unique=Name,dive"`
}

// MatrixConfig declares one input matrix. A missing weight means 1.
type MatrixConfig struct {
	Name    string   `mapstructure:"name" validate:"required"`
	Weight  *float64 `mapstructure:"weight" validate:"omitempty,gte=0"`
	Measure string   `mapstructure:"measure" validate:"measure"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			CacheStore: "redis://127.0.0.1:6379/0",
		},
		Recommender: RecommenderConfig{
			Prefix:          "predictor",
			SimilarityLimit: recommender.DefaultSimilarityLimit,
			Technique:       recommender.Pairwise,
			ProcessJobs:     1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.cache_store", defaultConfig.Database.CacheStore)
	// [recommender]
	v.SetDefault("recommender.prefix", defaultConfig.Recommender.Prefix)
	v.SetDefault("recommender.similarity_limit", defaultConfig.Recommender.SimilarityLimit)
	v.SetDefault("recommender.technique", defaultConfig.Recommender.Technique)
	v.SetDefault("recommender.process_jobs", defaultConfig.Recommender.ProcessJobs)
}

// LoadConfig reads a TOML file. Scalar settings can be overridden by environment
// variables such as PREDICTOR_DATABASE_CACHE_STORE. An empty path loads defaults only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}
	for i := range conf.Recommender.Matrices {
		if conf.Recommender.Matrices[i].Measure == "" {
			conf.Recommender.Matrices[i].Measure = string(similarity.JaccardIndex)
		}
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

func (config *Config) Validate() error {
	return errors.Trace(validate.Struct(config))
}

// RecommenderOptions converts the configuration into recommender constructor arguments.
func (config *Config) RecommenderOptions() ([]recommender.MatrixOptions, []recommender.Option, error) {
	technique, err := recommender.ParseTechnique(config.Recommender.Technique)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	matrices := make([]recommender.MatrixOptions, 0, len(config.Recommender.Matrices))
	for _, m := range config.Recommender.Matrices {
		measure, err := similarity.ParseMeasure(m.Measure)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		matrices = append(matrices, recommender.Matrix(m.Name).
			WithWeight(lo.FromPtrOr(m.Weight, 1)).
			WithMeasure(measure))
	}
	return matrices, []recommender.Option{
		recommender.WithSimilarityLimit(config.Recommender.SimilarityLimit),
		recommender.WithTechnique(technique),
		recommender.WithJobs(config.Recommender.ProcessJobs),
	}, nil
}
