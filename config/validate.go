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
	"github.com/go-playground/validator/v10"
	"github.com/nyagato-00/predictor/recommender"
	"github.com/nyagato-00/predictor/similarity"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("measure", validateMeasure); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("technique", validateTechnique); err != nil {
		panic(err)
	}
	return v
}

func validateMeasure(fl validator.FieldLevel) bool {
	_, err := similarity.ParseMeasure(fl.Field().String())
	return err == nil
}

func validateTechnique(fl validator.FieldLevel) bool {
	_, err := recommender.ParseTechnique(fl.Field().String())
	return err == nil
}
