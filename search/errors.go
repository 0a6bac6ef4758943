// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package search

import (
	"errors"
	"fmt"

	"github.com/poiesic/schedex/core"
)

var (
	// ErrCatalogRequired is returned when a catalog repository is not provided.
	ErrCatalogRequired = errors.New("catalog repository required")

	// ErrInvalidRequest wraps every request validation failure.
	ErrInvalidRequest = fmt.Errorf("%w: invalid search request", core.ErrValidation)

	// ErrFeeRange is returned when the minimum fee exceeds the maximum fee.
	ErrFeeRange = fmt.Errorf("%w: min fee exceeds max fee", ErrInvalidRequest)

	// ErrSemanticUnavailable signals that semantic ranking could not run.
	// Searches degrade to text mode instead of failing.
	ErrSemanticUnavailable = fmt.Errorf("%w: semantic ranking", core.ErrUnavailable)
)
