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


package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every boundary. Package-specific errors wrap one of
// these so callers can classify them with errors.Is.
var (
	// ErrValidation indicates malformed input that is never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates an unknown item number, job id or log id.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates a dependency (embedding provider, index) is down.
	ErrUnavailable = errors.New("dependency unavailable")

	// ErrInternal is the opaque error surfaced for unexpected failures.
	ErrInternal = errors.New("internal error")
)

// Validation failures. Each wraps ErrValidation.
var (
	// ErrInvalidCatalogItem indicates a CatalogItem failed validation.
	ErrInvalidCatalogItem = fmt.Errorf("%w: invalid catalog item", ErrValidation)

	// ErrInvalidItemNumber indicates an item number is missing or malformed.
	ErrInvalidItemNumber = fmt.Errorf("%w: invalid item number", ErrValidation)

	// ErrEmptyDescription indicates the Description field is empty.
	ErrEmptyDescription = fmt.Errorf("%w: description cannot be empty", ErrValidation)

	// ErrNegativeFee indicates one of the fee amounts is below zero.
	ErrNegativeFee = fmt.Errorf("%w: fee cannot be negative", ErrValidation)

	// ErrInvalidProviderType indicates an unknown provider type.
	ErrInvalidProviderType = fmt.Errorf("%w: invalid provider type", ErrValidation)

	// ErrInvalidDateRange indicates an item ends before it starts.
	ErrInvalidDateRange = fmt.Errorf("%w: end date precedes start date", ErrValidation)

	// ErrInvalidTransition indicates a job status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrInvalidJob indicates a job record failed validation.
	ErrInvalidJob = fmt.Errorf("%w: invalid job", ErrValidation)
)
