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
	"fmt"
	"time"
)

func ValidateCatalogItem(item *CatalogItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidCatalogItem)
	}

	if item.Number == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCatalogItem, ErrInvalidItemNumber)
	}

	if item.Description == "" {
		return fmt.Errorf("%w: item %d: %w", ErrInvalidCatalogItem, item.Number, ErrEmptyDescription)
	}

	if err := ValidateFees(item.Fees); err != nil {
		return fmt.Errorf("%w: item %d: %w", ErrInvalidCatalogItem, item.Number, err)
	}

	if _, err := ParseProviderType(string(item.ProviderType)); err != nil {
		return fmt.Errorf("%w: item %d: %w", ErrInvalidCatalogItem, item.Number, err)
	}

	if !item.StartDate.IsZero() && !item.EndDate.IsZero() && item.EndDate.Before(item.StartDate) {
		return fmt.Errorf("%w: item %d: %w", ErrInvalidCatalogItem, item.Number, ErrInvalidDateRange)
	}

	return nil
}

func ValidateFees(fees Fees) error {
	amounts := map[string]float64{
		"schedule":   fees.Schedule,
		"benefit75":  fees.Benefit75,
		"benefit85":  fees.Benefit85,
		"benefit100": fees.Benefit100,
	}
	for name, v := range amounts {
		if v < 0 {
			return fmt.Errorf("%w: %s fee is %.2f", ErrNegativeFee, name, v)
		}
	}
	return nil
}

func ValidateJob(job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}
	if job.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidJob)
	}
	if !job.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidJob, job.Kind)
	}
	if job.Kind.RunsParse() && job.Payload.Source == "" {
		return fmt.Errorf("%w: %s requires a source", ErrInvalidJob, job.Kind)
	}
	if job.Payload.BatchSize < 0 || job.Payload.BatchSize > MaxEmbedBatchSize {
		return fmt.Errorf("%w: batch size must be between 1 and %d", ErrInvalidJob, MaxEmbedBatchSize)
	}
	return nil
}

// ActiveAt reports whether an item with the given effective dates is billable
// at t. Open-ended dates are unbounded.
func ActiveAt(start, end, t time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}
