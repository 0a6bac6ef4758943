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


package jobs

import (
	"errors"
	"fmt"

	"github.com/poiesic/schedex/core"
)

var (
	// ErrJobRepositoryRequired is returned when a job repository is not provided.
	ErrJobRepositoryRequired = errors.New("job repository required")

	// ErrLogRepositoryRequired is returned when an ingestion log repository is not provided.
	ErrLogRepositoryRequired = errors.New("ingestion log repository required")

	// ErrRunnerRequired is returned when no runner is provided.
	ErrRunnerRequired = errors.New("job runner required")

	// ErrJobFinished is returned when cancelling a job that already ended.
	ErrJobFinished = fmt.Errorf("%w: job already finished", core.ErrValidation)

	// ErrInvalidPage is returned for out of range log pagination.
	ErrInvalidPage = fmt.Errorf("%w: invalid pagination", core.ErrValidation)

	// ErrQueueStopped is returned by Start on a stopped queue.
	ErrQueueStopped = errors.New("queue stopped")
)
