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


package ingestion

import (
	"context"
	"fmt"

	"github.com/poiesic/schedex/core"
)

// maxLoggedErrors bounds the error list kept on an ingestion log.
const maxLoggedErrors = 100

// stage is one step of a pipeline run.
type stage interface {
	name() string
	run(ctx context.Context, job *core.Job, state *runState) error
}

// runState carries counts and errors across the stages of one run.
type runState struct {
	counts    core.IngestionCounts
	errors    []string
	dropped   int
	cancelled func() bool
}

func (s *runState) recordError(format string, args ...any) {
	if len(s.errors) >= maxLoggedErrors {
		s.dropped++
		return
	}
	s.errors = append(s.errors, fmt.Sprintf(format, args...))
}

// errorList returns the recorded errors with a trailer for any that were dropped.
func (s *runState) errorList() []string {
	if s.dropped == 0 {
		return s.errors
	}
	return append(s.errors, fmt.Sprintf("... and %d more", s.dropped))
}

func (s *runState) stopRequested() bool {
	return s.cancelled != nil && s.cancelled()
}
