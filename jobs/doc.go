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


// Package jobs is the durable job queue in front of the ingestion pipeline.
//
// Enqueueing writes a queued job record and returns its id without waiting.
// A dispatcher hands queued jobs to an ants worker pool; each worker claims
// its job with a compare-and-set transition, so a job runs once and reaches
// a terminal status exactly once. Status, stats and logs are read from the
// store and never wait on running work.
//
// On Start, jobs left running by a previous process are failed as
// interrupted and queued jobs are dispatched again.
package jobs
