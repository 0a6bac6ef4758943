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


// Package storage defines the persistence contracts for the fee schedule
// catalog, the job queue and the ingestion audit log.
//
// Repositories decouple the pipeline and search code from the backing store.
// The badger subpackage implements every interface on an embedded BadgerDB;
// the qdrant subpackage provides an external VectorIndex and VectorSink.
//
// # Records
//
//   - CatalogRepository: catalog items keyed by item number, with vectors
//   - JobRepository: queued work with compare-and-set status transitions
//   - IngestionLogRepository: one audit record per pipeline run
//
// Records are encoded with hand-written mus-go codecs (see serialization.go).
// Every record starts with a format version byte.
//
// # Usage
//
//	repos, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repos.Close()
//
// # Thread Safety
//
// All implementations must be safe for concurrent use. Writers to the same
// catalog item are serialized; job transitions fail with ErrConflict when the
// stored status no longer matches the expected one.
package storage
