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


package badger

// MemoryRepositories bundles in-memory repositories for tests.
type MemoryRepositories struct {
	Backend *Backend
	Catalog *CatalogRepository
	Jobs    *JobRepository
	Logs    *IngestionLogRepository
}

// Close closes the shared backend.
func (m *MemoryRepositories) Close() error {
	return m.Backend.Close()
}

// NewMemoryRepositories creates in-memory catalog, job and log repositories
// sharing one backend. Caller must Close the result when done.
func NewMemoryRepositories() (*MemoryRepositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	return &MemoryRepositories{
		Backend: backend,
		Catalog: NewCatalogRepository(backend),
		Jobs:    NewJobRepository(backend),
		Logs:    NewIngestionLogRepository(backend),
	}, nil
}
