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
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultWorkers      = 2
	DefaultRetention    = 7 * 24 * time.Hour
	DefaultPollInterval = 5 * time.Second
	DefaultLogPageSize  = 20
	MaxLogPageSize      = 100
)

// Option configures a Queue.
type Option func(*Queue) error

// WithWorkers sets how many jobs run at once.
func WithWorkers(n int) Option {
	return func(q *Queue) error {
		if n < 1 {
			return fmt.Errorf("workers must be positive, got %d", n)
		}
		q.workers = n
		return nil
	}
}

// WithRetention sets how long finished jobs are kept before Clean removes them.
func WithRetention(d time.Duration) Option {
	return func(q *Queue) error {
		if d < 0 {
			return fmt.Errorf("retention must not be negative, got %s", d)
		}
		q.retention = d
		return nil
	}
}

// WithPollInterval sets how often the dispatcher rescans for queued jobs
// without being woken.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive, got %s", d)
		}
		q.pollInterval = d
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) error {
		if logger != nil {
			q.logger = logger
		}
		return nil
	}
}

// WithObserver registers an observer for job status changes.
func WithObserver(o Observer) Option {
	return func(q *Queue) error {
		if o != nil {
			q.observers = append(q.observers, o)
		}
		return nil
	}
}

// WithClock overrides the time source used for enqueue stamps and retention.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) error {
		if now != nil {
			q.now = now
		}
		return nil
	}
}
