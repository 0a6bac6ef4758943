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


// Package events publishes job status changes to NATS with OpenTelemetry
// trace propagation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/jobs"
)

const DefaultSubjectPrefix = "schedex.jobs"

// JobEvent is the message body published for a job status change.
type JobEvent struct {
	JobID   string               `json:"job_id"`
	Kind    core.JobKind         `json:"kind"`
	From    core.JobStatus       `json:"from,omitempty"`
	Status  core.JobStatus       `json:"status"`
	LogID   string               `json:"log_id,omitempty"`
	Error   string               `json:"error,omitempty"`
	Summary core.IngestionCounts `json:"summary"`
	At      time.Time            `json:"at"`
}

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// msgPublisher is the subset of *nats.Conn the publisher needs.
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Publisher sends a JobEvent to "<prefix>.<status>" for every job status
// change. Publish failures are logged and never affect the job.
type Publisher struct {
	conn   msgPublisher
	prefix string
	logger *slog.Logger
	now    func() time.Time
	close  func()
}

var _ jobs.Observer = (*Publisher)(nil)

// Connect dials NATS at url and returns a publisher using subject prefix.
func Connect(url, prefix string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("schedex"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("events: connect to nats %s: %w", url, err)
	}
	p := newPublisher(nc, prefix, logger)
	p.close = nc.Close
	return p, nil
}

func newPublisher(conn msgPublisher, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.With("component", "events"),
		now:    time.Now,
	}
}

// Publish serializes ev as JSON and publishes it. Trace context from ctx is
// injected into the message headers.
func (p *Publisher) Publish(ctx context.Context, ev JobEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: p.prefix + "." + string(ev.Status),
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return p.conn.PublishMsg(msg)
}

// JobTransitioned publishes the change as a JobEvent.
func (p *Publisher) JobTransitioned(job *core.Job, from core.JobStatus) {
	ev := JobEvent{
		JobID:   job.ID,
		Kind:    job.Kind,
		From:    from,
		Status:  job.Status,
		LogID:   job.LogID,
		Error:   job.Error,
		Summary: job.Summary,
		At:      p.now().UTC(),
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		p.logger.Warn("failed to publish job event", "job", job.ID, "status", job.Status, "err", err)
	}
}

// Close closes the connection if Connect opened it.
func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}
