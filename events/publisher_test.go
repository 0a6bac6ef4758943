package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/poiesic/schedex/core"
)

type fakeConn struct {
	mu   sync.Mutex
	msgs []*nats.Msg
	err  error
}

func (f *fakeConn) PublishMsg(msg *nats.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func TestJobTransitioned_PublishesEvent(t *testing.T) {
	conn := &fakeConn{}
	p := newPublisher(conn, "", nil)

	job := &core.Job{
		ID:      "job-1",
		Kind:    core.JobKindXMLIngest,
		Status:  core.JobCompleted,
		LogID:   "log-1",
		Summary: core.IngestionCounts{Parsed: 3, Created: 3},
	}
	p.JobTransitioned(job, core.JobRunning)

	require.Len(t, conn.msgs, 1)
	msg := conn.msgs[0]
	assert.Equal(t, "schedex.jobs.completed", msg.Subject)

	var ev JobEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "job-1", ev.JobID)
	assert.Equal(t, core.JobRunning, ev.From)
	assert.Equal(t, core.JobCompleted, ev.Status)
	assert.Equal(t, 3, ev.Summary.Created)
	assert.False(t, ev.At.IsZero())
}

func TestJobTransitioned_PublishErrorIsSwallowed(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := newPublisher(conn, "custom", nil)

	assert.NotPanics(t, func() {
		p.JobTransitioned(&core.Job{ID: "job-2", Kind: core.JobKindEmbedding, Status: core.JobQueued}, "")
	})
	assert.Empty(t, conn.msgs)
}

func TestPublish_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	conn := &fakeConn{}
	p := newPublisher(conn, "custom", nil)
	require.NoError(t, p.Publish(ctx, JobEvent{JobID: "job-3", Status: core.JobRunning}))

	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "custom.running", conn.msgs[0].Subject)
	assert.Contains(t, conn.msgs[0].Header.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	c := (*natsHeaderCarrier)(msg)
	assert.Empty(t, c.Get("missing"))
	assert.Nil(t, c.Keys())

	c.Set("traceparent", "value")
	assert.Equal(t, "value", c.Get("traceparent"))
	assert.Len(t, c.Keys(), 1)
}
