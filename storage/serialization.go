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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/schedex/core"
)

// Record layout version. Bumped whenever a field is added to a record so
// older values can be told apart.
const recordVersion = 1

// writer runs a record layout twice: once with a nil buffer to size it and
// once to fill the buffer.
type writer struct {
	bs []byte
	n  int
}

func encode(fn func(w *writer)) []byte {
	sizer := &writer{}
	fn(sizer)
	w := &writer{bs: make([]byte, sizer.n)}
	fn(w)
	return w.bs
}

func (w *writer) uint64(v uint64) {
	if w.bs == nil {
		w.n += varint.Uint64.Size(v)
		return
	}
	w.n += varint.Uint64.Marshal(v, w.bs[w.n:])
}

func (w *writer) int64(v int64) {
	if w.bs == nil {
		w.n += varint.Int64.Size(v)
		return
	}
	w.n += varint.Int64.Marshal(v, w.bs[w.n:])
}

func (w *writer) int(v int) {
	w.int64(int64(v))
}

func (w *writer) string(v string) {
	if w.bs == nil {
		w.n += ord.String.Size(v)
		return
	}
	w.n += ord.String.Marshal(v, w.bs[w.n:])
}

func (w *writer) bool(v bool) {
	if w.bs == nil {
		w.n += ord.Bool.Size(v)
		return
	}
	w.n += ord.Bool.Marshal(v, w.bs[w.n:])
}

func (w *writer) float64(v float64) {
	if w.bs == nil {
		w.n += raw.Float64.Size(v)
		return
	}
	w.n += raw.Float64.Marshal(v, w.bs[w.n:])
}

func (w *writer) vector(v []float32) {
	w.int(len(v))
	for _, f := range v {
		if w.bs == nil {
			w.n += raw.Float32.Size(f)
			continue
		}
		w.n += raw.Float32.Marshal(f, w.bs[w.n:])
	}
}

func (w *writer) strings(v []string) {
	w.int(len(v))
	for _, s := range v {
		w.string(s)
	}
}

// time stores microseconds since the epoch, with 0 reserved for the zero time.
func (w *writer) time(t time.Time) {
	if t.IsZero() {
		w.int64(0)
		return
	}
	w.int64(t.UnixMicro())
}

// reader decodes fields in order and keeps the first error.
type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil && err != nil {
		r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
}

func (r *reader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.fail(err)
	return v
}

func (r *reader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.fail(err)
	return v
}

func (r *reader) int() int {
	return int(r.int64())
}

func (r *reader) length() int {
	l := r.int()
	if r.err == nil && (l < 0 || l > len(r.bs)-r.n) {
		r.fail(fmt.Errorf("invalid length %d", l))
		return 0
	}
	return l
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.fail(err)
	return v
}

func (r *reader) bool() bool {
	if r.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(r.bs[r.n:])
	r.n += n
	r.fail(err)
	return v
}

func (r *reader) float64() float64 {
	if r.err != nil {
		return 0
	}
	v, n, err := raw.Float64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.fail(err)
	return v
}

func (r *reader) vector() []float32 {
	l := r.length()
	if r.err != nil || l == 0 {
		return nil
	}
	v := make([]float32, l)
	for i := range v {
		f, n, err := raw.Float32.Unmarshal(r.bs[r.n:])
		r.n += n
		if err != nil {
			r.fail(err)
			return nil
		}
		v[i] = f
	}
	return v
}

func (r *reader) strings() []string {
	l := r.length()
	if r.err != nil || l == 0 {
		return nil
	}
	v := make([]string, 0, l)
	for range l {
		v = append(v, r.string())
	}
	return v
}

func (r *reader) time() time.Time {
	us := r.int64()
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func (r *reader) version() {
	if v := r.int(); r.err == nil && v != recordVersion {
		r.fail(fmt.Errorf("unsupported record version %d", v))
	}
}

func writeCounts(w *writer, c core.IngestionCounts) {
	w.int(c.Parsed)
	w.int(c.Created)
	w.int(c.Updated)
	w.int(c.Skipped)
	w.int(c.Failed)
	w.int(c.Embedded)
	w.int(c.Deactivated)
}

func readCounts(r *reader) core.IngestionCounts {
	return core.IngestionCounts{
		Parsed:      r.int(),
		Created:     r.int(),
		Updated:     r.int(),
		Skipped:     r.int(),
		Failed:      r.int(),
		Embedded:    r.int(),
		Deactivated: r.int(),
	}
}

// MarshalCatalogItem serializes a CatalogItem to bytes.
func MarshalCatalogItem(item *core.CatalogItem) []byte {
	return encode(func(w *writer) {
		w.int(recordVersion)
		w.uint64(uint64(item.Number))
		w.string(item.Description)
		w.string(item.ShortDescription)
		w.string(item.Category)
		w.string(item.Group)
		w.string(item.SubGroup)
		w.string(string(item.ProviderType))
		w.float64(item.Fees.Schedule)
		w.float64(item.Fees.Benefit75)
		w.float64(item.Fees.Benefit85)
		w.float64(item.Fees.Benefit100)
		w.bool(item.Active)
		w.time(item.StartDate)
		w.time(item.EndDate)
		w.uint64(item.Checksum)
		w.vector(item.Vector)
		w.time(item.EmbeddedAt)
		w.time(item.InsertedAt)
		w.time(item.UpdatedAt)
	})
}

// UnmarshalCatalogItem deserializes a CatalogItem from bytes.
func UnmarshalCatalogItem(data []byte) (*core.CatalogItem, error) {
	r := &reader{bs: data}
	r.version()
	item := &core.CatalogItem{
		Number:           core.ItemNumber(r.uint64()),
		Description:      r.string(),
		ShortDescription: r.string(),
		Category:         r.string(),
		Group:            r.string(),
		SubGroup:         r.string(),
		ProviderType:     core.ProviderType(r.string()),
		Fees: core.Fees{
			Schedule:   r.float64(),
			Benefit75:  r.float64(),
			Benefit85:  r.float64(),
			Benefit100: r.float64(),
		},
		Active:     r.bool(),
		StartDate:  r.time(),
		EndDate:    r.time(),
		Checksum:   r.uint64(),
		Vector:     r.vector(),
		EmbeddedAt: r.time(),
		InsertedAt: r.time(),
		UpdatedAt:  r.time(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return item, nil
}

// MarshalJob serializes a Job to bytes.
func MarshalJob(job *core.Job) []byte {
	return encode(func(w *writer) {
		w.int(recordVersion)
		w.string(job.ID)
		w.string(string(job.Kind))
		w.string(string(job.Status))
		w.string(job.Payload.Source)
		w.bool(job.Payload.ForceReprocess)
		w.bool(job.Payload.ForceEmbed)
		w.int(len(job.Payload.ItemNumbers))
		for _, n := range job.Payload.ItemNumbers {
			w.uint64(uint64(n))
		}
		w.int(job.Payload.BatchSize)
		w.bool(job.Payload.DeactivateMissing)
		w.time(job.EnqueuedAt)
		w.time(job.StartedAt)
		w.time(job.FinishedAt)
		w.bool(job.CancelRequested)
		w.string(job.LogID)
		writeCounts(w, job.Summary)
		w.string(job.Error)
	})
}

// UnmarshalJob deserializes a Job from bytes.
func UnmarshalJob(data []byte) (*core.Job, error) {
	r := &reader{bs: data}
	r.version()
	job := &core.Job{
		ID:     r.string(),
		Kind:   core.JobKind(r.string()),
		Status: core.JobStatus(r.string()),
	}
	job.Payload.Source = r.string()
	job.Payload.ForceReprocess = r.bool()
	job.Payload.ForceEmbed = r.bool()
	if l := r.length(); l > 0 {
		job.Payload.ItemNumbers = make([]core.ItemNumber, l)
		for i := range job.Payload.ItemNumbers {
			job.Payload.ItemNumbers[i] = core.ItemNumber(r.uint64())
		}
	}
	job.Payload.BatchSize = r.int()
	job.Payload.DeactivateMissing = r.bool()
	job.EnqueuedAt = r.time()
	job.StartedAt = r.time()
	job.FinishedAt = r.time()
	job.CancelRequested = r.bool()
	job.LogID = r.string()
	job.Summary = readCounts(r)
	job.Error = r.string()
	if r.err != nil {
		return nil, r.err
	}
	return job, nil
}

// MarshalIngestionLog serializes an IngestionLog to bytes.
func MarshalIngestionLog(log *core.IngestionLog) []byte {
	return encode(func(w *writer) {
		w.int(recordVersion)
		w.string(log.ID)
		w.string(log.JobID)
		w.string(string(log.Kind))
		w.string(log.Source)
		w.time(log.StartedAt)
		w.time(log.FinishedAt)
		writeCounts(w, log.Counts)
		w.strings(log.Errors)
		w.string(string(log.Status))
	})
}

// UnmarshalIngestionLog deserializes an IngestionLog from bytes.
func UnmarshalIngestionLog(data []byte) (*core.IngestionLog, error) {
	r := &reader{bs: data}
	r.version()
	log := &core.IngestionLog{
		ID:         r.string(),
		JobID:      r.string(),
		Kind:       core.JobKind(r.string()),
		Source:     r.string(),
		StartedAt:  r.time(),
		FinishedAt: r.time(),
		Counts:     readCounts(r),
		Errors:     r.strings(),
		Status:     core.JobStatus(r.string()),
	}
	if r.err != nil {
		return nil, r.err
	}
	return log, nil
}
