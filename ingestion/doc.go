// Package ingestion runs the staged pipeline that turns a schedule source
// into embedded catalog items.
//
// A run executes the stages its job kind selects, in order:
//   - parse: read the source, validate each record, upsert by item number
//   - embed: generate vectors for items that lack one, in bounded batches
//
// and always finishes by finalizing the run's ingestion log exactly once.
//
// Bad records and failed embedding batches are counted and skipped. Only an
// unreadable source, a storage failure or cancellation aborts a run, and work
// already committed is kept.
package ingestion
