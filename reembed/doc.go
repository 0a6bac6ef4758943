// Package reembed generates and stores embeddings for catalog items.
//
// BatchProcessor embeds one batch with bounded retries and exponential
// backoff, normalizes the vectors and writes them back guarded by each item's
// content checksum. Reembedder drives a whole embed run: it selects the
// items, walks them in batches, records failed batches without stopping, and
// optionally reports progress for interactive use.
package reembed
