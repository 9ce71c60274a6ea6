// Package offset recovers the last committed position of source partitions.
//
// Partitions and offsets are opaque key-value maps supplied by the task.
// A Reader never fails for a partition that was never committed, it
// returns an empty Record instead. Batched lookups tolerate partial
// failure: entries that cannot be resolved individually are left out of
// the result, and only a failure of the whole request is reported, as
// ErrBackendUnavailable. A missing key in a batch result therefore means
// "no usable committed offset"; callers that need stronger guarantees must
// check the keys they care about.
package offset
