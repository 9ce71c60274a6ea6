// Package committer decides when a running task flushes its pending
// offsets to the offset store.
package committer

type Committer interface {
	// C signals that pending offsets should be committed.
	C() <-chan struct{}
	RecordProcessed(count int)
	// Committed resets the pending count after a successful commit.
	Committed()
	Close()
}
