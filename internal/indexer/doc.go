// Package indexer provides the in-memory detection index: detections grouped
// by the OS process name that triggers them.
//
// # Contract
//
// Buckets are keyed by process name exactly as reported by the OS
// (case-sensitive). Within a bucket, detections keep curation document order.
// A detection lives in exactly one bucket and is removed at most once.
//
// Thread safety: all Index methods are safe for concurrent use via sync.RWMutex.
//
// # Methods
//
//	Add(d *detection.Detection)
//	  - Appends d to the bucket for d.ProcessName, creating the bucket if absent.
//
//	Lookup(processName string) ([]*detection.Detection, bool)
//	  - Returns a copy of the bucket. The bool is false when no bucket exists.
//
//	Match(p types.ProcessInfo) *detection.Detection
//	  - Returns the first unclaimed detection in p's bucket whose predicate matches.
//
//	TryClaim(d *detection.Detection) bool
//	  - Atomically marks d as being dispatched. Returns false if d is already
//	    claimed or no longer indexed. Claimed detections are skipped by Match.
//
//	Remove(d *detection.Detection) bool
//	  - Removes d from its bucket. The (possibly empty) bucket is kept.
//
// # Handle
//
// The lifecycle controller owns the Index and hands the correlator a Handle.
// Acquire takes a read lock for the duration of one correlation; Invalidate
// takes the write lock and clears the reference, so no reader can observe an
// index that is being discarded.
//
// # Builder
//
// Builder expands curation documents into a fresh Index, resolving each
// profile's entry and skipping entries without a release or already installed
// at a strictly newer time than the latest release.
package indexer
