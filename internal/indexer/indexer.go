package indexer

import (
	"sort"
	"sync"

	"github.com/potooio/curator/internal/detection"
	"github.com/potooio/curator/internal/types"
)

// IndexEvent represents a change to the detection index.
type IndexEvent struct {
	Type      string // "add", "claim" or "remove"
	Detection *detection.Detection
}

// OnChangeFunc is called when the index changes. It runs outside the index lock.
type OnChangeFunc func(event IndexEvent)

// Index is a concurrent-safe map from process name to ordered detections.
type Index struct {
	mu       sync.RWMutex
	buckets  map[string][]*detection.Detection
	claimed  map[*detection.Detection]bool
	onChange OnChangeFunc
}

// New creates an empty Index with an optional change callback.
func New(onChange OnChangeFunc) *Index {
	return &Index{
		buckets:  make(map[string][]*detection.Detection),
		claimed:  make(map[*detection.Detection]bool),
		onChange: onChange,
	}
}

// Add appends d to the bucket for its process name.
func (idx *Index) Add(d *detection.Detection) {
	idx.mu.Lock()
	idx.buckets[d.ProcessName] = append(idx.buckets[d.ProcessName], d)
	idx.mu.Unlock()

	idx.notify("add", d)
}

// Lookup returns a copy of the bucket for processName.
func (idx *Index) Lookup(processName string) ([]*detection.Detection, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bucket, ok := idx.buckets[processName]
	if !ok {
		return nil, false
	}
	out := make([]*detection.Detection, len(bucket))
	copy(out, bucket)
	return out, true
}

// Match returns the first unclaimed detection in p's bucket whose predicate
// accepts p, or nil.
func (idx *Index) Match(p types.ProcessInfo) *detection.Detection {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for _, d := range idx.buckets[p.ProcessName] {
		if idx.claimed[d] {
			continue
		}
		if d.Matches(p) {
			return d
		}
	}
	return nil
}

// TryClaim atomically checks that d is indexed and unclaimed and, if so,
// marks it claimed. Returns true if the caller now owns the dispatch of d.
func (idx *Index) TryClaim(d *detection.Detection) bool {
	idx.mu.Lock()
	if idx.claimed[d] || indexOf(idx.buckets[d.ProcessName], d) < 0 {
		idx.mu.Unlock()
		return false
	}
	idx.claimed[d] = true
	idx.mu.Unlock()

	idx.notify("claim", d)
	return true
}

// ClaimMatch finds the first unclaimed detection matching p and claims it in
// one step. Returns nil if nothing matches.
func (idx *Index) ClaimMatch(p types.ProcessInfo) *detection.Detection {
	idx.mu.Lock()
	var found *detection.Detection
	for _, d := range idx.buckets[p.ProcessName] {
		if !idx.claimed[d] && d.Matches(p) {
			found = d
			break
		}
	}
	if found != nil {
		idx.claimed[found] = true
	}
	idx.mu.Unlock()

	if found != nil {
		idx.notify("claim", found)
	}
	return found
}

// Unclaim drops the claim on d without removing it.
func (idx *Index) Unclaim(d *detection.Detection) {
	idx.mu.Lock()
	delete(idx.claimed, d)
	idx.mu.Unlock()
}

// IsClaimed reports whether d is currently claimed.
func (idx *Index) IsClaimed(d *detection.Detection) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.claimed[d]
}

// Remove deletes d from its bucket. No-op if d is not indexed.
func (idx *Index) Remove(d *detection.Detection) bool {
	idx.mu.Lock()
	bucket := idx.buckets[d.ProcessName]
	i := indexOf(bucket, d)
	if i >= 0 {
		// Copy so slices handed out by Lookup are never rewritten.
		next := make([]*detection.Detection, 0, len(bucket)-1)
		next = append(next, bucket[:i]...)
		next = append(next, bucket[i+1:]...)
		idx.buckets[d.ProcessName] = next
	}
	delete(idx.claimed, d)
	idx.mu.Unlock()

	if i < 0 {
		return false
	}
	idx.notify("remove", d)
	return true
}

// Contains reports whether d is still indexed.
func (idx *Index) Contains(d *detection.Detection) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return indexOf(idx.buckets[d.ProcessName], d) >= 0
}

// ProcessNames returns the bucket keys in sorted order, including empty buckets.
func (idx *Index) ProcessNames() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	names := make([]string, 0, len(idx.buckets))
	for name := range idx.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of indexed detections.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for _, bucket := range idx.buckets {
		n += len(bucket)
	}
	return n
}

// Bucket is a read-only view of one process name's detections.
type Bucket struct {
	ProcessName string
	Detections  []*detection.Detection
	Claimed     []bool // parallel to Detections
}

// Buckets returns a snapshot of every bucket sorted by process name.
func (idx *Index) Buckets() []Bucket {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]Bucket, 0, len(idx.buckets))
	for name, bucket := range idx.buckets {
		b := Bucket{
			ProcessName: name,
			Detections:  make([]*detection.Detection, len(bucket)),
			Claimed:     make([]bool, len(bucket)),
		}
		copy(b.Detections, bucket)
		for i, d := range bucket {
			b.Claimed[i] = idx.claimed[d]
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProcessName < out[j].ProcessName })
	return out
}

func (idx *Index) notify(kind string, d *detection.Detection) {
	if idx.onChange != nil {
		idx.onChange(IndexEvent{Type: kind, Detection: d})
	}
}

func indexOf(bucket []*detection.Detection, d *detection.Detection) int {
	for i, candidate := range bucket {
		if candidate == d {
			return i
		}
	}
	return -1
}
