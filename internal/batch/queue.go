package batch

import (
	"sync"

	"github.com/ebarretto/sideload/internal/core"
)

// Queue is an ordered list of artifacts waiting for installation. An
// artifact's absolute path is unique within the queue; duplicate
// submissions are ignored. Safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	items []core.PackageArtifact
	seen  map[string]struct{}
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{seen: make(map[string]struct{})}
}

// Add appends an artifact. Returns false when the same path is already
// queued; the duplicate is dropped silently.
func (q *Queue) Add(artifact core.PackageArtifact) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.seen[artifact.Path]; dup {
		return false
	}
	q.seen[artifact.Path] = struct{}{}
	q.items = append(q.items, artifact)
	return true
}

// RemoveAt removes the artifact at the given position, preserving the
// order of the rest. Returns false for an out-of-range index.
func (q *Queue) RemoveAt(index int) (core.PackageArtifact, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.items) {
		return core.PackageArtifact{}, false
	}
	removed := q.items[index]
	q.items = append(q.items[:index], q.items[index+1:]...)
	delete(q.seen, removed.Path)
	return removed, true
}

// Items returns a copy of the queued artifacts in submission order
func (q *Queue) Items() []core.PackageArtifact {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]core.PackageArtifact, len(q.items))
	copy(items, q.items)
	return items
}

// Len returns the number of queued artifacts
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear empties the queue
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.seen = make(map[string]struct{})
}
