// Package transcode runs conversion jobs: a shared work queue drained by a pool of workers.
package transcode

import "sync"

// WorkQueue is the backlog of relative paths for one job. It is filled once
// and only shrinks; each path is handed out exactly once.
type WorkQueue struct {
	mu    sync.Mutex
	items []string
}

// NewWorkQueue creates a queue holding a copy of paths.
func NewWorkQueue(paths []string) *WorkQueue {
	items := make([]string, len(paths))
	copy(items, paths)
	return &WorkQueue{items: items}
}

// Pop removes and returns the most recently added path.
func (q *WorkQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n == 0 {
		return "", false
	}
	item := q.items[n-1]
	q.items = q.items[:n-1]
	return item, true
}

// Len returns the number of paths left.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
