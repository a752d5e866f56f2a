package ledger

import (
	"sort"
	"sync"
)

// lockRegistry hands out one RWMutex per translator
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[string]*sync.RWMutex)}
}

func (r *lockRegistry) get(translatorID string) *sync.RWMutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[translatorID]
	if !ok {
		l = &sync.RWMutex{}
		r.locks[translatorID] = l
	}
	return l
}

// lockAll takes the write locks of ids in sorted order and returns the unlock func.
// Duplicates are ignored.
func (r *lockRegistry) lockAll(ids []string) (sorted []string, unlock func()) {
	sorted = uniqueSorted(ids)
	held := make([]*sync.RWMutex, 0, len(sorted))
	for _, id := range sorted {
		l := r.get(id)
		l.Lock()
		held = append(held, l)
	}

	return sorted, func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (r *lockRegistry) rlock(translatorID string) func() {
	l := r.get(translatorID)
	l.RLock()
	return l.RUnlock
}

// rlockAll takes the read locks of ids in sorted order, like lockAll
func (r *lockRegistry) rlockAll(ids []string) func() {
	sorted := uniqueSorted(ids)
	held := make([]*sync.RWMutex, 0, len(sorted))
	for _, id := range sorted {
		l := r.get(id)
		l.RLock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].RUnlock()
		}
	}
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// taskTracker records, per task, the translators locked by units that are
// writing that task's rows. A unit that has deleted a task's rows without
// re-inserting them leaves nothing in the repository to find it by.
type taskTracker struct {
	mu    sync.Mutex
	tasks map[int64]map[string]int
}

func newTaskTracker() *taskTracker {
	return &taskTracker{tasks: make(map[int64]map[string]int)}
}

func (t *taskTracker) enter(taskID int64, translatorIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	held, ok := t.tasks[taskID]
	if !ok {
		held = make(map[string]int, len(translatorIDs))
		t.tasks[taskID] = held
	}
	for _, id := range translatorIDs {
		held[id]++
	}
}

func (t *taskTracker) leave(taskID int64, translatorIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	held := t.tasks[taskID]
	for _, id := range translatorIDs {
		if held[id]--; held[id] <= 0 {
			delete(held, id)
		}
	}
	if len(held) == 0 {
		delete(t.tasks, taskID)
	}
}

func (t *taskTracker) holders(taskID int64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.tasks[taskID]))
	for id := range t.tasks[taskID] {
		out = append(out, id)
	}
	return out
}
