package service

import "sync"

// jobLocks serializes lifecycle operations per booking id. Acceptance,
// reassignment and cancellation all mutate the single-active-relation
// invariant, so concurrent edits to the same booking must not interleave.
// The database's conditional insert is the final arbiter for accept races;
// this lock keeps in-process operations orderly.
type jobLocks struct {
	mu    sync.Mutex
	locks map[string]*jobLock
}

type jobLock struct {
	mu   sync.Mutex
	refs int
}

func newJobLocks() *jobLocks {
	return &jobLocks{locks: make(map[string]*jobLock)}
}

// Lock acquires the lock for the given booking and returns its release
// function.
func (l *jobLocks) Lock(jobID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[jobID]
	if !ok {
		entry = &jobLock{}
		l.locks[jobID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, jobID)
		}
		l.mu.Unlock()
	}
}
