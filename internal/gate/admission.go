package gate

import (
	"sync"
)

// Ledger bounds the number of requests concurrently doing expensive work.
// The counter never leaves [0, max]; every successful Acquire has exactly one
// effective release, enforced by the returned closure.
type Ledger struct {
	mu     sync.Mutex
	active int
	max    int
}

const defaultMaxConcurrent = 10

// NewLedger builds an admission ledger with the given capacity; non-positive
// selects the default of 10.
func NewLedger(max int) *Ledger {
	if max <= 0 {
		max = defaultMaxConcurrent
	}
	return &Ledger{max: max}
}

// Acquire reserves one unit of capacity, failing fast with a
// ResourceError("compute") when the ledger is full. The returned release
// func must run on every exit path of the guarded operation; callers defer
// it immediately. Calling it more than once is safe.
func (l *Ledger) Acquire() (release func(), err error) {
	l.mu.Lock()
	if l.active >= l.max {
		l.mu.Unlock()
		return nil, NewResourceError("Too many concurrent requests", "compute")
	}
	l.active++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			if l.active > 0 {
				l.active--
			}
			l.mu.Unlock()
		})
	}, nil
}

// Snapshot reports current occupancy without mutating the ledger. The lock
// is held for O(1) work only.
func (l *Ledger) Snapshot() (active, max int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active, l.max
}
