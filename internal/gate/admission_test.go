package gate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAcquireUpToCapacity(t *testing.T) {
	l := NewLedger(2)

	r1, err := l.Acquire()
	require.NoError(t, err)
	r2, err := l.Acquire()
	require.NoError(t, err)

	_, err = l.Acquire()
	require.True(t, IsResource(err))
	var re *ResourceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "compute", re.ResourceType)

	// One release frees exactly one slot.
	r1()
	r3, err := l.Acquire()
	require.NoError(t, err)

	r2()
	r3()
	active, max := l.Snapshot()
	assert.Equal(t, 0, active)
	assert.Equal(t, 2, max)
}

func TestLedgerReleaseIsIdempotent(t *testing.T) {
	l := NewLedger(1)
	release, err := l.Acquire()
	require.NoError(t, err)

	release()
	release()
	release()

	active, _ := l.Snapshot()
	assert.Equal(t, 0, active)

	_, err = l.Acquire()
	assert.NoError(t, err)
}

func TestLedgerDefaultCapacity(t *testing.T) {
	l := NewLedger(0)
	_, max := l.Snapshot()
	assert.Equal(t, 10, max)
}

func TestLedgerSnapshotDoesNotMutate(t *testing.T) {
	l := NewLedger(3)
	_, err := l.Acquire()
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		active, max := l.Snapshot()
		assert.Equal(t, 1, active)
		assert.Equal(t, 3, max)
	}
}

func TestLedgerInvariantUnderConcurrentLoad(t *testing.T) {
	const capacity = 8
	const workers = 64
	const rounds = 50

	l := NewLedger(capacity)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				release, err := l.Acquire()
				active, max := l.Snapshot()
				if active < 0 || active > max {
					t.Errorf("ledger out of bounds: active=%d max=%d", active, max)
				}
				if err != nil {
					continue
				}
				release()
			}
		}()
	}
	wg.Wait()

	active, _ := l.Snapshot()
	assert.Equal(t, 0, active)
}
