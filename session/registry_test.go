package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// age rewinds a record's timestamps so expiry can be tested without sleeping.
func age(r *Registry, id string, sinceActivity, sinceCreation time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[id]
	rec.lastActivity = time.Now().Add(-sinceActivity)
	rec.createdAt = time.Now().Add(-sinceCreation)
}

func TestCreateAndExists(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.Exists("abc"))
	r.Create("abc")
	assert.True(t, r.Exists("abc"))
	assert.False(t, r.IsExpired("abc"))
}

func TestCreateIsIdempotentForLiveRecords(t *testing.T) {
	r := NewRegistry()
	r.Create("abc")

	r.mu.Lock()
	created := r.records["abc"].createdAt
	r.mu.Unlock()

	r.Create("abc")

	r.mu.Lock()
	assert.Equal(t, created, r.records["abc"].createdAt, "create on a live record must be a no-op")
	r.mu.Unlock()
}

func TestCreateReplacesExpiredRecord(t *testing.T) {
	r := NewRegistry(WithIdleTTL(time.Minute))
	r.Create("abc")
	age(r, "abc", 2*time.Minute, 2*time.Minute)
	require.True(t, r.IsExpired("abc"))

	r.Create("abc")
	assert.False(t, r.IsExpired("abc"), "create over an expired record installs a fresh one")
}

func TestTouchUpdatesActivity(t *testing.T) {
	r := NewRegistry(WithIdleTTL(time.Minute))
	r.Create("abc")
	age(r, "abc", 50*time.Second, 50*time.Second)

	r.Touch("abc")
	assert.False(t, r.IsExpired("abc"))

	r.mu.Lock()
	since := time.Since(r.records["abc"].lastActivity)
	r.mu.Unlock()
	assert.Less(t, since, time.Second)
}

func TestTouchAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Touch("ghost")
	assert.False(t, r.Exists("ghost"))
}

func TestTouchNeverRevivesExpired(t *testing.T) {
	r := NewRegistry(WithIdleTTL(time.Minute))
	r.Create("abc")
	age(r, "abc", 2*time.Minute, 2*time.Minute)
	require.True(t, r.IsExpired("abc"))

	r.Touch("abc")
	assert.True(t, r.IsExpired("abc"), "touch must not revive an expired record")
}

func TestIdleExpiryBoundary(t *testing.T) {
	r := NewRegistry(WithIdleTTL(30 * time.Minute))

	r.Create("fresh")
	age(r, "fresh", 30*time.Minute-time.Second, 30*time.Minute-time.Second)
	assert.False(t, r.IsExpired("fresh"), "one second inside the idle window")

	r.Create("stale")
	age(r, "stale", 30*time.Minute+time.Second, 30*time.Minute+time.Second)
	assert.True(t, r.IsExpired("stale"), "one second past the idle window")
}

func TestAbsoluteExpiryIgnoresActivity(t *testing.T) {
	r := NewRegistry(WithIdleTTL(time.Hour), WithAbsoluteTTL(24*time.Hour))
	r.Create("old")
	// Recently active but created past the absolute window.
	age(r, "old", time.Second, 24*time.Hour+time.Second)
	assert.True(t, r.IsExpired("old"))
}

func TestIsExpiredFalseForAbsent(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.IsExpired("missing"))
}

func TestSweepReapsExpiredAndInvokesCallbacksInOrder(t *testing.T) {
	r := NewRegistry(WithIdleTTL(time.Minute))

	var mu sync.Mutex
	var calls []string
	r.RegisterCleanupCallback(func(id string) {
		mu.Lock()
		calls = append(calls, "first:"+id)
		mu.Unlock()
	})
	r.RegisterCleanupCallback(func(id string) {
		mu.Lock()
		calls = append(calls, "second:"+id)
		mu.Unlock()
	})

	r.Create("dead")
	age(r, "dead", 2*time.Minute, 2*time.Minute)
	r.Create("alive")

	reaped := r.Sweep()
	assert.Equal(t, 1, reaped)
	assert.False(t, r.Exists("dead"))
	assert.True(t, r.Exists("alive"))
	assert.Equal(t, []string{"first:dead", "second:dead"}, calls)
}

func TestSweepPanickingCallbackDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry(WithIdleTTL(time.Minute))

	var called bool
	r.RegisterCleanupCallback(func(id string) { panic("boom") })
	r.RegisterCleanupCallback(func(id string) { called = true })

	r.Create("dead")
	age(r, "dead", 2*time.Minute, 2*time.Minute)

	reaped := r.Sweep()
	assert.Equal(t, 1, reaped, "deletion must complete despite the panic")
	assert.True(t, called, "later callbacks must still run")
	assert.False(t, r.Exists("dead"))
}

func TestSweepSkipsRecordsTouchedDuringCallbacks(t *testing.T) {
	r := NewRegistry(WithIdleTTL(time.Minute))

	r.RegisterCleanupCallback(func(id string) {
		// Simulate a concurrent writer updating activity while callbacks
		// run outside the lock.
		r.mu.Lock()
		r.records[id].lastActivity = time.Now()
		r.mu.Unlock()
	})

	r.Create("busy")
	age(r, "busy", 2*time.Minute, 2*time.Minute)

	reaped := r.Sweep()
	assert.Equal(t, 0, reaped)
	assert.True(t, r.Exists("busy"), "a record touched during callbacks survives the sweep")
}

func TestSweepEmptyRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Sweep())
}

func TestSweeperLifecycle(t *testing.T) {
	r := NewRegistry(WithIdleTTL(time.Minute), WithSweepInterval(10*time.Millisecond))

	done := make(chan string, 1)
	r.RegisterCleanupCallback(func(id string) {
		select {
		case done <- id:
		default:
		}
	})

	r.Create("dead")
	age(r, "dead", 2*time.Minute, 2*time.Minute)

	r.StartSweeper()
	// Idempotent start.
	r.StartSweeper()

	select {
	case id := <-done:
		assert.Equal(t, "dead", id)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never reaped the expired session")
	}

	r.StopSweeper()
	// Stop is safe to call again.
	r.StopSweeper()
}

func TestConcurrentRegistryAccess(t *testing.T) {
	r := NewRegistry(WithIdleTTL(time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			for j := 0; j < 100; j++ {
				r.Create(id)
				r.Touch(id)
				r.Exists(id)
				r.IsExpired(id)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 20; j++ {
			r.Sweep()
		}
	}()
	wg.Wait()
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "abcdefgh", Prefix("abcdefgh12345678"))
	assert.Equal(t, "short", Prefix("short"))
}
