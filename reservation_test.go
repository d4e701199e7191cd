package stockpile

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReserveConflict(t *testing.T) {
	m := NewReservationManager(testProfile())

	assert.True(t, m.Reserve(7, "alice", "order_1", 0))
	assert.False(t, m.Reserve(7, "bob", "order_2", 0))
	assert.Equal(t, []int{7}, m.Held("alice"))
	assert.Empty(t, m.Held("bob"))
}

func TestReserveRearmAdoptsNewTag(t *testing.T) {
	m := NewReservationManager(testProfile())

	assert.True(t, m.Reserve(7, "alice", "order_1", 0))
	assert.True(t, m.Reserve(7, "alice", "order_2", 0))
	assert.Equal(t, "order_2", m.rows[7].Tag)
	assert.Equal(t, []int{7}, m.Held("alice"))
}

func TestReserveRearmExtendsExpiry(t *testing.T) {
	m := NewReservationManager(testProfile())

	assert.True(t, m.Reserve(7, "alice", "order_1", 50*time.Millisecond))
	first := m.rows[7].ExpiresAt
	assert.True(t, m.Reserve(7, "alice", "order_1", time.Minute))
	assert.True(t, m.rows[7].ExpiresAt.After(first))
}

func TestReserveDefaultTTL(t *testing.T) {
	p := testProfile()
	p.ReservationTTL = time.Minute
	m := NewReservationManager(p)

	assert.True(t, m.Reserve(7, "alice", "order_1", 0))
	remaining := time.Until(m.rows[7].ExpiresAt)
	assert.True(t, remaining > 50*time.Second)
	assert.True(t, remaining <= time.Minute)
}

func TestReserveExpiredHoldIsReclaimed(t *testing.T) {
	m := NewReservationManager(testProfile())

	assert.True(t, m.Reserve(7, "alice", "order_1", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, m.Reserve(7, "bob", "order_2", 0))
	assert.Empty(t, m.Held("alice"))
	assert.Equal(t, []int{7}, m.Held("bob"))
}

func TestReserveBatchGrantsSubset(t *testing.T) {
	m := NewReservationManager(testProfile())

	assert.True(t, m.Reserve(2, "bob", "order_9", 0))
	granted := m.ReserveBatch([]int{1, 2, 3}, "alice", "order_1")
	assert.Equal(t, []int{1, 3}, granted)
}

func TestReserveRace(t *testing.T) {
	m := NewReservationManager(testProfile())

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if m.Reserve(7, fmt.Sprintf("requester_%d", i), "order_1", 0) {
				atomic.AddInt32(&winners, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
	assert.Equal(t, 1, m.Stats().Total)
}

func TestCancelWrongOwner(t *testing.T) {
	m := NewReservationManager(testProfile())

	assert.True(t, m.Reserve(7, "alice", "order_1", 0))
	assert.False(t, m.Cancel(7, "bob"))
	assert.False(t, m.Cancel(9, "alice"))
	assert.True(t, m.Cancel(7, "alice"))
	assert.Empty(t, m.Held("alice"))
}

func TestCancelAll(t *testing.T) {
	m := NewReservationManager(testProfile())

	for _, rowId := range []int{1, 2, 3} {
		assert.True(t, m.Reserve(rowId, "alice", "order_1", 0))
	}
	assert.True(t, m.Reserve(9, "bob", "order_2", 0))

	assert.Equal(t, 3, m.CancelAll("alice"))
	assert.Equal(t, 0, m.CancelAll("alice"))
	assert.Equal(t, 1, m.Stats().Total)
	assert.Equal(t, []int{9}, m.Held("bob"))
}

func TestConfirmBatch(t *testing.T) {
	m := NewReservationManager(testProfile())

	assert.True(t, m.Reserve(1, "alice", "order_1", 0))
	assert.True(t, m.Reserve(2, "alice", "order_1", 0))
	assert.True(t, m.Reserve(3, "bob", "order_2", 0))

	confirmed, failed := m.ConfirmBatch([]int{1, 2, 3, 4}, "alice")
	assert.Equal(t, []int{1, 2}, confirmed)
	assert.Equal(t, []int{3, 4}, failed)
	assert.Equal(t, 1, m.Stats().Total)
}

func TestSweepReclaimsExpired(t *testing.T) {
	m := NewReservationManager(testProfile())

	assert.True(t, m.Reserve(1, "alice", "order_1", time.Millisecond))
	assert.True(t, m.Reserve(2, "bob", "order_2", time.Minute))
	time.Sleep(5 * time.Millisecond)

	m.sweep()

	assert.Equal(t, 1, m.Stats().Total)
	assert.Empty(t, m.Held("alice"))
	assert.True(t, m.Reserve(1, "carol", "order_3", 0))
}

func TestReservedExcluding(t *testing.T) {
	m := NewReservationManager(testProfile())

	assert.True(t, m.Reserve(1, "alice", "order_1", 0))
	assert.True(t, m.Reserve(2, "bob", "order_2", 0))
	assert.True(t, m.Reserve(3, "bob", "order_2", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	reserved := m.ReservedExcluding("alice")
	assert.Equal(t, map[int]struct{}{2: {}}, reserved)
}

func TestReservationStats(t *testing.T) {
	m := NewReservationManager(testProfile())

	for _, rowId := range []int{1, 2, 3} {
		assert.True(t, m.Reserve(rowId, "alice", "order_1", 0))
	}
	assert.True(t, m.Reserve(9, "bob", "order_2", 0))

	stats := m.Stats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.ActiveRequesters)
	assert.Equal(t, 3, stats.MaxPerRequester)
}

func benchmarkReserve(rows int, b *testing.B) {
	m := NewReservationManager(testProfile())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Reserve(i%rows, "alice", "order_1", 0)
	}
}

func BenchmarkReserve1024(b *testing.B)  { benchmarkReserve(1024, b) }
func BenchmarkReserve16384(b *testing.B) { benchmarkReserve(16384, b) }
