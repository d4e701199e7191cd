package stockpile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClaimWaitlist_Add_Due(t *testing.T) {
	wl := newClaimWaitlist()
	now := time.Now()
	wl.Add("clm_1", now.Add(-time.Second))
	wl.Add("clm_2", now.Add(time.Minute))
	assert.Equal(t, 2, wl.Size())

	due := wl.Due(now)
	assert.Equal(t, []string{"clm_1"}, due)
	assert.Equal(t, 1, wl.Size())

	due = wl.Due(now.Add(2 * time.Minute))
	assert.Equal(t, []string{"clm_2"}, due)
	assert.Equal(t, 0, wl.Size())
}

func TestClaimWaitlist_SharedDeadline(t *testing.T) {
	wl := newClaimWaitlist()
	deadline := time.Now().Add(time.Second)
	wl.Add("clm_1", deadline)
	wl.Add("clm_2", deadline)
	assert.Equal(t, 2, wl.Size())

	wl.Remove("clm_1", deadline)
	assert.Equal(t, 1, wl.Size())

	due := wl.Due(deadline)
	assert.Equal(t, []string{"clm_2"}, due)
}

func TestClaimWaitlist_RemoveUnknown(t *testing.T) {
	wl := newClaimWaitlist()
	deadline := time.Now()
	wl.Add("clm_1", deadline)
	wl.Remove("clm_99", deadline)
	wl.Remove("clm_1", deadline.Add(time.Hour))
	assert.Equal(t, 1, wl.Size())
}

func benchmarkClaimWaitlist(sz int, b *testing.B) {
	now := time.Now()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		wl := newClaimWaitlist()
		for j := 0; j < sz; j++ {
			wl.Add(fmt.Sprintf("clm_%d", j), now.Add(time.Duration(j)*time.Millisecond))
		}
		wl.Due(now.Add(time.Duration(sz) * time.Millisecond))
	}
}

func BenchmarkClaimWaitlist_1024(b *testing.B)  { benchmarkClaimWaitlist(1024, b) }
func BenchmarkClaimWaitlist_4096(b *testing.B)  { benchmarkClaimWaitlist(4096, b) }
func BenchmarkClaimWaitlist_16384(b *testing.B) { benchmarkClaimWaitlist(16384, b) }
