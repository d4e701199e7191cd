package stockpile

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBaselineProfile(t *testing.T) {
	p := NewBaselineProfile()
	assert.Equal(t, 15, p.LoadBatchSize)
	assert.Equal(t, 5, p.LowWaterMark)
	assert.Equal(t, 30*time.Second, p.FlushInterval)
	assert.Equal(t, 600*time.Second, p.ClaimTimeout)
	assert.Equal(t, "accepted", p.DefaultDisposition)
	assert.Equal(t, 300*time.Second, p.ReservationTTL)
	assert.Equal(t, 60*time.Second, p.InventoryTTL)
}

func TestProfileLoad(t *testing.T) {
	p := NewBaselineProfile()
	err := p.Load(map[string]interface{}{
		"load_batch_size":     30,
		"flush_interval":      "45s",
		"claim_timeout":       1000,
		"default_disposition": "good",
		"preload_keys":        []interface{}{"accounts_a", "accounts_b"},
	})
	assert.NoError(t, err)
	assert.Equal(t, 30, p.LoadBatchSize)
	assert.Equal(t, 45*time.Second, p.FlushInterval)
	assert.Equal(t, time.Second, p.ClaimTimeout)
	assert.Equal(t, "good", p.DefaultDisposition)
	assert.Equal(t, []string{"accounts_a", "accounts_b"}, p.PreloadKeys)

	// untouched keys keep their baseline values
	assert.Equal(t, 5, p.LowWaterMark)
}

func TestProfileLoadMismatch(t *testing.T) {
	p := NewBaselineProfile()
	err := p.Load(map[string]interface{}{"load_batch_size": "thirty"})
	assert.Error(t, err)
}

func TestProfileDump(t *testing.T) {
	out := NewBaselineProfile().Dump()
	assert.True(t, strings.HasPrefix(out, "profile {"))
	assert.Contains(t, out, "low_water_mark")
	assert.Contains(t, out, "ledger_key")
}

func TestLedgerKey(t *testing.T) {
	p := NewBaselineProfile()
	assert.Equal(t, ResourceKey("issued_accounts"), p.ledger("accounts"))
	p.LedgerKey = "records"
	assert.Equal(t, ResourceKey("records_accounts"), p.ledger("accounts"))
}
