package stockpile

import (
	"time"

	"github.com/stockpile-io/stockpile/cf"
)

// Profile carries every engine tunable. The baseline values mirror the
// production deployment this engine was extracted from.
type Profile struct {
	LoadBatchSize      int           `cf:"load_batch_size"`
	LowWaterMark       int           `cf:"low_water_mark"`
	FlushInterval      time.Duration `cf:"flush_interval"`
	ClaimTimeout       time.Duration `cf:"claim_timeout"`
	ExpiryInterval     time.Duration `cf:"expiry_interval"`
	SnapshotInterval   time.Duration `cf:"snapshot_interval"`
	DefaultDisposition string        `cf:"default_disposition"`
	LedgerKey          string        `cf:"ledger_key"`
	ReservationTTL     time.Duration `cf:"reservation_ttl"`
	SweepInterval      time.Duration `cf:"sweep_interval"`
	InventoryTTL       time.Duration `cf:"inventory_ttl"`
	PreloadKeys        []string      `cf:"preload_keys"`

	i Instrument
}

func NewBaselineProfile() *Profile {
	return &Profile{
		LoadBatchSize:      15,
		LowWaterMark:       5,
		FlushInterval:      30 * time.Second,
		ClaimTimeout:       600 * time.Second,
		ExpiryInterval:     60 * time.Second,
		SnapshotInterval:   60 * time.Second,
		DefaultDisposition: "accepted",
		LedgerKey:          "issued",
		ReservationTTL:     300 * time.Second,
		SweepInterval:      30 * time.Second,
		InventoryTTL:       60 * time.Second,
	}
}

func (self *Profile) Load(data map[string]interface{}) error {
	return cf.Load(data, self)
}

func (self *Profile) Dump() string {
	return cf.Dump("profile", self)
}

func (self *Profile) SetInstrument(i Instrument) {
	self.i = i
}

// ledger returns the ResourceKey of the durable ledger confirmed records are
// appended to, scoped per source key.
func (self *Profile) ledger(key ResourceKey) ResourceKey {
	return ResourceKey(self.LedgerKey + "_" + string(key))
}
