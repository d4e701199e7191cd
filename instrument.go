package stockpile

import (
	"github.com/pkg/errors"
	"strings"
)

// Instrument creates InstrumentInstance hooks for engine components. One
// instance is created per Pool, ReservationManager, or Inventory.
type Instrument interface {
	NewInstance(id string) InstrumentInstance
}

type InstrumentInstance interface {
	// pool
	Loaded(key ResourceKey, count int)
	LoadError(key ResourceKey, err error)
	Exhausted(key ResourceKey)
	Issued(key ResourceKey, count int)
	Confirmed(key ResourceKey, disposition string)
	AutoConfirmed(key ResourceKey)
	UnknownClaim(claimId string)
	Flushed(key ResourceKey, count int)
	FlushError(key ResourceKey, err error)

	// reservations
	Reserved(rowId int, requester string)
	ReserveConflict(rowId int, requester string)
	ReservationExpired(rowId int, requester string)
	Released(rowId int, requester string)

	// inventory
	InventoryRefreshed(count int)
	InventoryHit()
	Taken(rowId int, requester string)
	TakeFailed(rowId int, requester string)

	// persistence
	SnapshotSaved(items int)
	SnapshotError(err error)

	// instrument lifecycle
	Shutdown()
}

func NewInstrument(name string, config map[string]interface{}) (i Instrument, err error) {
	switch strings.ToLower(name) {
	case "nil":
		return NewNilInstrument(), nil
	case "trace":
		return NewTraceInstrument(), nil
	case "metrics":
		i, err = NewMetricsInstrument(config)
		if err != nil {
			return nil, errors.Wrap(err, "error creating metrics instrument")
		}
		return i, nil
	default:
		return nil, errors.Errorf("unknown instrument [%s]", name)
	}
}
