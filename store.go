package stockpile

import (
	"context"

	"golang.org/x/time/rate"
)

// CellUpdate mutates a single cell of a backing store row.
type CellUpdate struct {
	RowId  int
	Column int
	Value  string
}

// Store is the narrow adapter onto the external, rate-limited system of
// record. All mutating calls are batched; the engine is responsible for
// minimizing call count, not the adapter. A DeleteRows for a set of rows is
// the single point of mutual exclusion between independent process instances
// loading the same key.
type Store interface {
	// ListRows returns up to limit rows for key, in store order. limit <= 0
	// returns everything.
	ListRows(key ResourceKey, limit int) ([]Row, error)
	DeleteRows(key ResourceKey, rowIds []int) error
	AppendRows(key ResourceKey, rows [][]string) error
	UpdateCell(key ResourceKey, update CellUpdate) error
	BatchUpdateCells(key ResourceKey, updates []CellUpdate) error
}

// RatedStore decorates a Store with a token-bucket limiter, so every call to
// the backing store waits for capacity instead of tripping the remote rate
// limit.
type RatedStore struct {
	store   Store
	limiter *rate.Limiter
}

func NewRatedStore(store Store, rps float64, burst int) *RatedStore {
	return &RatedStore{
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (self *RatedStore) ListRows(key ResourceKey, limit int) ([]Row, error) {
	if err := self.limiter.Wait(context.Background()); err != nil {
		return nil, err
	}
	return self.store.ListRows(key, limit)
}

func (self *RatedStore) DeleteRows(key ResourceKey, rowIds []int) error {
	if err := self.limiter.Wait(context.Background()); err != nil {
		return err
	}
	return self.store.DeleteRows(key, rowIds)
}

func (self *RatedStore) AppendRows(key ResourceKey, rows [][]string) error {
	if err := self.limiter.Wait(context.Background()); err != nil {
		return err
	}
	return self.store.AppendRows(key, rows)
}

func (self *RatedStore) UpdateCell(key ResourceKey, update CellUpdate) error {
	if err := self.limiter.Wait(context.Background()); err != nil {
		return err
	}
	return self.store.UpdateCell(key, update)
}

func (self *RatedStore) BatchUpdateCells(key ResourceKey, updates []CellUpdate) error {
	if err := self.limiter.Wait(context.Background()); err != nil {
		return err
	}
	return self.store.BatchUpdateCells(key, updates)
}
