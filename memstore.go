package stockpile

import (
	"sync"

	"github.com/pkg/errors"
)

// MemoryStore is an in-process Store used by tests and the demo command. It
// keeps per-key row tables and counts calls so batching behavior can be
// asserted against.
type MemoryStore struct {
	lock    sync.Mutex
	tables  map[ResourceKey][]Row
	nextId  map[ResourceKey]int
	counts  map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[ResourceKey][]Row),
		nextId: make(map[ResourceKey]int),
		counts: make(map[string]int),
	}
}

// Seed appends a row with the given values and returns its row id.
func (self *MemoryStore) Seed(key ResourceKey, values ...string) int {
	self.lock.Lock()
	defer self.lock.Unlock()
	id := self.nextId[key] + 1
	self.nextId[key] = id
	self.tables[key] = append(self.tables[key], Row{Id: id, Values: values})
	return id
}

// Calls returns how many times the named operation ("list", "delete",
// "append", "update", "batch_update") has run.
func (self *MemoryStore) Calls(op string) int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return self.counts[op]
}

// RowCount returns the number of rows currently held for key.
func (self *MemoryStore) RowCount(key ResourceKey) int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return len(self.tables[key])
}

func (self *MemoryStore) ListRows(key ResourceKey, limit int) ([]Row, error) {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.counts["list"]++
	rows := self.tables[key]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	out := make([]Row, len(rows))
	for i, row := range rows {
		values := make([]string, len(row.Values))
		copy(values, row.Values)
		out[i] = Row{Id: row.Id, Values: values}
	}
	return out, nil
}

func (self *MemoryStore) DeleteRows(key ResourceKey, rowIds []int) error {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.counts["delete"]++
	drop := make(map[int]struct{}, len(rowIds))
	for _, id := range rowIds {
		drop[id] = struct{}{}
	}
	kept := self.tables[key][:0]
	for _, row := range self.tables[key] {
		if _, found := drop[row.Id]; !found {
			kept = append(kept, row)
		}
	}
	self.tables[key] = kept
	return nil
}

func (self *MemoryStore) AppendRows(key ResourceKey, rows [][]string) error {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.counts["append"]++
	for _, values := range rows {
		id := self.nextId[key] + 1
		self.nextId[key] = id
		copied := make([]string, len(values))
		copy(copied, values)
		self.tables[key] = append(self.tables[key], Row{Id: id, Values: copied})
	}
	return nil
}

func (self *MemoryStore) UpdateCell(key ResourceKey, update CellUpdate) error {
	return self.BatchUpdateCells(key, []CellUpdate{update})
}

func (self *MemoryStore) BatchUpdateCells(key ResourceKey, updates []CellUpdate) error {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.counts["batch_update"]++
	for _, update := range updates {
		applied := false
		for i, row := range self.tables[key] {
			if row.Id == update.RowId {
				if update.Column >= len(row.Values) {
					return errors.Errorf("column [%d] out of range for row [%d]", update.Column, update.RowId)
				}
				self.tables[key][i].Values[update.Column] = update.Value
				applied = true
				break
			}
		}
		if !applied {
			return errors.Errorf("row [%d] not found for key [%s]", update.RowId, key)
		}
	}
	return nil
}
