package stockpile

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Inventory is the short-TTL read cache in front of a shared,
// non-destructively-read table, merged with the live reservation set on every
// listing. Rows stay in the backing store; a confirmed take appends a
// persistent "used-for" tag to the row's tag column instead of deleting it.
//
// Only the inventory rows are cached. Reservation state is always read live,
// so a stale cache can at worst show a row as still available; the atomic
// Reserve call rejects the loser of that race.
type Inventory struct {
	key          ResourceKey
	tagColumn    int
	profile      *Profile
	store        Store
	reservations *ReservationManager
	ii           InstrumentInstance
	ordering     func(a, b Row) bool

	lock     sync.Mutex
	rows     []Row
	cachedAt time.Time
}

type InventoryOption func(*Inventory)

// WithOrdering sorts listings by the given priority function, highest
// priority first rows first.
func WithOrdering(less func(a, b Row) bool) InventoryOption {
	return func(inv *Inventory) { inv.ordering = less }
}

func NewInventory(profile *Profile, store Store, reservations *ReservationManager, key ResourceKey, tagColumn int, opts ...InventoryOption) *Inventory {
	inv := &Inventory{
		key:          key,
		tagColumn:    tagColumn,
		profile:      profile,
		store:        store,
		reservations: reservations,
	}
	inv.ii = InstrumentInstance(&nilInstrumentInstance{})
	if profile.i != nil {
		inv.ii = profile.i.NewInstance("inventory_" + string(key))
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// All returns the full inventory snapshot, served from cache while it is
// fresher than the profile's inventory TTL. Returned rows are copies; callers
// cannot corrupt the cache through them.
func (self *Inventory) All(force bool) ([]Row, error) {
	self.lock.Lock()
	if !force && time.Since(self.cachedAt) < self.profile.InventoryTTL && self.rows != nil {
		rows := copyRows(self.rows)
		self.lock.Unlock()
		self.ii.InventoryHit()
		return rows, nil
	}
	self.lock.Unlock()

	rows, err := self.store.ListRows(self.key, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "list [%s]", self.key)
	}

	self.lock.Lock()
	self.rows = rows
	self.cachedAt = time.Now()
	self.lock.Unlock()

	logrus.Debugf("refreshed [%d] rows for [%s]", len(rows), self.key)
	self.ii.InventoryRefreshed(len(rows))
	return copyRows(rows), nil
}

func copyRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, row := range rows {
		values := make([]string, len(row.Values))
		copy(values, row.Values)
		out[i] = Row{Id: row.Id, Values: values}
	}
	return out
}

// Invalidate forces the next listing to re-read the backing store.
func (self *Inventory) Invalidate() {
	self.lock.Lock()
	self.cachedAt = time.Time{}
	self.lock.Unlock()
}

// Available lists rows not yet tagged for tag and not held live by a
// requester other than the given one, in priority order.
func (self *Inventory) Available(tag string, requester string) ([]Row, error) {
	rows, err := self.All(false)
	if err != nil {
		return nil, err
	}
	others := self.reservations.ReservedExcluding(requester)

	var available []Row
	for _, row := range rows {
		if self.hasTag(row, tag) {
			continue
		}
		if _, taken := others[row.Id]; taken {
			continue
		}
		available = append(available, row)
	}
	self.order(available)
	return available, nil
}

// ForRequester returns the selectable rows plus the set of rows the requester
// already holds, for rendering "taken by me" against "still available".
func (self *Inventory) ForRequester(tag string, requester string) ([]Row, map[int]struct{}, error) {
	available, err := self.Available(tag, requester)
	if err != nil {
		return nil, nil, err
	}
	held := make(map[int]struct{})
	for _, rowId := range self.reservations.Held(requester) {
		held[rowId] = struct{}{}
	}
	return available, held, nil
}

// TakeBatch permanently tags the given rows for (requester, tag) with exactly
// one backing-store read and one batched write, regardless of how many rows
// are involved. Rows that are gone, already tagged, or held by someone else
// are reported in failed; the write covers only the rest. Reservations for
// taken rows are confirmed and the cache invalidated afterwards.
func (self *Inventory) TakeBatch(rowIds []int, requester string, tag string) (taken []Row, failed []int, err error) {
	if len(rowIds) == 0 {
		return nil, nil, nil
	}

	rows, err := self.store.ListRows(self.key, 0)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "list [%s]", self.key)
	}
	byId := make(map[int]Row, len(rows))
	for _, row := range rows {
		byId[row.Id] = row
	}

	others := self.reservations.ReservedExcluding(requester)

	var updates []CellUpdate
	for _, rowId := range rowIds {
		row, found := byId[rowId]
		if !found || self.tagColumn >= len(row.Values) {
			failed = append(failed, rowId)
			self.ii.TakeFailed(rowId, requester)
			continue
		}
		if self.hasTag(row, tag) {
			logrus.Warnf("row [%d] already tagged [%s]", rowId, tag)
			failed = append(failed, rowId)
			self.ii.TakeFailed(rowId, requester)
			continue
		}
		if _, held := others[rowId]; held {
			logrus.Warnf("row [%d] reserved by another requester", rowId)
			failed = append(failed, rowId)
			self.ii.TakeFailed(rowId, requester)
			continue
		}

		tagged := appendTag(row.Values[self.tagColumn], tag)
		updated := Row{Id: row.Id, Values: append([]string{}, row.Values...)}
		updated.Values[self.tagColumn] = tagged

		updates = append(updates, CellUpdate{RowId: rowId, Column: self.tagColumn, Value: tagged})
		taken = append(taken, updated)
	}

	if len(updates) > 0 {
		if err := self.store.BatchUpdateCells(self.key, updates); err != nil {
			// Reservations stay live; the caller may retry before they expire.
			return nil, nil, errors.Wrapf(err, "batch update [%s]", self.key)
		}

		takenIds := make([]int, len(taken))
		for i, row := range taken {
			takenIds[i] = row.Id
		}
		self.reservations.ConfirmBatch(takenIds, requester)
		self.Invalidate()

		logrus.Infof("[%s] took [%d] rows for tag [%s]", requester, len(taken), tag)
		for _, rowId := range takenIds {
			self.ii.Taken(rowId, requester)
		}
	}
	return taken, failed, nil
}

// Take tags a single row, going through the batched path for consistency.
func (self *Inventory) Take(rowId int, requester string, tag string) (*Row, error) {
	taken, _, err := self.TakeBatch([]int{rowId}, requester, tag)
	if err != nil {
		return nil, err
	}
	if len(taken) == 0 {
		return nil, nil
	}
	return &taken[0], nil
}

func (self *Inventory) order(rows []Row) {
	if self.ordering == nil {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool { return self.ordering(rows[i], rows[j]) })
}

func (self *Inventory) hasTag(row Row, tag string) bool {
	if self.tagColumn >= len(row.Values) {
		return false
	}
	for _, t := range splitTags(row.Values[self.tagColumn]) {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func splitTags(value string) []string {
	var tags []string
	for _, t := range strings.Split(value, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func appendTag(value, tag string) string {
	tags := append(splitTags(value), strings.ToLower(tag))
	return strings.Join(tags, ",")
}
