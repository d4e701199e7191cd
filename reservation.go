package stockpile

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Reservation is an exclusive, time-boxed hold on a shared backing-store row
// for one requester. At most one live reservation exists per row.
type Reservation struct {
	RowId     int
	Requester string
	Tag       string
	ExpiresAt time.Time
}

func (self *Reservation) expired(now time.Time) bool {
	return now.After(self.ExpiresAt)
}

// ReservationManager arbitrates concurrent selection of rows that remain in
// the backing store. Every operation is a short O(1) critical section under a
// single lock; the periodic sweep reclaims holds that were never confirmed or
// canceled.
type ReservationManager struct {
	profile *Profile
	ii      InstrumentInstance

	lock        sync.Mutex
	rows        map[int]*Reservation
	byRequester map[string]map[int]struct{}

	stopLock sync.Mutex
	stopped  bool
	close    chan struct{}
}

func NewReservationManager(profile *Profile) *ReservationManager {
	m := &ReservationManager{
		profile:     profile,
		rows:        make(map[int]*Reservation),
		byRequester: make(map[string]map[int]struct{}),
		close:       make(chan struct{}),
	}
	m.ii = InstrumentInstance(&nilInstrumentInstance{})
	if profile.i != nil {
		m.ii = profile.i.NewInstance("reservations")
	}
	return m
}

func (self *ReservationManager) Start() {
	go self.sweeper()
}

func (self *ReservationManager) Stop() {
	self.stopLock.Lock()
	defer self.stopLock.Unlock()
	if self.stopped {
		return
	}
	self.stopped = true
	close(self.close)
	self.ii.Shutdown()
}

// Reserve atomically checks and sets the hold on rowId. A live hold by a
// different requester fails cleanly; the requester's own hold is re-armed
// with a fresh TTL, adopting the given tag. ttl <= 0 uses the profile
// default.
func (self *ReservationManager) Reserve(rowId int, requester string, tag string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = self.profile.ReservationTTL
	}
	now := time.Now()

	self.lock.Lock()
	defer self.lock.Unlock()

	if existing, found := self.rows[rowId]; found {
		if !existing.expired(now) {
			if existing.Requester != requester {
				self.ii.ReserveConflict(rowId, requester)
				return false
			}
			existing.Tag = tag
			existing.ExpiresAt = now.Add(ttl)
			return true
		}
		self.drop(existing)
	}

	r := &Reservation{RowId: rowId, Requester: requester, Tag: tag, ExpiresAt: now.Add(ttl)}
	self.rows[rowId] = r
	if self.byRequester[requester] == nil {
		self.byRequester[requester] = make(map[int]struct{})
	}
	self.byRequester[requester][rowId] = struct{}{}

	logrus.Debugf("reserved row [%d] for [%s] tag [%s]", rowId, requester, tag)
	self.ii.Reserved(rowId, requester)
	return true
}

// ReserveBatch reserves each of rowIds in turn and returns the granted
// subset. Rows held by other requesters are skipped, not errors.
func (self *ReservationManager) ReserveBatch(rowIds []int, requester string, tag string) []int {
	var granted []int
	for _, rowId := range rowIds {
		if self.Reserve(rowId, requester, tag, 0) {
			granted = append(granted, rowId)
		}
	}
	logrus.Infof("[%s] reserved [%d/%d] rows for tag [%s]", requester, len(granted), len(rowIds), tag)
	return granted
}

// drop removes a reservation from both indexes. Callers hold the lock.
func (self *ReservationManager) drop(r *Reservation) {
	delete(self.rows, r.RowId)
	if held := self.byRequester[r.Requester]; held != nil {
		delete(held, r.RowId)
		if len(held) == 0 {
			delete(self.byRequester, r.Requester)
		}
	}
}

// Cancel releases the hold on rowId iff it is owned by requester.
func (self *ReservationManager) Cancel(rowId int, requester string) bool {
	self.lock.Lock()
	defer self.lock.Unlock()

	r, found := self.rows[rowId]
	if !found || r.Requester != requester {
		return false
	}
	self.drop(r)
	self.ii.Released(rowId, requester)
	return true
}

// CancelAll releases every hold requester currently owns and returns how many
// were released. Used when a requester abandons the selection flow.
func (self *ReservationManager) CancelAll(requester string) int {
	self.lock.Lock()
	defer self.lock.Unlock()

	held := self.byRequester[requester]
	count := len(held)
	for rowId := range held {
		delete(self.rows, rowId)
		self.ii.Released(rowId, requester)
	}
	delete(self.byRequester, requester)

	if count > 0 {
		logrus.Infof("cancelled [%d] reservations for [%s]", count, requester)
	}
	return count
}

// Confirm removes the hold iff owned by requester, signaling that the caller
// may now tag the row permanently in the backing store.
func (self *ReservationManager) Confirm(rowId int, requester string) bool {
	self.lock.Lock()
	defer self.lock.Unlock()
	return self.confirmLocked(rowId, requester)
}

func (self *ReservationManager) confirmLocked(rowId int, requester string) bool {
	r, found := self.rows[rowId]
	if !found || r.Requester != requester {
		return false
	}
	self.drop(r)
	return true
}

// ConfirmBatch confirms many rows in a single pass so the caller can follow
// with one batched store write instead of one write per row.
func (self *ReservationManager) ConfirmBatch(rowIds []int, requester string) (confirmed, failed []int) {
	self.lock.Lock()
	defer self.lock.Unlock()

	for _, rowId := range rowIds {
		if self.confirmLocked(rowId, requester) {
			confirmed = append(confirmed, rowId)
		} else {
			failed = append(failed, rowId)
		}
	}
	return confirmed, failed
}

// Held returns the rows requester currently holds live reservations on.
func (self *ReservationManager) Held(requester string) []int {
	now := time.Now()
	self.lock.Lock()
	defer self.lock.Unlock()

	var held []int
	for rowId := range self.byRequester[requester] {
		if r := self.rows[rowId]; r != nil {
			if r.expired(now) {
				self.drop(r)
				continue
			}
			held = append(held, rowId)
		}
	}
	return held
}

// ReservedExcluding returns the set of rows held live by anyone other than
// requester, for rendering "taken by someone else" in a selection flow.
func (self *ReservationManager) ReservedExcluding(requester string) map[int]struct{} {
	now := time.Now()
	self.lock.Lock()
	defer self.lock.Unlock()

	reserved := make(map[int]struct{})
	for rowId, r := range self.rows {
		if r.expired(now) {
			continue
		}
		if r.Requester == requester {
			continue
		}
		reserved[rowId] = struct{}{}
	}
	return reserved
}

// ReservationStats is a monitoring view of the live reservation set.
type ReservationStats struct {
	Total            int
	ActiveRequesters int
	MaxPerRequester  int
}

func (self *ReservationManager) Stats() ReservationStats {
	self.lock.Lock()
	defer self.lock.Unlock()

	stats := ReservationStats{Total: len(self.rows)}
	for _, held := range self.byRequester {
		if len(held) > 0 {
			stats.ActiveRequesters++
		}
		if len(held) > stats.MaxPerRequester {
			stats.MaxPerRequester = len(held)
		}
	}
	return stats
}

func (self *ReservationManager) sweeper() {
	logrus.Infof("started")
	defer logrus.Warn("exited")

	for {
		select {
		case <-time.After(self.profile.SweepInterval):
			self.sweep()
		case <-self.close:
			return
		}
	}
}

// sweep reclaims expired holds. This is the sole mechanism that frees
// abandoned selections, beyond the lazy reaping done inside Reserve and Held.
func (self *ReservationManager) sweep() {
	now := time.Now()
	self.lock.Lock()
	var expired []*Reservation
	for _, r := range self.rows {
		if r.expired(now) {
			expired = append(expired, r)
		}
	}
	for _, r := range expired {
		self.drop(r)
	}
	self.lock.Unlock()

	for _, r := range expired {
		logrus.Infof("expired reservation: row [%d] requester [%s] tag [%s]", r.RowId, r.Requester, r.Tag)
		self.ii.ReservationExpired(r.RowId, r.Requester)
	}
}
