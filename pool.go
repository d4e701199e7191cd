package stockpile

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"
	"github.com/stockpile-io/stockpile/util"
)

// Pool is the consume-and-buffer engine for single-use inventory. Items are
// destructively loaded from the backing store into per-key FIFO queues, handed
// out as claims, and their final disposition is staged in a write-behind
// buffer until the flusher appends it to the ledger.
//
// Contention is scoped per ResourceKey: each key owns one lock serializing
// queue and buffer mutation and a second lock serializing loader invocations.
// Creation of key state is itself serialized by a meta-lock.
type Pool struct {
	profile   *Profile
	store     Store
	snapshots SnapshotStore
	ii        InstrumentInstance

	metaLock sync.Mutex
	keys     map[ResourceKey]*keyState

	claimsLock sync.Mutex
	claims     map[string]*pendingClaim
	waitlist   *claimWaitlist

	stopLock sync.Mutex
	stopped  bool
	close    chan struct{}
}

type keyState struct {
	lock      sync.Mutex
	available *queue.Queue
	buffer    [][]string
	loadLock  sync.Mutex
	loading   bool
}

func (self *keyState) isLoading() bool {
	self.lock.Lock()
	defer self.lock.Unlock()
	return self.loading
}

func (self *keyState) setLoading(loading bool) {
	self.lock.Lock()
	self.loading = loading
	self.lock.Unlock()
}

// NewPool assembles a pool over the given backing store. snapshots may be nil,
// disabling persistence.
func NewPool(profile *Profile, store Store, snapshots SnapshotStore) *Pool {
	p := &Pool{
		profile:   profile,
		store:     store,
		snapshots: snapshots,
		keys:      make(map[ResourceKey]*keyState),
		claims:    make(map[string]*pendingClaim),
		waitlist:  newClaimWaitlist(),
		close:     make(chan struct{}),
	}
	p.ii = InstrumentInstance(&nilInstrumentInstance{})
	if profile.i != nil {
		p.ii = profile.i.NewInstance("pool")
	}
	return p
}

// Start restores any persisted state and launches the flusher, expiry
// supervisor, and snapshot loops. It must complete before requester traffic
// is served.
func (self *Pool) Start() error {
	if self.snapshots != nil {
		state, err := self.snapshots.Load()
		if err != nil {
			return err
		}
		if state != nil {
			restored := self.restore(state)
			logrus.Infof("restored [%d] items (saved %.1f min ago)", restored, time.Since(state.SavedAt).Minutes())
		}
	}
	go self.flusher()
	go self.supervisor()
	if self.snapshots != nil {
		go self.snapshotter()
	}
	return nil
}

// Stop cancels the background loops, then performs a final flush and a final
// snapshot so nothing staged in memory is lost across a restart.
func (self *Pool) Stop() {
	self.stopLock.Lock()
	if self.stopped {
		self.stopLock.Unlock()
		return
	}
	self.stopped = true
	close(self.close)
	self.stopLock.Unlock()

	self.flush()
	self.saveSnapshot()
	self.ii.Shutdown()
	logrus.Infof("pool stopped")
}

func (self *Pool) keyState(key ResourceKey) *keyState {
	self.metaLock.Lock()
	defer self.metaLock.Unlock()
	ks, found := self.keys[key]
	if !found {
		ks = &keyState{available: queue.New()}
		self.keys[key] = ks
	}
	return ks
}

func (self *Pool) keyList() []ResourceKey {
	self.metaLock.Lock()
	defer self.metaLock.Unlock()
	keys := make([]ResourceKey, 0, len(self.keys))
	for key := range self.keys {
		keys = append(keys, key)
	}
	return keys
}

func (self *Pool) availableCount(ks *keyState) int {
	ks.lock.Lock()
	defer ks.lock.Unlock()
	return ks.available.Length()
}

// Issue removes up to quantity items from the available queue for key, in
// FIFO order. A shortfall triggers one synchronous load before claiming; if
// the backing store is exhausted the result is short, never an error. When
// the remainder drops below the low-water mark a background refill is
// scheduled so future callers are less likely to wait.
func (self *Pool) Issue(key ResourceKey, quantity int, ctx IssueContext) []*ClaimHandle {
	ks := self.keyState(key)

	if self.availableCount(ks) < quantity {
		self.load(key, false)
	}

	now := time.Now()
	var handles []*ClaimHandle

	ks.lock.Lock()
	for len(handles) < quantity && ks.available.Length() > 0 {
		item := ks.available.Remove().(*Item)
		handles = append(handles, &ClaimHandle{
			Id:       util.ShortId("clm"),
			Item:     item,
			IssuedAt: now,
			Context:  ctx,
		})
	}
	short := ks.available.Length() < self.profile.LowWaterMark
	ks.lock.Unlock()

	if len(handles) > 0 {
		deadline := now.Add(self.profile.ClaimTimeout)
		self.claimsLock.Lock()
		for _, handle := range handles {
			self.claims[handle.Id] = &pendingClaim{
				Id:       handle.Id,
				Item:     handle.Item,
				Context:  ctx,
				IssuedAt: now,
			}
			self.waitlist.Add(handle.Id, deadline)
		}
		self.claimsLock.Unlock()
		self.ii.Issued(key, len(handles))
	}
	if len(handles) < quantity {
		self.ii.Exhausted(key)
	}
	if short {
		go self.refill(key)
	}
	return handles
}

// Confirm moves the matching open claim into the write-behind buffer with the
// given disposition. It returns false when the claim is unknown: already
// confirmed, expired, or never issued.
func (self *Pool) Confirm(claimId string, disposition string) bool {
	self.claimsLock.Lock()
	cl, found := self.claims[claimId]
	if found {
		delete(self.claims, claimId)
		self.waitlist.Remove(claimId, cl.IssuedAt.Add(self.profile.ClaimTimeout))
	}
	self.claimsLock.Unlock()

	if !found {
		logrus.Warnf("claim [%s] not found", claimId)
		self.ii.UnknownClaim(claimId)
		return false
	}

	row := recordRow(cl, disposition)
	ks := self.keyState(cl.Item.Key)
	ks.lock.Lock()
	ks.buffer = append(ks.buffer, row)
	ks.lock.Unlock()

	self.ii.Confirmed(cl.Item.Key, disposition)
	return true
}

// recordRow formats a confirmed claim as one ledger row: the item payload
// followed by the issue context and the final disposition.
func recordRow(cl *pendingClaim, disposition string) []string {
	row := make([]string, 0, len(cl.Item.Values)+4)
	row = append(row, cl.Item.Values...)
	row = append(row, cl.Context.Requester, cl.Context.Audience, cl.Context.Stage, disposition)
	return row
}

// load refills key from the backing store: one list of up to LoadBatchSize
// rows, one batched delete of those rows, then an append to the available
// queue. The delete is what keeps two loaders (even in different processes)
// from ever seeing the same row. A zero-row result means the store itself is
// exhausted for this key, which is not an error.
func (self *Pool) load(key ResourceKey, force bool) int {
	ks := self.keyState(key)
	if ks.isLoading() {
		return 0
	}

	ks.loadLock.Lock()
	defer ks.loadLock.Unlock()

	if ks.isLoading() {
		return 0
	}
	if !force && self.availableCount(ks) >= self.profile.LoadBatchSize {
		return 0
	}
	ks.setLoading(true)
	defer ks.setLoading(false)

	rows, err := self.store.ListRows(key, self.profile.LoadBatchSize)
	if err != nil {
		logrus.Errorf("error listing rows for [%s] (%v)", key, err)
		self.ii.LoadError(key, err)
		return 0
	}
	if len(rows) == 0 {
		logrus.Infof("nothing available in store for [%s]", key)
		return 0
	}

	rowIds := make([]int, len(rows))
	for i, row := range rows {
		rowIds[i] = row.Id
	}
	if err := self.store.DeleteRows(key, rowIds); err != nil {
		logrus.Errorf("error deleting loaded rows for [%s] (%v)", key, err)
		self.ii.LoadError(key, err)
		return 0
	}

	ks.lock.Lock()
	for _, row := range rows {
		ks.available.Add(&Item{Key: key, RowId: row.Id, Values: row.Values})
	}
	available := ks.available.Length()
	ks.lock.Unlock()

	logrus.Infof("loaded [%d] items for [%s], available [%d]", len(rows), key, available)
	self.ii.Loaded(key, len(rows))
	return len(rows)
}

// refill runs in the background after a short issue. A pool that has been
// stopped must not touch the backing store again.
func (self *Pool) refill(key ResourceKey) {
	select {
	case <-self.close:
		return
	default:
	}
	self.load(key, false)
}

// Preload tops up every given key found below the low-water mark, in
// parallel, and returns the total number of items loaded. Called once at
// startup after snapshot restore.
func (self *Pool) Preload(keys ...ResourceKey) int {
	var total int64
	wg := new(sync.WaitGroup)
	for _, key := range keys {
		ks := self.keyState(key)
		if self.availableCount(ks) >= self.profile.LowWaterMark {
			continue
		}
		wg.Add(1)
		go func(key ResourceKey) {
			defer wg.Done()
			atomic.AddInt64(&total, int64(self.load(key, false)))
		}(key)
	}
	wg.Wait()
	if total > 0 {
		logrus.Infof("preload complete, [%d] items loaded", total)
	}
	return int(total)
}

// Stats returns point-in-time counts for key's three sub-states.
func (self *Pool) Stats(key ResourceKey) PoolStats {
	ks := self.keyState(key)

	ks.lock.Lock()
	stats := PoolStats{Available: ks.available.Length(), Buffered: len(ks.buffer)}
	ks.lock.Unlock()

	self.claimsLock.Lock()
	for _, cl := range self.claims {
		if cl.Item.Key == key {
			stats.Pending++
		}
	}
	self.claimsLock.Unlock()
	return stats
}

func (self *Pool) AllStats() map[ResourceKey]PoolStats {
	stats := make(map[ResourceKey]PoolStats)
	for _, key := range self.keyList() {
		stats[key] = self.Stats(key)
	}
	return stats
}

// Clear purges the selected sub-states for key (or every key when key is
// empty) and immediately snapshots so the purge survives a restart.
func (self *Pool) Clear(key ResourceKey, scope ClearScope) ClearCounts {
	var cleared ClearCounts
	keys := []ResourceKey{key}
	if key == "" {
		keys = self.keyList()
	}

	if scope == ScopeAvailable || scope == ScopeAll {
		for _, k := range keys {
			ks := self.keyState(k)
			ks.lock.Lock()
			cleared.Available += ks.available.Length()
			ks.available = queue.New()
			ks.lock.Unlock()
		}
	}

	if scope == ScopePending || scope == ScopeAll {
		self.claimsLock.Lock()
		for id, cl := range self.claims {
			if key != "" && cl.Item.Key != key {
				continue
			}
			delete(self.claims, id)
			self.waitlist.Remove(id, cl.IssuedAt.Add(self.profile.ClaimTimeout))
			cleared.Pending++
		}
		self.claimsLock.Unlock()
	}

	if scope == ScopeBuffered || scope == ScopeAll {
		for _, k := range keys {
			ks := self.keyState(k)
			ks.lock.Lock()
			cleared.Buffered += len(ks.buffer)
			ks.buffer = nil
			ks.lock.Unlock()
		}
	}

	self.saveSnapshot()
	logrus.Infof("cleared key [%s] scope [%s]: %+v", key, scope, cleared)
	return cleared
}
