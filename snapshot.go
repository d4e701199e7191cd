package stockpile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// PoolState is the serializable triple of a pool's in-memory sub-states:
// available items, open claims, and buffered ledger rows.
type PoolState struct {
	SavedAt   time.Time                  `json:"saved_at"`
	Available map[ResourceKey][]*Item    `json:"available"`
	Pending   map[string]*pendingClaim   `json:"pending"`
	Buffered  map[ResourceKey][][]string `json:"buffered"`
}

func (self *PoolState) itemCount() int {
	count := len(self.Pending)
	for _, items := range self.Available {
		count += len(items)
	}
	for _, rows := range self.Buffered {
		count += len(rows)
	}
	return count
}

// SnapshotStore persists PoolState across process restarts. Save must replace
// atomically; Load returns (nil, nil) when no snapshot exists yet.
type SnapshotStore interface {
	Save(state *PoolState) error
	Load() (*PoolState, error)
}

func (self *Pool) snapshotter() {
	logrus.Infof("started")
	defer logrus.Warn("exited")

	for {
		select {
		case <-time.After(self.profile.SnapshotInterval):
			self.saveSnapshot()
		case <-self.close:
			return
		}
	}
}

func (self *Pool) saveSnapshot() {
	if self.snapshots == nil {
		return
	}
	state := self.state()
	if err := self.snapshots.Save(state); err != nil {
		logrus.Errorf("error saving snapshot (%v)", err)
		self.ii.SnapshotError(err)
		return
	}
	self.ii.SnapshotSaved(state.itemCount())
	logrus.Debugf("snapshot saved, [%d] items", state.itemCount())
}

func (self *Pool) state() *PoolState {
	state := &PoolState{
		SavedAt:   time.Now(),
		Available: make(map[ResourceKey][]*Item),
		Pending:   make(map[string]*pendingClaim),
		Buffered:  make(map[ResourceKey][][]string),
	}

	for _, key := range self.keyList() {
		ks := self.keyState(key)
		ks.lock.Lock()
		for i := 0; i < ks.available.Length(); i++ {
			state.Available[key] = append(state.Available[key], ks.available.Get(i).(*Item))
		}
		if len(ks.buffer) > 0 {
			buffered := make([][]string, len(ks.buffer))
			copy(buffered, ks.buffer)
			state.Buffered[key] = buffered
		}
		ks.lock.Unlock()
	}

	self.claimsLock.Lock()
	for id, cl := range self.claims {
		state.Pending[id] = cl
	}
	self.claimsLock.Unlock()

	return state
}

// restore rebuilds the in-memory sub-states from a persisted snapshot.
// Restored claims keep their original issue time, so anything that expired
// while the process was down is reaped on the supervisor's first tick.
func (self *Pool) restore(state *PoolState) int {
	for key, items := range state.Available {
		ks := self.keyState(key)
		ks.lock.Lock()
		for _, item := range items {
			ks.available.Add(item)
		}
		ks.lock.Unlock()
	}

	for key, rows := range state.Buffered {
		ks := self.keyState(key)
		ks.lock.Lock()
		ks.buffer = append(ks.buffer, rows...)
		ks.lock.Unlock()
	}

	self.claimsLock.Lock()
	for id, cl := range state.Pending {
		self.claims[id] = cl
		self.waitlist.Add(id, cl.IssuedAt.Add(self.profile.ClaimTimeout))
	}
	self.claimsLock.Unlock()

	return state.itemCount()
}

// FileSnapshotStore keeps the snapshot as a single JSON file, replaced by
// temp-file rename so a crash mid-save never corrupts the previous state.
type FileSnapshotStore struct {
	path string
}

func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

func (self *FileSnapshotStore) Save(state *PoolState) error {
	if err := os.MkdirAll(filepath.Dir(self.path), os.ModePerm); err != nil {
		return errors.Wrap(err, "mkdir")
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal")
	}
	tmp, err := os.CreateTemp(filepath.Dir(self.path), ".snapshot-")
	if err != nil {
		return errors.Wrap(err, "create temp")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "write")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "close")
	}
	if err := os.Rename(tmp.Name(), self.path); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "rename")
	}
	return nil
}

func (self *FileSnapshotStore) Load() (*PoolState, error) {
	data, err := os.ReadFile(self.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read")
	}
	state := &PoolState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, errors.Wrapf(err, "unmarshal [%s]", self.path)
	}
	return state, nil
}

var _ SnapshotStore = (*FileSnapshotStore)(nil)
