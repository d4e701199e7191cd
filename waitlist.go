package stockpile

import (
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// claimWaitlist orders open claim ids by expiry deadline so the supervisor
// can pop everything due without scanning the whole pending set. Not safe for
// concurrent use; callers hold the pool's claims lock.
type claimWaitlist struct {
	deadlines *treemap.Map
}

func newClaimWaitlist() *claimWaitlist {
	return &claimWaitlist{
		deadlines: treemap.NewWith(utils.Int64Comparator),
	}
}

func (self *claimWaitlist) Add(claimId string, deadline time.Time) {
	key := deadline.UnixNano()
	var ids []string
	if v, found := self.deadlines.Get(key); found {
		ids = v.([]string)
	}
	self.deadlines.Put(key, append(ids, claimId))
}

func (self *claimWaitlist) Remove(claimId string, deadline time.Time) {
	key := deadline.UnixNano()
	v, found := self.deadlines.Get(key)
	if !found {
		return
	}
	ids := v.([]string)
	for i := range ids {
		if ids[i] == claimId {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		self.deadlines.Remove(key)
	} else {
		self.deadlines.Put(key, ids)
	}
}

// Due removes and returns every claim id whose deadline is at or before now.
func (self *claimWaitlist) Due(now time.Time) []string {
	cutoff := now.UnixNano()
	var due []string
	for {
		k, v := self.deadlines.Min()
		if k == nil || k.(int64) > cutoff {
			return due
		}
		due = append(due, v.([]string)...)
		self.deadlines.Remove(k)
	}
}

func (self *claimWaitlist) Size() int {
	size := 0
	it := self.deadlines.Iterator()
	for it.Next() {
		size += len(it.Value().([]string))
	}
	return size
}
