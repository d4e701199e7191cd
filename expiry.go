package stockpile

import (
	"time"

	"github.com/sirupsen/logrus"
)

func (self *Pool) supervisor() {
	logrus.Infof("started")
	defer logrus.Warn("exited")

	for {
		select {
		case <-time.After(self.profile.ExpiryInterval):
			self.expire()
		case <-self.close:
			return
		}
	}
}

// expire auto-confirms every claim older than the claim timeout with the
// profile's default disposition. Operator silence is treated as acceptance
// rather than leaking the item forever.
func (self *Pool) expire() {
	self.claimsLock.Lock()
	due := self.waitlist.Due(time.Now())
	keys := make(map[string]ResourceKey, len(due))
	for _, claimId := range due {
		if cl, found := self.claims[claimId]; found {
			keys[claimId] = cl.Item.Key
		}
	}
	self.claimsLock.Unlock()

	for _, claimId := range due {
		logrus.Infof("auto-confirming expired claim [%s]", claimId)
		if self.Confirm(claimId, self.profile.DefaultDisposition) {
			self.ii.AutoConfirmed(keys[claimId])
		}
	}
}
