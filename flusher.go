package stockpile

import (
	"time"

	"github.com/sirupsen/logrus"
)

func (self *Pool) flusher() {
	logrus.Infof("started")
	defer logrus.Warn("exited")

	for {
		select {
		case <-time.After(self.profile.FlushInterval):
			self.flush()
		case <-self.close:
			return
		}
	}
}

// flush appends each key's staged records to the ledger in one batched write.
// The buffer is swapped out before the write so confirms arriving mid-flush
// are never lost; a failed batch is merged back for the next attempt, which
// makes delivery at-least-once.
func (self *Pool) flush() {
	for _, key := range self.keyList() {
		ks := self.keyState(key)

		ks.lock.Lock()
		if len(ks.buffer) == 0 {
			ks.lock.Unlock()
			continue
		}
		batch := ks.buffer
		ks.buffer = nil
		ks.lock.Unlock()

		if err := self.store.AppendRows(self.profile.ledger(key), batch); err != nil {
			logrus.Errorf("error flushing [%d] records for [%s] (%v)", len(batch), key, err)
			self.ii.FlushError(key, err)

			ks.lock.Lock()
			ks.buffer = append(ks.buffer, batch...)
			ks.lock.Unlock()
			continue
		}

		logrus.Infof("flushed [%d] records for [%s]", len(batch), key)
		self.ii.Flushed(key, len(batch))
	}
}
