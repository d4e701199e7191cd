package stockpile

import (
	"github.com/sirupsen/logrus"
)

type traceInstrument struct{}

func NewTraceInstrument() Instrument {
	return &traceInstrument{}
}

func (self *traceInstrument) NewInstance(id string) InstrumentInstance {
	return &traceInstrumentInstance{id: id}
}

type traceInstrumentInstance struct {
	id string
}

/*
 * pool
 */
func (self *traceInstrumentInstance) Loaded(key ResourceKey, count int) {
	logrus.Infof("%s: loaded [%d] for [%s]", self.id, count, key)
}

func (self *traceInstrumentInstance) LoadError(key ResourceKey, err error) {
	logrus.Errorf("%s: load error for [%s] (%v)", self.id, key, err)
}

func (self *traceInstrumentInstance) Exhausted(key ResourceKey) {
	logrus.Warnf("%s: [%s] exhausted", self.id, key)
}

func (self *traceInstrumentInstance) Issued(key ResourceKey, count int) {
	logrus.Infof("%s: issued [%d] for [%s]", self.id, count, key)
}

func (self *traceInstrumentInstance) Confirmed(key ResourceKey, disposition string) {
	logrus.Infof("%s: confirmed [%s] for [%s]", self.id, disposition, key)
}

func (self *traceInstrumentInstance) AutoConfirmed(key ResourceKey) {
	logrus.Infof("%s: auto-confirmed for [%s]", self.id, key)
}

func (self *traceInstrumentInstance) UnknownClaim(claimId string) {
	logrus.Warnf("%s: unknown claim [%s]", self.id, claimId)
}

func (self *traceInstrumentInstance) Flushed(key ResourceKey, count int) {
	logrus.Infof("%s: flushed [%d] for [%s]", self.id, count, key)
}

func (self *traceInstrumentInstance) FlushError(key ResourceKey, err error) {
	logrus.Errorf("%s: flush error for [%s] (%v)", self.id, key, err)
}

/*
 * reservations
 */
func (self *traceInstrumentInstance) Reserved(rowId int, requester string) {
	logrus.Infof("%s: reserved row [%d] for [%s]", self.id, rowId, requester)
}

func (self *traceInstrumentInstance) ReserveConflict(rowId int, requester string) {
	logrus.Infof("%s: reserve conflict on row [%d] for [%s]", self.id, rowId, requester)
}

func (self *traceInstrumentInstance) ReservationExpired(rowId int, requester string) {
	logrus.Infof("%s: reservation expired on row [%d] held by [%s]", self.id, rowId, requester)
}

func (self *traceInstrumentInstance) Released(rowId int, requester string) {
	logrus.Infof("%s: released row [%d] held by [%s]", self.id, rowId, requester)
}

/*
 * inventory
 */
func (self *traceInstrumentInstance) InventoryRefreshed(count int) {
	logrus.Infof("%s: inventory refreshed [%d] rows", self.id, count)
}

func (self *traceInstrumentInstance) InventoryHit() {
	logrus.Debugf("%s: inventory cache hit", self.id)
}

func (self *traceInstrumentInstance) Taken(rowId int, requester string) {
	logrus.Infof("%s: row [%d] taken by [%s]", self.id, rowId, requester)
}

func (self *traceInstrumentInstance) TakeFailed(rowId int, requester string) {
	logrus.Warnf("%s: take failed on row [%d] for [%s]", self.id, rowId, requester)
}

/*
 * persistence
 */
func (self *traceInstrumentInstance) SnapshotSaved(items int) {
	logrus.Infof("%s: snapshot saved [%d] items", self.id, items)
}

func (self *traceInstrumentInstance) SnapshotError(err error) {
	logrus.Errorf("%s: snapshot error (%v)", self.id, err)
}

func (self *traceInstrumentInstance) Shutdown() {
	logrus.Infof("%s: shutdown", self.id)
}
