package stockpile

type nilInstrument struct{}

func NewNilInstrument() Instrument {
	return &nilInstrument{}
}

func (self *nilInstrument) NewInstance(_ string) InstrumentInstance {
	return &nilInstrumentInstance{}
}

type nilInstrumentInstance struct{}

/*
 * pool
 */
func (self *nilInstrumentInstance) Loaded(ResourceKey, int)       {}
func (self *nilInstrumentInstance) LoadError(ResourceKey, error)  {}
func (self *nilInstrumentInstance) Exhausted(ResourceKey)         {}
func (self *nilInstrumentInstance) Issued(ResourceKey, int)       {}
func (self *nilInstrumentInstance) Confirmed(ResourceKey, string) {}
func (self *nilInstrumentInstance) AutoConfirmed(ResourceKey)     {}
func (self *nilInstrumentInstance) UnknownClaim(string)           {}
func (self *nilInstrumentInstance) Flushed(ResourceKey, int)      {}
func (self *nilInstrumentInstance) FlushError(ResourceKey, error) {}

/*
 * reservations
 */
func (self *nilInstrumentInstance) Reserved(int, string)           {}
func (self *nilInstrumentInstance) ReserveConflict(int, string)    {}
func (self *nilInstrumentInstance) ReservationExpired(int, string) {}
func (self *nilInstrumentInstance) Released(int, string)           {}

/*
 * inventory
 */
func (self *nilInstrumentInstance) InventoryRefreshed(int)  {}
func (self *nilInstrumentInstance) InventoryHit()           {}
func (self *nilInstrumentInstance) Taken(int, string)       {}
func (self *nilInstrumentInstance) TakeFailed(int, string)  {}

/*
 * persistence
 */
func (self *nilInstrumentInstance) SnapshotSaved(int)   {}
func (self *nilInstrumentInstance) SnapshotError(error) {}

func (self *nilInstrumentInstance) Shutdown() {}
