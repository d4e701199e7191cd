package stockpile

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stockpile-io/stockpile/cf"
	"github.com/stockpile-io/stockpile/util"
)

type metricsInstrument struct {
	lock      sync.Mutex
	config    *metricsInstrumentConfig
	instances []*metricsInstrumentInstance
}

type metricsInstrumentConfig struct {
	Path       string `cf:"path"`
	SnapshotMs int    `cf:"snapshot_ms"`
}

func NewMetricsInstrument(config map[string]interface{}) (Instrument, error) {
	i := &metricsInstrument{
		config: &metricsInstrumentConfig{
			SnapshotMs: 1000,
		},
	}
	if err := cf.Load(config, i.config); err != nil {
		return nil, errors.Wrap(err, "unable to load config")
	}
	if i.config.Path == "" {
		return nil, errors.New("missing 'path'")
	}
	logrus.Infof(cf.Dump("config", i.config))
	return i, nil
}

func (self *metricsInstrument) NewInstance(id string) InstrumentInstance {
	self.lock.Lock()
	defer self.lock.Unlock()
	ii := &metricsInstrumentInstance{id: id, i: self, close: make(chan struct{})}
	go ii.snapshotter(self.config.SnapshotMs)
	self.instances = append(self.instances, ii)
	return ii
}

// WriteAllSamples flushes every instance's accumulated samples to per-instance
// directories under the configured path.
func (self *metricsInstrument) WriteAllSamples() error {
	self.lock.Lock()
	defer self.lock.Unlock()

	for _, ii := range self.instances {
		if err := os.MkdirAll(self.config.Path, os.ModePerm); err != nil {
			return err
		}
		prefix := strings.ReplaceAll(fmt.Sprintf("%s_", ii.id), ":", "-")
		outPath, err := os.MkdirTemp(self.config.Path, prefix)
		if err != nil {
			return err
		}
		logrus.Infof("writing metrics to: %s", outPath)

		if err := util.WriteMetricsId(fmt.Sprintf("stockpile.%s", ii.id), outPath, nil); err != nil {
			return err
		}
		ii.lock.Lock()
		for name, samples := range ii.samples {
			if err := util.WriteSamples(name, outPath, samples); err != nil {
				ii.lock.Unlock()
				return err
			}
		}
		ii.lock.Unlock()
	}
	return nil
}

type metricsInstrumentInstance struct {
	id    string
	i     *metricsInstrument
	close chan struct{}

	loads          int64
	loadErrors     int64
	exhaustions    int64
	issued         int64
	confirmed      int64
	autoConfirmed  int64
	unknownClaims  int64
	flushed        int64
	flushErrors    int64
	reserved       int64
	conflicts      int64
	expirations    int64
	released       int64
	refreshes      int64
	hits           int64
	taken          int64
	takeFailures   int64
	snapshots      int64
	snapshotErrors int64

	lock    sync.Mutex
	samples map[string][]*util.Sample
}

func (self *metricsInstrumentInstance) snapshotter(ms int) {
	logrus.Infof("started for [%s]", self.id)
	defer logrus.Warnf("exited for [%s]", self.id)

	for {
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			self.snapshot()
		case <-self.close:
			self.snapshot()
			return
		}
	}
}

func (self *metricsInstrumentInstance) snapshot() {
	now := time.Now()
	self.lock.Lock()
	defer self.lock.Unlock()
	if self.samples == nil {
		self.samples = make(map[string][]*util.Sample)
	}
	for name, v := range map[string]*int64{
		"loads":           &self.loads,
		"load_errors":     &self.loadErrors,
		"exhaustions":     &self.exhaustions,
		"issued":          &self.issued,
		"confirmed":       &self.confirmed,
		"auto_confirmed":  &self.autoConfirmed,
		"unknown_claims":  &self.unknownClaims,
		"flushed":         &self.flushed,
		"flush_errors":    &self.flushErrors,
		"reserved":        &self.reserved,
		"conflicts":       &self.conflicts,
		"expirations":     &self.expirations,
		"released":        &self.released,
		"inv_refreshes":   &self.refreshes,
		"inv_hits":        &self.hits,
		"taken":           &self.taken,
		"take_failures":   &self.takeFailures,
		"snapshots":       &self.snapshots,
		"snapshot_errors": &self.snapshotErrors,
	} {
		self.samples[name] = append(self.samples[name], &util.Sample{Ts: now, V: atomic.LoadInt64(v)})
	}
}

/*
 * pool
 */
func (self *metricsInstrumentInstance) Loaded(_ ResourceKey, count int) {
	atomic.AddInt64(&self.loads, int64(count))
}

func (self *metricsInstrumentInstance) LoadError(_ ResourceKey, _ error) {
	atomic.AddInt64(&self.loadErrors, 1)
}

func (self *metricsInstrumentInstance) Exhausted(_ ResourceKey) {
	atomic.AddInt64(&self.exhaustions, 1)
}

func (self *metricsInstrumentInstance) Issued(_ ResourceKey, count int) {
	atomic.AddInt64(&self.issued, int64(count))
}

func (self *metricsInstrumentInstance) Confirmed(_ ResourceKey, _ string) {
	atomic.AddInt64(&self.confirmed, 1)
}

func (self *metricsInstrumentInstance) AutoConfirmed(_ ResourceKey) {
	atomic.AddInt64(&self.autoConfirmed, 1)
}

func (self *metricsInstrumentInstance) UnknownClaim(_ string) {
	atomic.AddInt64(&self.unknownClaims, 1)
}

func (self *metricsInstrumentInstance) Flushed(_ ResourceKey, count int) {
	atomic.AddInt64(&self.flushed, int64(count))
}

func (self *metricsInstrumentInstance) FlushError(_ ResourceKey, _ error) {
	atomic.AddInt64(&self.flushErrors, 1)
}

/*
 * reservations
 */
func (self *metricsInstrumentInstance) Reserved(_ int, _ string) {
	atomic.AddInt64(&self.reserved, 1)
}

func (self *metricsInstrumentInstance) ReserveConflict(_ int, _ string) {
	atomic.AddInt64(&self.conflicts, 1)
}

func (self *metricsInstrumentInstance) ReservationExpired(_ int, _ string) {
	atomic.AddInt64(&self.expirations, 1)
}

func (self *metricsInstrumentInstance) Released(_ int, _ string) {
	atomic.AddInt64(&self.released, 1)
}

/*
 * inventory
 */
func (self *metricsInstrumentInstance) InventoryRefreshed(_ int) {
	atomic.AddInt64(&self.refreshes, 1)
}

func (self *metricsInstrumentInstance) InventoryHit() {
	atomic.AddInt64(&self.hits, 1)
}

func (self *metricsInstrumentInstance) Taken(_ int, _ string) {
	atomic.AddInt64(&self.taken, 1)
}

func (self *metricsInstrumentInstance) TakeFailed(_ int, _ string) {
	atomic.AddInt64(&self.takeFailures, 1)
}

/*
 * persistence
 */
func (self *metricsInstrumentInstance) SnapshotSaved(_ int) {
	atomic.AddInt64(&self.snapshots, 1)
}

func (self *metricsInstrumentInstance) SnapshotError(_ error) {
	atomic.AddInt64(&self.snapshotErrors, 1)
}

func (self *metricsInstrumentInstance) Shutdown() {
	close(self.close)
	if err := self.i.WriteAllSamples(); err != nil {
		logrus.Errorf("error writing samples (%v)", err)
	}
}
