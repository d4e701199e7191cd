package demo

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	engine "github.com/stockpile-io/stockpile"
	"github.com/stockpile-io/stockpile/cmd/stockpile/stockpile"
	"github.com/stockpile-io/stockpile/util"
)

func init() {
	demoCmd.Flags().IntVar(&requesters, "requesters", 8, "Concurrent simulated requesters")
	demoCmd.Flags().IntVar(&rounds, "rounds", 10, "Issue/confirm rounds per requester")
	demoCmd.Flags().IntVar(&quantity, "quantity", 3, "Items per issue")
	demoCmd.Flags().IntVar(&seeded, "seeded", 200, "Rows seeded per key")
	demoCmd.Flags().Float64Var(&rps, "rps", 50, "Backing store rate limit (calls/sec)")
	demoCmd.Flags().StringVar(&snapshotSpec, "snapshot", "", "Snapshot store (file path, or redis://addr)")
	demoCmd.Flags().StringVar(&ctrlPath, "ctrl", "", "Ctrl socket directory")
	stockpile.RootCmd.AddCommand(demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Exercise the engine against an in-memory backing store",
	Run:   demo,
}
var requesters int
var rounds int
var quantity int
var seeded int
var rps float64
var snapshotSpec string
var ctrlPath string

var poolKeys = []engine.ResourceKey{"accounts_a", "accounts_b"}

const inventoryKey = engine.ResourceKey("proxies")
const tagColumn = 2

func demo(_ *cobra.Command, _ []string) {
	profile, err := stockpile.LoadProfile()
	if err != nil {
		logrus.Fatalf("error loading profile (%v)", err)
	}

	mem := engine.NewMemoryStore()
	for _, key := range poolKeys {
		for i := 0; i < seeded; i++ {
			mem.Seed(key, fmt.Sprintf("login_%s_%d", key, i), fmt.Sprintf("password_%d", i))
		}
	}
	for i := 0; i < seeded; i++ {
		// endpoint, remaining days, used-for tags
		mem.Seed(inventoryKey, fmt.Sprintf("10.0.%d.%d:3128", i/256, i%256), strconv.Itoa(rand.Intn(30)), "")
	}
	store := engine.NewRatedStore(mem, rps, int(rps))

	pool := engine.NewPool(profile, store, snapshotStore(snapshotSpec))
	if err := pool.Start(); err != nil {
		logrus.Fatalf("error starting pool (%v)", err)
	}
	pool.Preload(poolKeys...)

	reservations := engine.NewReservationManager(profile)
	reservations.Start()

	inventory := engine.NewInventory(profile, store, reservations, inventoryKey, tagColumn,
		engine.WithOrdering(func(a, b engine.Row) bool {
			ad, _ := strconv.Atoi(a.Values[1])
			bd, _ := strconv.Atoi(b.Values[1])
			return ad > bd
		}))

	if ctrlPath != "" {
		startCtrl(pool)
	}

	wg := new(sync.WaitGroup)
	for r := 0; r < requesters; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			requester := fmt.Sprintf("requester_%d", r)
			for round := 0; round < rounds; round++ {
				issueRound(pool, requester)
				browseRound(inventory, reservations, requester)
			}
		}(r)
	}
	wg.Wait()

	for key, stats := range pool.AllStats() {
		logrus.Infof("[%s] available [%d] pending [%d] buffered [%d]", key, stats.Available, stats.Pending, stats.Buffered)
	}
	rstats := reservations.Stats()
	logrus.Infof("reservations: total [%d] requesters [%d] max [%d]", rstats.Total, rstats.ActiveRequesters, rstats.MaxPerRequester)

	reservations.Stop()
	pool.Stop()
}

func issueRound(pool *engine.Pool, requester string) {
	key := poolKeys[rand.Intn(len(poolKeys))]
	handles := pool.Issue(key, quantity, engine.IssueContext{Requester: requester, Audience: "demo"})
	for _, handle := range handles {
		// leave an occasional claim unconfirmed for the expiry supervisor
		if rand.Intn(10) == 0 {
			continue
		}
		disposition := "accepted"
		if rand.Intn(5) == 0 {
			disposition = "defective"
		}
		pool.Confirm(handle.Id, disposition)
	}
}

func browseRound(inventory *engine.Inventory, reservations *engine.ReservationManager, requester string) {
	available, err := inventory.Available("demo", requester)
	if err != nil {
		logrus.Errorf("error listing inventory (%v)", err)
		return
	}
	if len(available) == 0 {
		return
	}

	var picked []int
	for i := 0; i < 2 && i < len(available); i++ {
		row := available[rand.Intn(len(available))]
		if reservations.Reserve(row.Id, requester, "demo", 0) {
			picked = append(picked, row.Id)
		}
	}
	if len(picked) == 0 {
		return
	}
	if rand.Intn(4) == 0 {
		reservations.CancelAll(requester)
		return
	}
	taken, failed, err := inventory.TakeBatch(picked, requester, "demo")
	if err != nil {
		logrus.Errorf("error taking rows (%v)", err)
		return
	}
	logrus.Debugf("[%s] took [%d] failed [%d]", requester, len(taken), len(failed))
}

func snapshotStore(spec string) engine.SnapshotStore {
	if spec == "" {
		return nil
	}
	if strings.HasPrefix(spec, "redis://") {
		rdb := redis.NewClient(&redis.Options{Addr: strings.TrimPrefix(spec, "redis://")})
		return engine.NewRedisSnapshotStore(rdb, engine.WithSnapshotTTL(24*time.Hour))
	}
	return engine.NewFileSnapshotStore(spec)
}

func startCtrl(pool *engine.Pool) {
	cl, err := util.GetCtrlListener(ctrlPath, "stockpile")
	if err != nil {
		logrus.Fatalf("error getting ctrl listener (%v)", err)
	}
	cl.AddCallback("stats", func(string) error {
		for key, stats := range pool.AllStats() {
			logrus.Infof("[%s] available [%d] pending [%d] buffered [%d]", key, stats.Available, stats.Pending, stats.Buffered)
		}
		return nil
	})
	cl.AddCallback("clear", func(line string) error {
		cleared := pool.Clear("", engine.ScopeAll)
		logrus.Infof("cleared %+v", cleared)
		return nil
	})
	cl.Start()
}
