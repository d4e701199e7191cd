package stockpile

import (
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

const proxiesKey = ResourceKey("proxies")

func seedProxies(mem *MemoryStore, n int) {
	for i := 0; i < n; i++ {
		mem.Seed(proxiesKey, "endpoint_"+strconv.Itoa(i), strconv.Itoa(30-i), "")
	}
}

func newTestInventory(p *Profile, store Store, opts ...InventoryOption) (*Inventory, *ReservationManager) {
	reservations := NewReservationManager(p)
	return NewInventory(p, store, reservations, proxiesKey, 2, opts...), reservations
}

func TestInventoryCacheHit(t *testing.T) {
	mem := NewMemoryStore()
	seedProxies(mem, 4)
	inv, _ := newTestInventory(testProfile(), mem)

	first, err := inv.All(false)
	assert.NoError(t, err)
	assert.Equal(t, 4, len(first))

	second, err := inv.All(false)
	assert.NoError(t, err)
	assert.Equal(t, 4, len(second))
	assert.Equal(t, 1, mem.Calls("list"))

	_, err = inv.All(true)
	assert.NoError(t, err)
	assert.Equal(t, 2, mem.Calls("list"))
}

func TestInventoryCallerCannotCorruptCache(t *testing.T) {
	mem := NewMemoryStore()
	mem.Seed(proxiesKey, "endpoint_0", "30", "")
	inv, _ := newTestInventory(testProfile(), mem)

	first, err := inv.All(false)
	assert.NoError(t, err)
	first[0].Values[0] = "mangled"

	second, err := inv.All(false)
	assert.NoError(t, err)
	assert.Equal(t, "endpoint_0", second[0].Values[0])
	assert.Equal(t, 1, mem.Calls("list"))
}

func TestInventoryExpiredCacheRefreshes(t *testing.T) {
	p := testProfile()
	p.InventoryTTL = time.Millisecond
	mem := NewMemoryStore()
	seedProxies(mem, 2)
	inv, _ := newTestInventory(p, mem)

	_, err := inv.All(false)
	assert.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = inv.All(false)
	assert.NoError(t, err)
	assert.Equal(t, 2, mem.Calls("list"))
}

func TestInventoryInvalidate(t *testing.T) {
	mem := NewMemoryStore()
	seedProxies(mem, 2)
	inv, _ := newTestInventory(testProfile(), mem)

	_, err := inv.All(false)
	assert.NoError(t, err)
	inv.Invalidate()
	_, err = inv.All(false)
	assert.NoError(t, err)
	assert.Equal(t, 2, mem.Calls("list"))
}

func TestAvailableFiltersTagsAndReservations(t *testing.T) {
	mem := NewMemoryStore()
	tagged := mem.Seed(proxiesKey, "endpoint_0", "30", "order_1,order_2")
	free := mem.Seed(proxiesKey, "endpoint_1", "20", "order_2")
	held := mem.Seed(proxiesKey, "endpoint_2", "10", "")
	inv, reservations := newTestInventory(testProfile(), mem)

	assert.True(t, reservations.Reserve(held, "bob", "order_9", 0))

	available, err := inv.Available("ORDER_1", "alice")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(available))
	assert.Equal(t, free, available[0].Id)
	assert.NotEqual(t, tagged, available[0].Id)

	// bob's own hold does not mask the row from bob
	available, err = inv.Available("order_1", "bob")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(available))
}

func TestAvailableOrdering(t *testing.T) {
	mem := NewMemoryStore()
	mem.Seed(proxiesKey, "endpoint_0", "5", "")
	mem.Seed(proxiesKey, "endpoint_1", "30", "")
	mem.Seed(proxiesKey, "endpoint_2", "15", "")
	byDaysDesc := func(a, b Row) bool {
		ad, _ := strconv.Atoi(a.Values[1])
		bd, _ := strconv.Atoi(b.Values[1])
		return ad > bd
	}
	inv, _ := newTestInventory(testProfile(), mem, WithOrdering(byDaysDesc))

	available, err := inv.Available("order_1", "alice")
	assert.NoError(t, err)
	assert.Equal(t, []string{"30", "15", "5"}, []string{
		available[0].Values[1], available[1].Values[1], available[2].Values[1],
	})
}

func TestForRequester(t *testing.T) {
	mem := NewMemoryStore()
	seedProxies(mem, 3)
	inv, reservations := newTestInventory(testProfile(), mem)

	assert.True(t, reservations.Reserve(1, "alice", "order_1", 0))
	assert.True(t, reservations.Reserve(2, "bob", "order_2", 0))

	available, held, err := inv.ForRequester("order_1", "alice")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(available))
	assert.Equal(t, map[int]struct{}{1: {}}, held)
}

func TestTakeBatchSingleReadSingleWrite(t *testing.T) {
	mem := NewMemoryStore()
	seedProxies(mem, 8)
	inv, reservations := newTestInventory(testProfile(), mem)

	granted := reservations.ReserveBatch([]int{1, 2, 3, 4, 5}, "alice", "order_1")
	assert.Equal(t, 5, len(granted))

	taken, failed, err := inv.TakeBatch(granted, "alice", "order_1")
	assert.NoError(t, err)
	assert.Equal(t, 5, len(taken))
	assert.Empty(t, failed)
	assert.Equal(t, 1, mem.Calls("list"))
	assert.Equal(t, 1, mem.Calls("batch_update"))

	for _, row := range taken {
		assert.Equal(t, "order_1", row.Values[2])
	}
	rows, err := mem.ListRows(proxiesKey, 0)
	assert.NoError(t, err)
	assert.Equal(t, "order_1", rows[0].Values[2])

	// holds are confirmed away once the write lands
	assert.Empty(t, reservations.Held("alice"))
}

func TestTakeBatchReportsFailures(t *testing.T) {
	mem := NewMemoryStore()
	mem.Seed(proxiesKey, "endpoint_0", "30", "order_1")
	free := mem.Seed(proxiesKey, "endpoint_1", "20", "")
	held := mem.Seed(proxiesKey, "endpoint_2", "10", "")
	inv, reservations := newTestInventory(testProfile(), mem)

	assert.True(t, reservations.Reserve(held, "bob", "order_9", 0))

	taken, failed, err := inv.TakeBatch([]int{1, free, held, 99}, "alice", "order_1")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(taken))
	assert.Equal(t, free, taken[0].Id)
	assert.Equal(t, []int{1, held, 99}, failed)

	// bob's hold survives a take attempt by someone else
	assert.Equal(t, []int{held}, reservations.Held("bob"))
}

func TestTakeAppendsToExistingTags(t *testing.T) {
	mem := NewMemoryStore()
	rowId := mem.Seed(proxiesKey, "endpoint_0", "30", "order_1")
	inv, _ := newTestInventory(testProfile(), mem)

	row, err := inv.Take(rowId, "alice", "Order_2")
	assert.NoError(t, err)
	assert.NotNil(t, row)
	assert.Equal(t, "order_1,order_2", row.Values[2])
}

func TestTakeMissingRowReturnsNil(t *testing.T) {
	mem := NewMemoryStore()
	inv, _ := newTestInventory(testProfile(), mem)

	row, err := inv.Take(99, "alice", "order_1")
	assert.NoError(t, err)
	assert.Nil(t, row)
	assert.Equal(t, 0, mem.Calls("batch_update"))
}

type failingUpdateStore struct {
	*MemoryStore
}

func (self *failingUpdateStore) BatchUpdateCells(_ ResourceKey, _ []CellUpdate) error {
	return errors.New("write failed")
}

func TestTakeBatchWriteFailureKeepsReservations(t *testing.T) {
	mem := NewMemoryStore()
	seedProxies(mem, 3)
	inv, reservations := newTestInventory(testProfile(), &failingUpdateStore{mem})

	granted := reservations.ReserveBatch([]int{1, 2}, "alice", "order_1")
	assert.Equal(t, 2, len(granted))

	taken, failed, err := inv.TakeBatch(granted, "alice", "order_1")
	assert.Error(t, err)
	assert.Empty(t, taken)
	assert.Empty(t, failed)
	assert.ElementsMatch(t, []int{1, 2}, reservations.Held("alice"))
}

func TestTakeBatchEmpty(t *testing.T) {
	mem := NewMemoryStore()
	inv, _ := newTestInventory(testProfile(), mem)

	taken, failed, err := inv.TakeBatch(nil, "alice", "order_1")
	assert.NoError(t, err)
	assert.Empty(t, taken)
	assert.Empty(t, failed)
	assert.Equal(t, 0, mem.Calls("list"))
}

func TestSplitTags(t *testing.T) {
	assert.Nil(t, splitTags(""))
	assert.Equal(t, []string{"a", "b"}, splitTags(" a , b ,"))
	assert.Equal(t, "order_1", appendTag("", "Order_1"))
	assert.Equal(t, "a,b", appendTag("a", "B"))
}
