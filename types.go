package stockpile

import "time"

// ResourceKey identifies a homogeneous sub-pool of inventory items. Keys are
// derived deterministically from request parameters by the caller and used as
// map keys throughout the engine.
type ResourceKey string

// Row is a single inventory row as seen by the backing store, addressed by a
// stable row id so it can be mutated or deleted later.
type Row struct {
	Id     int      `json:"id"`
	Values []string `json:"values"`
}

// Item is an inventory unit loaded into memory, carrying its origin row so a
// later durable record can reference it.
type Item struct {
	Key    ResourceKey `json:"key"`
	RowId  int         `json:"row_id"`
	Values []string    `json:"values"`
}

// IssueContext carries requester-supplied context recorded alongside a claim
// and written to the ledger with its final disposition.
type IssueContext struct {
	Requester string `json:"requester"`
	Audience  string `json:"audience"`
	Stage     string `json:"stage"`
}

// ClaimHandle is returned by Pool.Issue. The id is the sole token needed to
// confirm the claim later.
type ClaimHandle struct {
	Id       string
	Item     *Item
	IssuedAt time.Time
	Context  IssueContext
}

type pendingClaim struct {
	Id       string       `json:"id"`
	Item     *Item        `json:"item"`
	Context  IssueContext `json:"context"`
	IssuedAt time.Time    `json:"issued_at"`
}

// PoolStats is a point-in-time view of one key's sub-states.
type PoolStats struct {
	Available int
	Pending   int
	Buffered  int
}

// ClearScope selects which sub-states an administrative Clear purges.
type ClearScope string

const (
	ScopeAvailable ClearScope = "available"
	ScopePending   ClearScope = "pending"
	ScopeBuffered  ClearScope = "buffered"
	ScopeAll       ClearScope = "all"
)

// ClearCounts reports how many entries each sub-state lost in a Clear.
type ClearCounts struct {
	Available int
	Pending   int
	Buffered  int
}
