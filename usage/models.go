// Package usage defines the append-only audit log of balance-affecting events.
package usage

import (
	"time"

	"github.com/xraph/dialtone/id"
	"github.com/xraph/dialtone/types"
)

// Kind classifies a usage event.
type Kind string

const (
	KindCall    Kind = "call"
	KindMessage Kind = "message"
	KindCredit  Kind = "credit" // welcome grant, top-up, refund
)

// Direction of the call or message.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// Event is one immutable entry in an account's audit log. Events are
// append-only and ordered by timestamp for history queries.
//
// ProviderRef carries the telephony provider's call or message identifier
// and doubles as the settlement dedup key: appending a second event with
// the same non-empty ProviderRef is rejected, so a replayed completion
// callback can never double-charge.
type Event struct {
	types.Entity
	ID              id.UsageEventID   `json:"id"`
	AccountID       id.AccountID      `json:"account_id"`
	Kind            Kind              `json:"kind"`
	Direction       Direction         `json:"direction"`
	Counterparty    string            `json:"counterparty,omitempty"`
	Cost            types.Money       `json:"cost"`
	DurationSeconds int64             `json:"duration_seconds,omitempty"` // calls only
	Timestamp       time.Time         `json:"timestamp"`
	ProviderRef     string            `json:"provider_ref,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// QueryOpts filters and pages a usage history query. Results are always
// ordered by timestamp descending.
type QueryOpts struct {
	Kind   Kind
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int
}
