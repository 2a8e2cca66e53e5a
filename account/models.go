// Package account defines the wallet account entity.
package account

import (
	"github.com/xraph/dialtone/id"
	"github.com/xraph/dialtone/types"
	"github.com/xraph/dialtone/usage"
)

// Account is a prepaid wallet account.
//
// Identity is the external login/caller identity the authentication and
// telephony providers know the user by. Number is the account's unique
// dialable number, assigned exactly once at registration and never
// reassigned. Balance only moves through the store's atomic ledger
// operations; CreditGranted flips false→true exactly once when the
// one-time welcome credit is applied.
type Account struct {
	types.Entity
	ID            id.AccountID      `json:"id"`
	Identity      string            `json:"identity"`
	Number        string            `json:"number"`
	Balance       types.Money       `json:"balance"`
	CreditGranted bool              `json:"credit_granted"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ListOpts pages an account listing.
type ListOpts struct {
	Limit  int
	Offset int
}

// Snapshot is a point-in-time view of an account with its recent usage
// history, newest first.
type Snapshot struct {
	Account *Account       `json:"account"`
	Balance types.Money    `json:"balance"`
	History []*usage.Event `json:"history"`
}
