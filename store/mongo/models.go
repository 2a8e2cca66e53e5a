package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/dialtone/account"
	"github.com/xraph/dialtone/id"
	"github.com/xraph/dialtone/types"
	"github.com/xraph/dialtone/usage"
)

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:dialtone_accounts"`

	ID            string            `grove:"id,pk"          bson:"_id"`
	Identity      string            `grove:"identity"       bson:"identity"`
	Number        string            `grove:"number"         bson:"number"`
	Balance       int64             `grove:"balance"        bson:"balance"`
	Currency      string            `grove:"currency"       bson:"currency"`
	CreditGranted bool              `grove:"credit_granted" bson:"credit_granted"`
	Metadata      map[string]string `grove:"metadata"       bson:"metadata,omitempty"`
	CreatedAt     time.Time         `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time         `grove:"updated_at"     bson:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:            a.ID.String(),
		Identity:      a.Identity,
		Number:        a.Number,
		Balance:       a.Balance.Amount,
		Currency:      a.Balance.Currency,
		CreditGranted: a.CreditGranted,
		Metadata:      a.Metadata,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}

	return &account.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            accountID,
		Identity:      m.Identity,
		Number:        m.Number,
		Balance:       types.Micros(m.Balance, m.Currency),
		CreditGranted: m.CreditGranted,
		Metadata:      m.Metadata,
	}, nil
}

// ==================== Usage event models ====================

type usageEventModel struct {
	grove.BaseModel `grove:"table:dialtone_usage_events"`

	ID              string            `grove:"id,pk"            bson:"_id"`
	AccountID       string            `grove:"account_id"       bson:"account_id"`
	Kind            string            `grove:"kind"             bson:"kind"`
	Direction       string            `grove:"direction"        bson:"direction"`
	Counterparty    string            `grove:"counterparty"     bson:"counterparty,omitempty"`
	Cost            int64             `grove:"cost"             bson:"cost"`
	Currency        string            `grove:"currency"         bson:"currency"`
	DurationSeconds int64             `grove:"duration_seconds" bson:"duration_seconds,omitempty"`
	Timestamp       time.Time         `grove:"timestamp"        bson:"timestamp"`
	ProviderRef     string            `grove:"provider_ref"     bson:"provider_ref,omitempty"`
	Metadata        map[string]string `grove:"metadata"         bson:"metadata,omitempty"`
	CreatedAt       time.Time         `grove:"created_at"       bson:"created_at"`
}

func toUsageEventModel(e *usage.Event) *usageEventModel {
	return &usageEventModel{
		ID:              e.ID.String(),
		AccountID:       e.AccountID.String(),
		Kind:            string(e.Kind),
		Direction:       string(e.Direction),
		Counterparty:    e.Counterparty,
		Cost:            e.Cost.Amount,
		Currency:        e.Cost.Currency,
		DurationSeconds: e.DurationSeconds,
		Timestamp:       e.Timestamp,
		ProviderRef:     e.ProviderRef,
		Metadata:        e.Metadata,
		CreatedAt:       e.CreatedAt,
	}
}

func fromUsageEventModel(m *usageEventModel) (*usage.Event, error) {
	eventID, err := id.ParseUsageEventID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}

	return &usage.Event{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.CreatedAt,
		},
		ID:              eventID,
		AccountID:       accountID,
		Kind:            usage.Kind(m.Kind),
		Direction:       usage.Direction(m.Direction),
		Counterparty:    m.Counterparty,
		Cost:            types.Micros(m.Cost, m.Currency),
		DurationSeconds: m.DurationSeconds,
		Timestamp:       m.Timestamp,
		ProviderRef:     m.ProviderRef,
		Metadata:        m.Metadata,
	}, nil
}
