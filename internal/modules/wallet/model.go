// README: Wallet aggregate and ledger transaction definitions.
package wallet

import (
	"time"

	"offpeak/internal/types"
)

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

type RewardKind string

const (
	RewardDeparture  RewardKind = "departure"
	RewardCompletion RewardKind = "completion"
)

type Wallet struct {
	UserID       types.ID
	Balance      int64
	CurrencyCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transaction is one immutable ledger row. Reward credits carry the
// trip and reward kind that earned them; spends carry neither.
type Transaction struct {
	ID           types.ID
	UserID       types.ID
	Direction    Direction
	RewardKind   *RewardKind
	TripID       *types.ID
	Amount       int64
	BalanceAfter int64
	Description  string
	CreatedAt    time.Time
}

// Signed returns the transaction amount with its ledger sign: credits
// positive, debits negative.
func (t Transaction) Signed() int64 {
	if t.Direction == DirectionDebit {
		return -t.Amount
	}
	return t.Amount
}

type Summary struct {
	Balance          int64
	CurrencyCode     string
	TotalEarned      int64
	TotalSpent       int64
	TransactionCount int
	Recent           []Transaction
}
