// README: Reward point currency for wallet ledger amounts.
package types

// CurrencyLCL is the reward point currency used by the wallet ledger.
// Amounts are integer points, so ledger rows store a bare int64 and
// carry this code on the owning wallet.
const CurrencyLCL = "LCL"
