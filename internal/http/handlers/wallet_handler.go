// README: Wallet handlers: balance, ledger history, summary.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"offpeak/internal/http/middleware"
	"offpeak/internal/modules/wallet"
	"offpeak/internal/types"
)

type WalletHandler struct {
	wallet *wallet.Service
}

func NewWalletHandler(svc *wallet.Service) *WalletHandler {
	return &WalletHandler{wallet: svc}
}

type walletJSON struct {
	UserID       types.ID  `json:"user_id"`
	Balance      int64     `json:"balance"`
	CurrencyCode string    `json:"currency_code"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type transactionJSON struct {
	ID           types.ID           `json:"id"`
	Direction    wallet.Direction   `json:"direction"`
	RewardKind   *wallet.RewardKind `json:"reward_kind,omitempty"`
	TripID       *types.ID          `json:"trip_id,omitempty"`
	Amount       int64              `json:"amount"`
	BalanceAfter int64              `json:"balance_after"`
	Description  string             `json:"description"`
	CreatedAt    time.Time          `json:"created_at"`
}

func toTransactionJSON(t wallet.Transaction) transactionJSON {
	return transactionJSON{
		ID:           t.ID,
		Direction:    t.Direction,
		RewardKind:   t.RewardKind,
		TripID:       t.TripID,
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		Description:  t.Description,
		CreatedAt:    t.CreatedAt,
	}
}

func toTransactionList(ts []wallet.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTransactionJSON(t))
	}
	return out
}

// Wallet handles GET /api/rewards/wallet.
func (h *WalletHandler) Wallet(c *gin.Context) {
	w, recent, err := h.wallet.Overview(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"wallet": walletJSON{
			UserID:       w.UserID,
			Balance:      w.Balance,
			CurrencyCode: w.CurrencyCode,
			CreatedAt:    w.CreatedAt,
			UpdatedAt:    w.UpdatedAt,
		},
		"recent_transactions": toTransactionList(recent),
	})
}

// Transactions handles GET /api/rewards/transactions.
func (h *WalletHandler) Transactions(c *gin.Context) {
	page := pageFromQuery(c)
	ts, err := h.wallet.Transactions(c.Request.Context(), middleware.CallerUID(c), page)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"transactions": toTransactionList(ts), "page": page.Page})
}

// Summary handles GET /api/rewards/summary.
func (h *WalletHandler) Summary(c *gin.Context) {
	sum, err := h.wallet.Summary(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"current_balance":   sum.Balance,
		"currency_code":     sum.CurrencyCode,
		"total_earned":      sum.TotalEarned,
		"total_spent":       sum.TotalSpent,
		"transaction_count": sum.TransactionCount,
		"recent":            toTransactionList(sum.Recent),
	})
}
