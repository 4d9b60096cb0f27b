package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxKind discriminates the two balance-changing operations.
type TxKind string

const (
	KindDeposit    TxKind = "deposit"
	KindWithdrawal TxKind = "withdrawal"
)

// Player is a registered identity. Credentials live here; the wallet core
// only ever sees the ID.
type Player struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account holds a player's current balance. Balance is an exact decimal and
// never goes below zero.
type Account struct {
	PlayerID  string          `json:"player_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Operation is one deposit or withdrawal request as submitted by a caller.
// RequestID is the client-chosen idempotency token, unique per player per
// logical request; resubmitting the same ID is the retry signal.
type Operation struct {
	PlayerID  string          `json:"player_id"`
	RequestID string          `json:"request_id"`
	Kind      TxKind          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
}

// Outcome is the terminal result of processing an Operation, recorded under
// (PlayerID, RequestID) and replayed verbatim on duplicate submission.
// Applied is false for recorded business rejections (insufficient funds).
type Outcome struct {
	Applied          bool            `json:"applied"`
	Kind             TxKind          `json:"kind"`
	Amount           decimal.Decimal `json:"amount"`
	ResultingBalance decimal.Decimal `json:"resulting_balance"`
	Reason           string          `json:"reason,omitempty"`
}

// TransactionRecord is one leg of the append-only audit history. Records for
// a player are totally ordered by Sequence.
type TransactionRecord struct {
	ID               uuid.UUID       `json:"id"`
	PlayerID         string          `json:"player_id"`
	Sequence         int64           `json:"sequence"`
	Kind             TxKind          `json:"kind"`
	Amount           decimal.Decimal `json:"amount"`
	ResultingBalance decimal.Decimal `json:"resulting_balance"`
	CreatedAt        time.Time       `json:"created_at"`
}

// AuditEvent records a player action (registration, login, logout, wallet
// operations) separately from the transaction history.
type AuditEvent struct {
	ID        uuid.UUID `json:"id"`
	PlayerID  string    `json:"player_id"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// Audit actions.
const (
	ActionRegistered = "registered"
	ActionLogin      = "login"
	ActionLogout     = "logout"
	ActionDeposit    = "deposit"
	ActionWithdrawal = "withdrawal"
	ActionBalance    = "balance_check"
	ActionHistory    = "history_view"
)
