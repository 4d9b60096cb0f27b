package store

import (
	"context"
	"errors"

	"github.com/playverse/walletops/internal/models"
)

var (
	ErrPlayerExists      = errors.New("player already exists")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrRequestInProgress = errors.New("request in progress")
)

// Store is the durable backend behind the wallet service: account balances,
// the idempotency ledger and the transaction log, plus player records and the
// audit trail. Implementations must apply the whole of Execute as a single
// atomic unit per player.
type Store interface {
	// CreatePlayer persists a new player together with its zero-balance
	// account. Fails with ErrPlayerExists on a duplicate login.
	CreatePlayer(ctx context.Context, p *models.Player) error

	// PlayerByLogin looks a player up by login name.
	PlayerByLogin(ctx context.Context, login string) (*models.Player, error)

	// GetAccount returns the current balance snapshot for a player.
	GetAccount(ctx context.Context, playerID string) (*models.Account, error)

	// Execute processes one deposit/withdrawal operation. The idempotency
	// check, the balance mutation and the transaction append commit together
	// or not at all. The second return is true when the outcome is a replay
	// of a previously recorded one. A business rejection (insufficient
	// funds) is returned as an Outcome with Applied=false, not as an error;
	// it is recorded under the key like any other outcome.
	Execute(ctx context.Context, op models.Operation) (*models.Outcome, bool, error)

	// History returns the full transaction log for a player in application
	// order as of call time.
	History(ctx context.Context, playerID string) ([]models.TransactionRecord, error)

	// AppendAudit records a player action in the audit trail.
	AppendAudit(ctx context.Context, playerID, action string) error

	// AuditTrail returns the recorded actions for a player in order.
	AuditTrail(ctx context.Context, playerID string) ([]models.AuditEvent, error)
}
