package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/playverse/walletops/internal/models"
	"github.com/playverse/walletops/internal/store"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidRequestID  = errors.New("invalid request id")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
)

// Request ids are caller-chosen and bounded; the bound is generous on purpose
// so legacy short tokens and UUIDs both fit.
const maxRequestIDLen = 64

// WalletService exposes the only mutation path into the wallet stores.
// Validation happens before any store is touched; duplicate detection and the
// atomic apply are delegated to the store's Execute.
type WalletService struct {
	store  store.Store
	logger *zap.Logger
}

func NewWalletService(st store.Store, logger *zap.Logger) *WalletService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletService{store: st, logger: logger}
}

// Deposit credits amount to the player's balance. The bool return is true
// when the outcome is a replay of an earlier submission with the same
// request id. A recorded insufficient-funds rejection never happens for
// deposits, but the outcome shape is shared with Withdraw.
func (s *WalletService) Deposit(ctx context.Context, playerID, requestID string, amount decimal.Decimal) (*models.Outcome, bool, error) {
	return s.execute(ctx, models.Operation{
		PlayerID:  playerID,
		RequestID: requestID,
		Kind:      models.KindDeposit,
		Amount:    amount,
	})
}

// Withdraw debits amount from the player's balance. An insufficient-funds
// rejection is itself recorded under the request id, so retrying the same id
// reports the same rejection without re-evaluating the current balance.
func (s *WalletService) Withdraw(ctx context.Context, playerID, requestID string, amount decimal.Decimal) (*models.Outcome, bool, error) {
	return s.execute(ctx, models.Operation{
		PlayerID:  playerID,
		RequestID: requestID,
		Kind:      models.KindWithdrawal,
		Amount:    amount,
	})
}

func (s *WalletService) execute(ctx context.Context, op models.Operation) (*models.Outcome, bool, error) {
	// Client input errors are rejected up front and deliberately NOT
	// recorded: the request id stays unused for a corrected resubmission.
	if !op.Amount.IsPositive() {
		return nil, false, ErrInvalidAmount
	}
	if op.RequestID == "" || len(op.RequestID) > maxRequestIDLen {
		return nil, false, ErrInvalidRequestID
	}

	out, replayed, err := s.store.Execute(ctx, op)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, false, ErrAccountNotFound
		}
		return nil, false, fmt.Errorf("execute %s failed: %w", op.Kind, err)
	}

	s.audit(ctx, op.PlayerID, string(op.Kind))

	if !out.Applied {
		s.logger.Warn("operation rejected",
			zap.String("player_id", op.PlayerID),
			zap.String("request_id", op.RequestID),
			zap.String("kind", string(op.Kind)),
			zap.String("amount", op.Amount.String()),
			zap.Bool("replayed", replayed),
			zap.String("reason", out.Reason))
		return out, replayed, ErrInsufficientFunds
	}

	s.logger.Info("operation applied",
		zap.String("player_id", op.PlayerID),
		zap.String("request_id", op.RequestID),
		zap.String("kind", string(op.Kind)),
		zap.String("amount", op.Amount.String()),
		zap.Bool("replayed", replayed),
		zap.String("balance", out.ResultingBalance.String()))
	return out, replayed, nil
}

// Balance returns the current balance. Read-only, no idempotency concerns.
func (s *WalletService) Balance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	acc, err := s.store.GetAccount(ctx, playerID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("get account failed: %w", err)
	}
	s.audit(ctx, playerID, models.ActionBalance)
	return acc.Balance, nil
}

// History returns the player's transaction log in application order.
func (s *WalletService) History(ctx context.Context, playerID string) ([]models.TransactionRecord, error) {
	records, err := s.store.History(ctx, playerID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("history failed: %w", err)
	}
	s.audit(ctx, playerID, models.ActionHistory)
	return records, nil
}

// audit is best effort; a failed audit append never fails the operation.
func (s *WalletService) audit(ctx context.Context, playerID, action string) {
	if err := s.store.AppendAudit(ctx, playerID, action); err != nil {
		s.logger.Warn("audit append failed",
			zap.String("player_id", playerID),
			zap.String("action", action),
			zap.Error(err))
	}
}
