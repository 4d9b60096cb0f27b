package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/playverse/walletops/internal/models"
)

// MemoryStore keeps all state in process memory. Mutations for one player
// serialize on that player's account lock; players never contend with each
// other. Used by the console client and the test suites.
type MemoryStore struct {
	mu       sync.RWMutex
	players  map[string]*models.Player
	byLogin  map[string]string
	accounts map[string]*memAccount
}

type memAccount struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	seq       int64
	createdAt time.Time
	outcomes  map[string]models.Outcome
	history   []models.TransactionRecord
	audit     []models.AuditEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:  make(map[string]*models.Player),
		byLogin:  make(map[string]string),
		accounts: make(map[string]*memAccount),
	}
}

func (s *MemoryStore) CreatePlayer(_ context.Context, p *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	login := strings.ToLower(p.Login)
	if _, taken := s.byLogin[login]; taken {
		return ErrPlayerExists
	}

	cp := *p
	s.players[p.ID] = &cp
	s.byLogin[login] = p.ID
	s.accounts[p.ID] = &memAccount{
		balance:   decimal.Zero,
		createdAt: p.CreatedAt,
		outcomes:  make(map[string]models.Outcome),
	}
	return nil
}

func (s *MemoryStore) PlayerByLogin(_ context.Context, login string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byLogin[strings.ToLower(login)]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	cp := *s.players[id]
	return &cp, nil
}

func (s *MemoryStore) account(playerID string) (*memAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[playerID]
	return acc, ok
}

func (s *MemoryStore) GetAccount(_ context.Context, playerID string) (*models.Account, error) {
	acc, ok := s.account(playerID)
	if !ok {
		return nil, ErrAccountNotFound
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()
	return &models.Account{
		PlayerID:  playerID,
		Balance:   acc.balance,
		CreatedAt: acc.createdAt,
	}, nil
}

func (s *MemoryStore) Execute(_ context.Context, op models.Operation) (*models.Outcome, bool, error) {
	acc, ok := s.account(op.PlayerID)
	if !ok {
		return nil, false, ErrAccountNotFound
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	// Insert-if-absent: the account lock makes the check-then-record atomic,
	// so at most one submission of a key ever reaches the mutation below.
	if prior, seen := acc.outcomes[op.RequestID]; seen {
		return &prior, true, nil
	}

	delta := op.Amount
	if op.Kind == models.KindWithdrawal {
		delta = op.Amount.Neg()
	}

	next := acc.balance.Add(delta)
	if next.IsNegative() {
		out := models.Outcome{
			Applied:          false,
			Kind:             op.Kind,
			Amount:           op.Amount,
			ResultingBalance: acc.balance,
			Reason:           "insufficient funds",
		}
		acc.outcomes[op.RequestID] = out
		return &out, false, nil
	}

	acc.seq++
	acc.balance = next
	acc.history = append(acc.history, models.TransactionRecord{
		ID:               uuid.New(),
		PlayerID:         op.PlayerID,
		Sequence:         acc.seq,
		Kind:             op.Kind,
		Amount:           op.Amount,
		ResultingBalance: next,
		CreatedAt:        time.Now().UTC(),
	})

	out := models.Outcome{
		Applied:          true,
		Kind:             op.Kind,
		Amount:           op.Amount,
		ResultingBalance: next,
	}
	acc.outcomes[op.RequestID] = out
	return &out, false, nil
}

func (s *MemoryStore) History(_ context.Context, playerID string) ([]models.TransactionRecord, error) {
	acc, ok := s.account(playerID)
	if !ok {
		return nil, ErrAccountNotFound
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()
	out := make([]models.TransactionRecord, len(acc.history))
	copy(out, acc.history)
	return out, nil
}

func (s *MemoryStore) AppendAudit(_ context.Context, playerID, action string) error {
	acc, ok := s.account(playerID)
	if !ok {
		return ErrAccountNotFound
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()
	acc.audit = append(acc.audit, models.AuditEvent{
		ID:        uuid.New(),
		PlayerID:  playerID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *MemoryStore) AuditTrail(_ context.Context, playerID string) ([]models.AuditEvent, error) {
	acc, ok := s.account(playerID)
	if !ok {
		return nil, ErrAccountNotFound
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()
	out := make([]models.AuditEvent, len(acc.audit))
	copy(out, acc.audit)
	return out, nil
}
