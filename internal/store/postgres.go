package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/playverse/walletops/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresStore persists wallet state in Postgres. The per-player critical
// section is a row lock on the account row; the idempotency ledger is a
// unique-keyed table so concurrent duplicates lose the insert race instead of
// double-applying.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{db: pool}, nil
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) CreatePlayer(ctx context.Context, p *models.Player) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO players (id, first_name, last_name, email, login, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, lower($5), $6, $7)`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Login, p.PasswordHash, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrPlayerExists
		}
		return fmt.Errorf("player insert failed: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO accounts (player_id, balance, seq, created_at) VALUES ($1, 0, 0, $2)",
		p.ID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("account insert failed: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) PlayerByLogin(ctx context.Context, login string) (*models.Player, error) {
	var p models.Player
	err := s.db.QueryRow(ctx,
		`SELECT id, first_name, last_name, email, login, password_hash, created_at
		 FROM players WHERE login = lower($1)`, login).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Login, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("player query failed: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, playerID string) (*models.Account, error) {
	var (
		acc     models.Account
		balance string
	)
	err := s.db.QueryRow(ctx,
		"SELECT player_id, balance::text, created_at FROM accounts WHERE player_id = $1",
		playerID).Scan(&acc.PlayerID, &balance, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("account query failed: %w", err)
	}

	acc.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("balance parse failed: %w", err)
	}
	return &acc, nil
}

// Execute runs the whole deposit/withdrawal pipeline inside one transaction:
// replay check, key reservation, row-locked balance mutation, transaction
// append, key finalization. Either everything commits or nothing does.
func (s *PostgresStore) Execute(ctx context.Context, op models.Operation) (*models.Outcome, bool, error) {
	// ReadCommitted: the FOR UPDATE row lock is the per-player critical
	// section, and the loser of a same-player race just waits on it instead
	// of failing with a serialization error.
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, false, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Replay check.
	prior, err := s.lookupOutcome(ctx, tx, op.PlayerID, op.RequestID)
	if err != nil {
		return nil, false, err
	}
	if prior != nil {
		return prior, true, nil
	}

	// 2. Key reservation. Losing the insert race means another submission
	// of the same key is mid-flight; the caller retries and gets the replay.
	_, err = tx.Exec(ctx,
		`INSERT INTO idempotency_keys (player_id, request_id, kind, amount, status)
		 VALUES ($1, $2, $3, $4, 'in_progress')`,
		op.PlayerID, op.RequestID, op.Kind, op.Amount.String())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, false, ErrRequestInProgress
		}
		return nil, false, fmt.Errorf("key reservation failed: %w", err)
	}

	// 3. Per-player critical section.
	var (
		balanceStr string
		seq        int64
	)
	err = tx.QueryRow(ctx,
		"SELECT balance::text, seq FROM accounts WHERE player_id = $1 FOR UPDATE",
		op.PlayerID).Scan(&balanceStr, &seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrAccountNotFound
		}
		return nil, false, fmt.Errorf("lock acquisition failed: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, false, fmt.Errorf("balance parse failed: %w", err)
	}

	delta := op.Amount
	if op.Kind == models.KindWithdrawal {
		delta = op.Amount.Neg()
	}

	next := balance.Add(delta)
	if next.IsNegative() {
		out := models.Outcome{
			Applied:          false,
			Kind:             op.Kind,
			Amount:           op.Amount,
			ResultingBalance: balance,
			Reason:           "insufficient funds",
		}
		if err := s.finalizeKey(ctx, tx, op, out); err != nil {
			return nil, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("tx commit failed: %w", err)
		}
		return &out, false, nil
	}

	// 4. Apply: balance, transaction log, key — one commit.
	_, err = tx.Exec(ctx,
		"UPDATE accounts SET balance = $1, seq = $2 WHERE player_id = $3",
		next.String(), seq+1, op.PlayerID)
	if err != nil {
		return nil, false, fmt.Errorf("balance update failed: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO wallet_transactions (id, player_id, sequence, kind, amount, resulting_balance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), op.PlayerID, seq+1, op.Kind, op.Amount.String(), next.String(), time.Now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("transaction insert failed: %w", err)
	}

	out := models.Outcome{
		Applied:          true,
		Kind:             op.Kind,
		Amount:           op.Amount,
		ResultingBalance: next,
	}
	if err := s.finalizeKey(ctx, tx, op, out); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("tx commit failed: %w", err)
	}
	return &out, false, nil
}

func (s *PostgresStore) lookupOutcome(ctx context.Context, tx pgx.Tx, playerID, requestID string) (*models.Outcome, error) {
	var (
		status  string
		applied bool
		kind    string
		amount  string
		balance string
		reason  *string
	)
	err := tx.QueryRow(ctx,
		`SELECT status, applied, kind, amount::text, COALESCE(resulting_balance, 0)::text, reason
		 FROM idempotency_keys WHERE player_id = $1 AND request_id = $2`,
		playerID, requestID).Scan(&status, &applied, &kind, &amount, &balance, &reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency query failed: %w", err)
	}

	if status != "completed" {
		return nil, ErrRequestInProgress
	}

	out := models.Outcome{Applied: applied, Kind: models.TxKind(kind)}
	if out.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("amount parse failed: %w", err)
	}
	if out.ResultingBalance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("balance parse failed: %w", err)
	}
	if reason != nil {
		out.Reason = *reason
	}
	return &out, nil
}

func (s *PostgresStore) finalizeKey(ctx context.Context, tx pgx.Tx, op models.Operation, out models.Outcome) error {
	var reason *string
	if out.Reason != "" {
		reason = &out.Reason
	}
	_, err := tx.Exec(ctx,
		`UPDATE idempotency_keys
		 SET status = 'completed', applied = $1, resulting_balance = $2, reason = $3
		 WHERE player_id = $4 AND request_id = $5`,
		out.Applied, out.ResultingBalance.String(), reason, op.PlayerID, op.RequestID)
	if err != nil {
		return fmt.Errorf("key finalize failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, playerID string) ([]models.TransactionRecord, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM accounts WHERE player_id = $1)", playerID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("account check failed: %w", err)
	}
	if !exists {
		return nil, ErrAccountNotFound
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, player_id, sequence, kind, amount::text, resulting_balance::text, created_at
		 FROM wallet_transactions WHERE player_id = $1 ORDER BY sequence`,
		playerID)
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	defer rows.Close()

	var records []models.TransactionRecord
	for rows.Next() {
		var (
			rec             models.TransactionRecord
			kind            string
			amount, balance string
		)
		if err := rows.Scan(&rec.ID, &rec.PlayerID, &rec.Sequence, &kind, &amount, &balance, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("history scan failed: %w", err)
		}
		rec.Kind = models.TxKind(kind)
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("amount parse failed: %w", err)
		}
		if rec.ResultingBalance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("balance parse failed: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) AppendAudit(ctx context.Context, playerID, action string) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO audit_events (id, player_id, action, created_at) VALUES ($1, $2, $3, $4)",
		uuid.New(), playerID, action, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("audit insert failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) AuditTrail(ctx context.Context, playerID string) ([]models.AuditEvent, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, player_id, action, created_at FROM audit_events WHERE player_id = $1 ORDER BY created_at",
		playerID)
	if err != nil {
		return nil, fmt.Errorf("audit query failed: %w", err)
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var ev models.AuditEvent
		if err := rows.Scan(&ev.ID, &ev.PlayerID, &ev.Action, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit scan failed: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
