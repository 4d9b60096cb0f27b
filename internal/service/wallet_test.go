package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playverse/walletops/internal/models"
	"github.com/playverse/walletops/internal/store"
)

func newWallet(t *testing.T) (*WalletService, string) {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.CreatePlayer(context.Background(), &models.Player{
		ID:        "player-1",
		FirstName: "Test",
		LastName:  "Player",
		Login:     "test",
		CreatedAt: time.Now().UTC(),
	}))
	return NewWalletService(st, nil), "player-1"
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDepositNewAccount(t *testing.T) {
	svc, id := newWallet(t)
	ctx := context.Background()

	out, replayed, err := svc.Deposit(ctx, id, "a1", dec("100"))
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.True(t, out.Applied)
	assert.True(t, out.ResultingBalance.Equal(dec("100")))

	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.KindDeposit, history[0].Kind)
	assert.True(t, history[0].Amount.Equal(dec("100")))
}

func TestDepositRetrySameID(t *testing.T) {
	svc, id := newWallet(t)
	ctx := context.Background()

	_, _, err := svc.Deposit(ctx, id, "a1", dec("100"))
	require.NoError(t, err)

	out, replayed, err := svc.Deposit(ctx, id, "a1", dec("100"))
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.True(t, out.ResultingBalance.Equal(dec("100")), "balance must not change on replay")

	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestWithdrawInsufficientFundsIsSticky(t *testing.T) {
	svc, id := newWallet(t)
	ctx := context.Background()

	_, _, err := svc.Deposit(ctx, id, "a1", dec("100"))
	require.NoError(t, err)

	out, replayed, err := svc.Withdraw(ctx, id, "w1", dec("150"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.False(t, replayed)
	require.NotNil(t, out)
	assert.False(t, out.Applied)

	balance, err := svc.Balance(ctx, id)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("100")))

	// Retrying the same id re-reports the stored rejection even though the
	// balance would now allow it.
	_, _, err = svc.Deposit(ctx, id, "a2", dec("500"))
	require.NoError(t, err)

	retry, replayed, err := svc.Withdraw(ctx, id, "w1", dec("150"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, replayed)
	assert.Equal(t, out, retry)
}

func TestWithdrawApplies(t *testing.T) {
	svc, id := newWallet(t)
	ctx := context.Background()

	_, _, err := svc.Deposit(ctx, id, "a1", dec("100"))
	require.NoError(t, err)

	out, _, err := svc.Withdraw(ctx, id, "w2", dec("40"))
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.True(t, out.ResultingBalance.Equal(dec("60")))

	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.KindDeposit, history[0].Kind)
	assert.Equal(t, models.KindWithdrawal, history[1].Kind)
}

func TestInvalidAmountNotRecorded(t *testing.T) {
	svc, id := newWallet(t)
	ctx := context.Background()

	for _, amount := range []string{"0", "-5"} {
		_, _, err := svc.Deposit(ctx, id, "a1", dec(amount))
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	// The id stays unused: a corrected resubmission with the same id applies.
	out, replayed, err := svc.Deposit(ctx, id, "a1", dec("100"))
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.True(t, out.Applied)
}

func TestRequestIDValidation(t *testing.T) {
	svc, id := newWallet(t)
	ctx := context.Background()

	_, _, err := svc.Deposit(ctx, id, "", dec("10"))
	assert.ErrorIs(t, err, ErrInvalidRequestID)

	_, _, err = svc.Deposit(ctx, id, strings.Repeat("x", 65), dec("10"))
	assert.ErrorIs(t, err, ErrInvalidRequestID)
}

func TestUnknownPlayer(t *testing.T) {
	svc, _ := newWallet(t)
	ctx := context.Background()

	_, _, err := svc.Deposit(ctx, "ghost", "a1", dec("10"))
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.Balance(ctx, "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.History(ctx, "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestConcurrentDepositsDistinctIDs(t *testing.T) {
	svc, id := newWallet(t)
	ctx := context.Background()

	_, _, err := svc.Deposit(ctx, id, "seed", dec("60"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, err := svc.Deposit(ctx, id, "c1", dec("10"))
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, _, err := svc.Deposit(ctx, id, "c2", dec("20"))
		assert.NoError(t, err)
	}()
	wg.Wait()

	balance, err := svc.Balance(ctx, id)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("90")))

	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for _, rec := range history {
		// Each record is internally consistent with its own recorded
		// resulting balance regardless of interleaving order.
		assert.False(t, rec.ResultingBalance.IsNegative())
	}
}

func TestHistoryReplaysToBalance(t *testing.T) {
	svc, id := newWallet(t)
	ctx := context.Background()

	_, _, err := svc.Deposit(ctx, id, "d1", dec("123.45"))
	require.NoError(t, err)
	_, _, err = svc.Withdraw(ctx, id, "w1", dec("23.45"))
	require.NoError(t, err)
	_, _, err = svc.Deposit(ctx, id, "d2", dec("0.01"))
	require.NoError(t, err)

	history, err := svc.History(ctx, id)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, rec := range history {
		if rec.Kind == models.KindWithdrawal {
			sum = sum.Sub(rec.Amount)
		} else {
			sum = sum.Add(rec.Amount)
		}
		assert.True(t, sum.Equal(rec.ResultingBalance))
	}

	balance, err := svc.Balance(ctx, id)
	require.NoError(t, err)
	assert.True(t, sum.Equal(balance))
	assert.True(t, balance.Equal(dec("100.01")))
}

func TestConcurrentMixedLoadInvariants(t *testing.T) {
	svc, id := newWallet(t)
	ctx := context.Background()

	_, _, err := svc.Deposit(ctx, id, "seed", dec("100"))
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				svc.Deposit(ctx, id, fmt.Sprintf("d-%d", i), dec("5"))
			} else {
				svc.Withdraw(ctx, id, fmt.Sprintf("w-%d", i), dec("7"))
			}
		}(i)
	}
	wg.Wait()

	balance, err := svc.Balance(ctx, id)
	require.NoError(t, err)
	assert.False(t, balance.IsNegative(), "balance must never go negative")

	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, rec := range history {
		if rec.Kind == models.KindWithdrawal {
			sum = sum.Sub(rec.Amount)
		} else {
			sum = sum.Add(rec.Amount)
		}
	}
	assert.True(t, sum.Equal(balance), "history must replay to the balance")
}
