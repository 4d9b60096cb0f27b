package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/playverse/walletops/internal/service"
	"github.com/playverse/walletops/internal/store"
)

func runScript(t *testing.T, lines ...string) string {
	t.Helper()
	st := store.NewMemoryStore()
	wallet := service.NewWalletService(st, nil)
	auth := service.NewAuthService(st, nil, []byte("test"), time.Hour)

	var out bytes.Buffer
	c := New(wallet, auth, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	c.Run(context.Background())
	return out.String()
}

func TestRegisterLoginDepositWithdraw(t *testing.T) {
	output := runScript(t,
		"1", // register
		"Ada", "Lovelace", "ada@example.com", "ada", "secret123",
		"2", // log in
		"ada", "secret123",
		"2", "100.50", "a1", // deposit
		"1",                // balance
		"3", "40.50", "w1", // withdraw
		"4", // history
		"5", // log out
		"3", // quit
	)

	assert.Contains(t, output, "Registered Ada Lovelace")
	assert.Contains(t, output, "Welcome, Ada!")
	assert.Contains(t, output, "New balance: 100.50")
	assert.Contains(t, output, "Current balance: 100.50")
	assert.Contains(t, output, "New balance: 60.00")
	assert.Contains(t, output, "deposit")
	assert.Contains(t, output, "withdrawal")
	assert.Contains(t, output, "Logged out.")
	assert.Contains(t, output, "Goodbye.")
}

func TestDuplicateOperationIDReplays(t *testing.T) {
	output := runScript(t,
		"1",
		"Ada", "Lovelace", "", "ada", "secret123",
		"2",
		"ada", "secret123",
		"2", "100", "a1",
		"2", "100", "a1", // same id again
		"1",
		"5",
		"3",
	)

	assert.Contains(t, output, "already processed")
	assert.Contains(t, output, "Current balance: 100.00")
}

func TestInsufficientFundsMessage(t *testing.T) {
	output := runScript(t,
		"1",
		"Ada", "Lovelace", "", "ada", "secret123",
		"2",
		"ada", "secret123",
		"3", "50", "w1", // withdraw from empty account
		"5",
		"3",
	)

	assert.Contains(t, output, "Insufficient funds")
}

func TestBadMenuChoice(t *testing.T) {
	output := runScript(t, "9", "3")
	assert.Contains(t, output, "Invalid choice.")
}

func TestBadAmountInput(t *testing.T) {
	output := runScript(t,
		"1",
		"Ada", "Lovelace", "", "ada", "secret123",
		"2",
		"ada", "secret123",
		"2", "ten", // not a number
		"5",
		"3",
	)

	assert.Contains(t, output, `Not a valid amount: "ten"`)
}
