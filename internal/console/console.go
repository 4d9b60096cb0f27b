// Package console is the interactive text-menu frontend. It collects input,
// hands it to the services and renders typed outcomes; all wallet rules live
// behind the service boundary.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/playverse/walletops/internal/models"
	"github.com/playverse/walletops/internal/service"
)

type Console struct {
	wallet *service.WalletService
	auth   *service.AuthService
	in     *bufio.Scanner
	out    io.Writer
}

func New(wallet *service.WalletService, auth *service.AuthService, in io.Reader, out io.Writer) *Console {
	return &Console{
		wallet: wallet,
		auth:   auth,
		in:     bufio.NewScanner(in),
		out:    out,
	}
}

// Run drives the main menu until the user quits or input ends.
func (c *Console) Run(ctx context.Context) {
	for {
		c.printf("\nChoose an action:\n")
		c.printf("  1. Register\n  2. Log in\n  3. Quit\n> ")

		switch c.readLine() {
		case "1":
			c.register(ctx)
		case "2":
			c.login(ctx)
		case "3", "":
			c.printf("Goodbye.\n")
			return
		default:
			c.printf("Invalid choice.\n")
		}
	}
}

func (c *Console) register(ctx context.Context) {
	in := service.RegistrationInput{
		FirstName: c.prompt("First name: "),
		LastName:  c.prompt("Last name: "),
		Email:     c.prompt("Email: "),
		Login:     c.prompt("Login: "),
		Password:  c.prompt("Password: "),
	}

	p, err := c.auth.Register(ctx, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlayerExists):
			c.printf("That login is already taken.\n")
		case errors.Is(err, service.ErrMissingFields):
			c.printf("All fields except email are required.\n")
		default:
			c.printf("Registration failed: %v\n", err)
		}
		return
	}
	c.printf("Registered %s %s. You can log in now.\n", p.FirstName, p.LastName)
}

func (c *Console) login(ctx context.Context) {
	login := c.prompt("Login: ")
	password := c.prompt("Password: ")

	_, p, err := c.auth.Login(ctx, login, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.printf("Invalid login or password.\n")
		} else {
			c.printf("Login failed: %v\n", err)
		}
		return
	}

	c.printf("Welcome, %s!\n", p.FirstName)
	c.profile(ctx, p.ID)
}

func (c *Console) profile(ctx context.Context, playerID string) {
	for {
		c.printf("\nChoose an action:\n")
		c.printf("  1. Show balance\n  2. Deposit\n  3. Withdraw\n  4. Transaction history\n  5. Log out\n> ")

		switch c.readLine() {
		case "1":
			c.showBalance(ctx, playerID)
		case "2":
			c.operate(ctx, playerID, true)
		case "3":
			c.operate(ctx, playerID, false)
		case "4":
			c.showHistory(ctx, playerID)
		case "5", "":
			c.auth.Logout(ctx, playerID)
			c.printf("Logged out.\n")
			return
		default:
			c.printf("Invalid choice.\n")
		}
	}
}

func (c *Console) showBalance(ctx context.Context, playerID string) {
	balance, err := c.wallet.Balance(ctx, playerID)
	if err != nil {
		c.printf("Could not read balance: %v\n", err)
		return
	}
	c.printf("Current balance: %s\n", balance.StringFixed(2))
}

func (c *Console) operate(ctx context.Context, playerID string, deposit bool) {
	raw := c.prompt("Amount: ")
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		c.printf("Not a valid amount: %q\n", raw)
		return
	}

	requestID := c.prompt("Unique operation id: ")

	var (
		out      *models.Outcome
		replayed bool
	)
	if deposit {
		out, replayed, err = c.wallet.Deposit(ctx, playerID, requestID, amount)
	} else {
		out, replayed, err = c.wallet.Withdraw(ctx, playerID, requestID, amount)
	}

	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		c.printf("Amount must be positive.\n")
	case errors.Is(err, service.ErrInvalidRequestID):
		c.printf("Operation id must be non-empty and short.\n")
	case errors.Is(err, service.ErrInsufficientFunds):
		c.printf("Insufficient funds. Balance stays at %s.\n", out.ResultingBalance.StringFixed(2))
	case err != nil:
		c.printf("Operation failed: %v\n", err)
	case replayed:
		c.printf("This operation id was already processed. Balance: %s\n", out.ResultingBalance.StringFixed(2))
	default:
		c.printf("Done. New balance: %s\n", out.ResultingBalance.StringFixed(2))
	}
}

func (c *Console) showHistory(ctx context.Context, playerID string) {
	records, err := c.wallet.History(ctx, playerID)
	if err != nil {
		c.printf("Could not read history: %v\n", err)
		return
	}
	if len(records) == 0 {
		c.printf("No transactions yet.\n")
		return
	}
	for _, rec := range records {
		c.printf("%4d  %-10s  %12s  balance %12s  %s\n",
			rec.Sequence, rec.Kind, rec.Amount.StringFixed(2),
			rec.ResultingBalance.StringFixed(2),
			rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func (c *Console) prompt(label string) string {
	c.printf("%s", label)
	return c.readLine()
}

func (c *Console) readLine() string {
	if !c.in.Scan() {
		return ""
	}
	return strings.TrimSpace(c.in.Text())
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}
