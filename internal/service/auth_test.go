package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playverse/walletops/internal/models"
	"github.com/playverse/walletops/internal/store"
)

func newAuth(t *testing.T) (*AuthService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewAuthService(st, nil, []byte("test-secret"), time.Hour), st
}

func register(t *testing.T, auth *AuthService, login string) *models.Player {
	t.Helper()
	p, err := auth.Register(context.Background(), RegistrationInput{
		FirstName: "Test",
		LastName:  "Player",
		Email:     login + "@example.com",
		Login:     login,
		Password:  "secret123",
	})
	require.NoError(t, err)
	return p
}

func TestRegisterCreatesZeroBalanceAccount(t *testing.T) {
	auth, st := newAuth(t)
	p := register(t, auth, "alice")

	acc, err := st.GetAccount(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.IsZero())
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newAuth(t)

	_, err := auth.Register(context.Background(), RegistrationInput{Login: "x"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestRegisterDuplicateLogin(t *testing.T) {
	auth, _ := newAuth(t)
	register(t, auth, "alice")

	_, err := auth.Register(context.Background(), RegistrationInput{
		FirstName: "Other",
		LastName:  "Person",
		Login:     "alice",
		Password:  "different",
	})
	assert.ErrorIs(t, err, ErrPlayerExists)
}

func TestLoginRoundTrip(t *testing.T) {
	auth, _ := newAuth(t)
	p := register(t, auth, "alice")

	token, got, err := auth.Login(context.Background(), "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	playerID, err := auth.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, playerID)
}

func TestLoginWrongPassword(t *testing.T) {
	auth, _ := newAuth(t)
	register(t, auth, "alice")

	_, _, err := auth.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = auth.Login(context.Background(), "nobody", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	auth, _ := newAuth(t)

	_, err := auth.VerifyToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	st := store.NewMemoryStore()
	auth := NewAuthService(st, nil, []byte("test-secret"), -time.Minute)
	register(t, auth, "alice")

	token, _, err := auth.Login(context.Background(), "alice", "secret123")
	require.NoError(t, err)

	_, err = auth.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsForeignSecret(t *testing.T) {
	auth, st := newAuth(t)
	register(t, auth, "alice")

	other := NewAuthService(st, nil, []byte("other-secret"), time.Hour)
	token, _, err := other.Login(context.Background(), "alice", "secret123")
	require.NoError(t, err)

	_, err = auth.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuditTrailOrder(t *testing.T) {
	auth, _ := newAuth(t)
	p := register(t, auth, "alice")

	_, _, err := auth.Login(context.Background(), "alice", "secret123")
	require.NoError(t, err)
	auth.Logout(context.Background(), p.ID)

	events, err := auth.AuditTrail(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.ActionRegistered, events[0].Action)
	assert.Equal(t, models.ActionLogin, events[1].Action)
	assert.Equal(t, models.ActionLogout, events[2].Action)
}
