package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/playverse/walletops/internal/models"
	"github.com/playverse/walletops/internal/store"
)

var (
	ErrPlayerExists       = errors.New("login already taken")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrMissingFields      = errors.New("missing required fields")
)

// AuthService handles registration, credential verification and session
// tokens. The wallet core trusts the player id it produces and performs no
// credential checks of its own.
type AuthService struct {
	store    store.Store
	logger   *zap.Logger
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthService(st store.Store, logger *zap.Logger, secret []byte, tokenTTL time.Duration) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{store: st, logger: logger, secret: secret, tokenTTL: tokenTTL}
}

// RegistrationInput carries the fields collected at sign-up.
type RegistrationInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Login     string `json:"login"`
	Password  string `json:"password"`
}

// Register creates a player and its zero-balance account.
func (s *AuthService) Register(ctx context.Context, in RegistrationInput) (*models.Player, error) {
	in.Login = strings.TrimSpace(in.Login)
	if in.Login == "" || in.Password == "" || in.FirstName == "" || in.LastName == "" {
		return nil, ErrMissingFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("password hash failed: %w", err)
	}

	p := &models.Player{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Login:        in.Login,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreatePlayer(ctx, p); err != nil {
		if errors.Is(err, store.ErrPlayerExists) {
			return nil, ErrPlayerExists
		}
		return nil, fmt.Errorf("create player failed: %w", err)
	}

	s.audit(ctx, p.ID, models.ActionRegistered)
	s.logger.Info("player registered",
		zap.String("player_id", p.ID),
		zap.String("login", p.Login))
	return p, nil
}

// Login verifies credentials and issues a signed session token.
func (s *AuthService) Login(ctx context.Context, login, password string) (string, *models.Player, error) {
	p, err := s.store.PlayerByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrPlayerNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("player lookup failed: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   p.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token sign failed: %w", err)
	}

	s.audit(ctx, p.ID, models.ActionLogin)
	return token, p, nil
}

// Logout only leaves an audit mark; tokens expire on their own.
func (s *AuthService) Logout(ctx context.Context, playerID string) {
	s.audit(ctx, playerID, models.ActionLogout)
}

// VerifyToken validates a session token and returns the player id it was
// issued for.
func (s *AuthService) VerifyToken(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// AuditTrail returns the recorded actions for a player.
func (s *AuthService) AuditTrail(ctx context.Context, playerID string) ([]models.AuditEvent, error) {
	events, err := s.store.AuditTrail(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("audit trail failed: %w", err)
	}
	return events, nil
}

func (s *AuthService) audit(ctx context.Context, playerID, action string) {
	if err := s.store.AppendAudit(ctx, playerID, action); err != nil {
		s.logger.Warn("audit append failed",
			zap.String("player_id", playerID),
			zap.String("action", action),
			zap.Error(err))
	}
}
