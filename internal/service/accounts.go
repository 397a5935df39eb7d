package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/bogdan-lmk/discord-parer/internal/models"
	"github.com/bogdan-lmk/discord-parer/internal/privacy"
	"github.com/bogdan-lmk/discord-parer/pkg/circuitbreaker"
	discordtypes "github.com/bogdan-lmk/discord-parer/pkg/discord/types"

	"github.com/sirupsen/logrus"
)

// AccountSession pairs one authenticated Discord identity with the client
// and circuit breaker used to talk to the API on its behalf.
type AccountSession struct {
	mu      sync.RWMutex
	account models.Account
	Client  discordtypes.Client
	Breaker *circuitbreaker.CircuitBreaker
}

func (s *AccountSession) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account.ID
}

func (s *AccountSession) Snapshot() models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

func (s *AccountSession) SetState(state models.AccountState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account.State = state
}

// Call runs op against the Discord API behind this account's circuit breaker.
func (s *AccountSession) Call(ctx context.Context, op func(ctx context.Context) error) error {
	return s.Breaker.Execute(ctx, op)
}

// AccountRegistry holds every configured account session. Sessions are
// created once at startup and never removed, only flipped between states.
type AccountRegistry struct {
	mu       sync.RWMutex
	sessions []*AccountSession
	byID     map[string]*AccountSession
	logger   *logrus.Logger
}

func NewAccountRegistry(logger *logrus.Logger) *AccountRegistry {
	return &AccountRegistry{
		byID:   make(map[string]*AccountSession),
		logger: logger,
	}
}

// Register authenticates the client, assigns the account its Discord user
// identity and adds the session. Duplicate identities are rejected so two
// tokens for the same user cannot double-forward.
func (r *AccountRegistry) Register(ctx context.Context, client discordtypes.Client, breaker *circuitbreaker.CircuitBreaker) (*AccountSession, error) {
	user, err := client.GetCurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to identify account: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[user.ID]; exists {
		return nil, fmt.Errorf("account %s is configured twice", user.Username)
	}

	session := &AccountSession{
		account: models.Account{
			ID:       user.ID,
			Username: user.Username,
			State:    models.AccountConnected,
		},
		Client:  client,
		Breaker: breaker,
	}
	r.sessions = append(r.sessions, session)
	r.byID[user.ID] = session

	r.logger.WithFields(logrus.Fields(privacy.MaskSensitiveFields(map[string]interface{}{
		"account_id": user.ID,
		"username":   user.Username,
	}))).Info("Discord account registered")
	return session, nil
}

// Sessions returns all sessions in registration order.
func (r *AccountRegistry) Sessions() []*AccountSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AccountSession, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// Session returns the session for the given account ID, or nil.
func (r *AccountRegistry) Session(accountID string) *AccountSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[accountID]
}
