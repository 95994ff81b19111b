package user

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// User is a registered player account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Profile Profile
}

// Profile carries per-player lifetime and daily game statistics.
type Profile struct {
	GamesPlayed      int
	Wins             int
	Losses           int
	Draws            int
	DailyGamesPlayed int
	LastGameDate     *time.Time
}

// Store persists user accounts and their profiles.
type Store interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByDisplayName(ctx context.Context, displayName string) (bool, error)
	UpdateProfile(ctx context.Context, userID string, profile Profile) error
}

// Manager handles registration, authentication, and result bookkeeping.
type Manager struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a user manager.
func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Register creates a new account with a bcrypt-hashed password. Email and
// display name must both be unused.
func (m *Manager) Register(ctx context.Context, email, password, displayName string) (*User, error) {
	if email == "" || password == "" || displayName == "" {
		return nil, fmt.Errorf("email, password, and display name are required")
	}

	if exists, err := m.store.ExistsByEmail(ctx, email); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("email is already registered")
	}

	if exists, err := m.store.ExistsByDisplayName(ctx, displayName); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("username is already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := m.now()
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.store.Create(ctx, u); err != nil {
		return nil, err
	}

	m.logger.Info("user registered",
		zap.String("user_id", u.ID),
		zap.String("display_name", displayName),
	)

	return u, nil
}

// Authenticate verifies an email/password pair.
func (m *Manager) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := m.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	return u, nil
}

// PlayerExists reports whether a player ID resolves to a known account.
// Satisfies the game service's player directory.
func (m *Manager) PlayerExists(ctx context.Context, playerID string) (bool, error) {
	_, err := m.store.GetByID(ctx, playerID)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// RecordGameResult updates both players' profiles after a completed game.
// winnerID is empty for a draw. Daily counters reset at midnight UTC.
func (m *Manager) RecordGameResult(ctx context.Context, playerOneID, playerTwoID, winnerID string) error {
	for _, playerID := range []string{playerOneID, playerTwoID} {
		u, err := m.store.GetByID(ctx, playerID)
		if err != nil {
			return err
		}

		profile := u.Profile
		profile.GamesPlayed++

		switch winnerID {
		case "":
			profile.Draws++
		case playerID:
			profile.Wins++
		default:
			profile.Losses++
		}

		now := m.now().UTC()
		if profile.LastGameDate == nil || !sameUTCDay(*profile.LastGameDate, now) {
			profile.DailyGamesPlayed = 1
		} else {
			profile.DailyGamesPlayed++
		}
		profile.LastGameDate = &now

		if err := m.store.UpdateProfile(ctx, playerID, profile); err != nil {
			return err
		}
	}

	return nil
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
