package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/promptvprompt/server-go/internal/user"
)

// UserRepository persists user accounts and profiles in PostgreSQL.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user and its profile row.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO user_profiles (user_id, display_name, games_played, wins, losses, draws, daily_games_played, last_game_date)
		VALUES ($1, $2, 0, 0, 0, 0, 0, NULL)`,
		u.ID, u.DisplayName,
	); err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	return tx.Commit(ctx)
}

const userSelect = `
	SELECT u.id, u.email, u.password_hash, p.display_name, u.created_at, u.updated_at,
		p.games_played, p.wins, p.losses, p.draws, p.daily_games_played, p.last_game_date
	FROM users u
	JOIN user_profiles p ON p.user_id = u.id`

// GetByID loads a user and profile by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.scanUser(r.db.Pool().QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
}

// GetByEmail loads a user and profile by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.scanUser(r.db.Pool().QueryRow(ctx, userSelect+` WHERE u.email = $1`, email))
}

// ExistsByEmail reports whether an account uses the given email.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Pool().QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&exists)
	return exists, err
}

// ExistsByDisplayName reports whether a profile uses the given display name.
func (r *UserRepository) ExistsByDisplayName(ctx context.Context, displayName string) (bool, error) {
	var exists bool
	err := r.db.Pool().QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_profiles WHERE display_name = $1)`, displayName,
	).Scan(&exists)
	return exists, err
}

// UpdateProfile replaces a user's profile statistics.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, profile user.Profile) error {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE user_profiles
		SET games_played = $2, wins = $3, losses = $4, draws = $5,
			daily_games_played = $6, last_game_date = $7
		WHERE user_id = $1`,
		userID, profile.GamesPlayed, profile.Wins, profile.Losses, profile.Draws,
		profile.DailyGamesPlayed, profile.LastGameDate,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile for user %s not found", userID)
	}
	return nil
}

func (r *UserRepository) scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt,
		&u.Profile.GamesPlayed, &u.Profile.Wins, &u.Profile.Losses, &u.Profile.Draws,
		&u.Profile.DailyGamesPlayed, &u.Profile.LastGameDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}
