package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/promptvprompt/server-go/internal/game"
)

// GameRepository persists game sessions in PostgreSQL.
type GameRepository struct {
	db *DB
}

// NewGameRepository creates a game session repository.
func NewGameRepository(db *DB) *GameRepository {
	return &GameRepository{db: db}
}

// Save writes the full session record atomically, inserting or replacing
// the row in a single statement.
func (r *GameRepository) Save(ctx context.Context, session *game.GameSession) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO games (
			id, player_one_id, player_two_id, template_id,
			generated_character, generated_secret,
			phase, status, max_turns_per_phase, max_chars_per_message,
			is_transitioning, transition_ends_at,
			player_one_defense_summary, player_two_defense_summary,
			winner_id, end_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			status = EXCLUDED.status,
			is_transitioning = EXCLUDED.is_transitioning,
			transition_ends_at = EXCLUDED.transition_ends_at,
			player_one_defense_summary = EXCLUDED.player_one_defense_summary,
			player_two_defense_summary = EXCLUDED.player_two_defense_summary,
			winner_id = EXCLUDED.winner_id,
			end_reason = EXCLUDED.end_reason,
			updated_at = EXCLUDED.updated_at`,
		session.ID, session.PlayerOneID, session.PlayerTwoID, session.TemplateID,
		session.GeneratedCharacter, session.GeneratedSecret,
		string(session.Phase), string(session.Status),
		session.MaxTurnsPerPhase, session.MaxCharsPerMessage,
		session.IsTransitioning, session.TransitionEndsAt,
		nullable(session.PlayerOneDefenseSummary), nullable(session.PlayerTwoDefenseSummary),
		nullable(session.WinnerID), nullable(string(session.EndReason)),
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}
	return nil
}

// FindByID loads a session by ID.
func (r *GameRepository) FindByID(ctx context.Context, gameID string) (*game.GameSession, error) {
	row := r.db.Pool().QueryRow(ctx, `
		SELECT id, player_one_id, player_two_id, template_id,
			generated_character, generated_secret,
			phase, status, max_turns_per_phase, max_chars_per_message,
			is_transitioning, transition_ends_at,
			COALESCE(player_one_defense_summary, ''), COALESCE(player_two_defense_summary, ''),
			COALESCE(winner_id, ''), COALESCE(end_reason, ''),
			created_at, updated_at
		FROM games WHERE id = $1`,
		gameID,
	)

	var session game.GameSession
	var phase, status, endReason string
	err := row.Scan(
		&session.ID, &session.PlayerOneID, &session.PlayerTwoID, &session.TemplateID,
		&session.GeneratedCharacter, &session.GeneratedSecret,
		&phase, &status, &session.MaxTurnsPerPhase, &session.MaxCharsPerMessage,
		&session.IsTransitioning, &session.TransitionEndsAt,
		&session.PlayerOneDefenseSummary, &session.PlayerTwoDefenseSummary,
		&session.WinnerID, &endReason,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &game.NotFoundError{Resource: "game", ID: gameID}
		}
		return nil, fmt.Errorf("failed to load game: %w", err)
	}

	session.Phase = game.GamePhase(phase)
	session.Status = game.GameStatus(status)
	session.EndReason = game.GameEndReason(endReason)

	return &session, nil
}

// nullable maps "" to NULL so empty optional columns stay NULL in storage.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
