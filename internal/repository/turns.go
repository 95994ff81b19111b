package repository

import (
	"context"
	"fmt"

	"github.com/promptvprompt/server-go/internal/game"
)

// TurnRepository persists game turns in PostgreSQL.
type TurnRepository struct {
	db *DB
}

// NewTurnRepository creates a turn repository.
func NewTurnRepository(db *DB) *TurnRepository {
	return &TurnRepository{db: db}
}

// Save inserts a new turn. Turns are immutable; the unique constraint on
// (game_id, player_id, phase, turn_number) rejects duplicate numbering.
func (r *TurnRepository) Save(ctx context.Context, turn *game.GameTurn) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO game_turns (
			id, game_id, player_id, phase, turn_number,
			player_message, ai_response, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		turn.ID, turn.GameID, turn.PlayerID, string(turn.Phase),
		turn.TurnNumber, turn.PlayerMessage, turn.AIResponse, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	return nil
}

// CountByGamePlayerPhase counts committed turns for one player in one phase.
func (r *TurnRepository) CountByGamePlayerPhase(ctx context.Context, gameID, playerID string, phase game.GamePhase) (int, error) {
	var count int
	err := r.db.Pool().QueryRow(ctx, `
		SELECT COUNT(*) FROM game_turns
		WHERE game_id = $1 AND player_id = $2 AND phase = $3`,
		gameID, playerID, string(phase),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return count, nil
}

// FindOrderedByGamePlayerPhase lists one player's turns for a phase in turn
// order.
func (r *TurnRepository) FindOrderedByGamePlayerPhase(ctx context.Context, gameID, playerID string, phase game.GamePhase) ([]*game.GameTurn, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, game_id, player_id, phase, turn_number,
			player_message, ai_response, created_at
		FROM game_turns
		WHERE game_id = $1 AND player_id = $2 AND phase = $3
		ORDER BY turn_number ASC`,
		gameID, playerID, string(phase),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	turns := make([]*game.GameTurn, 0, 8)
	for rows.Next() {
		var turn game.GameTurn
		var phaseStr string
		if err := rows.Scan(
			&turn.ID, &turn.GameID, &turn.PlayerID, &phaseStr, &turn.TurnNumber,
			&turn.PlayerMessage, &turn.AIResponse, &turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Phase = game.GamePhase(phaseStr)
		turns = append(turns, &turn)
	}

	return turns, rows.Err()
}
