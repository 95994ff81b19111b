package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/promptvprompt/server-go/internal/game"
)

// TemplateRepository resolves scenario templates from PostgreSQL.
type TemplateRepository struct {
	db *DB
}

// NewTemplateRepository creates a scenario template repository.
func NewTemplateRepository(db *DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// SelectRandomActive picks one active template at random.
func (r *TemplateRepository) SelectRandomActive(ctx context.Context) (*game.ScenarioTemplate, error) {
	row := r.db.Pool().QueryRow(ctx, `
		SELECT id, name, character_template, secret_template, variables, is_active, created_at
		FROM scenario_templates
		WHERE is_active
		ORDER BY random()
		LIMIT 1`,
	)

	var template game.ScenarioTemplate
	err := row.Scan(
		&template.ID, &template.Name,
		&template.CharacterTemplate, &template.SecretTemplate,
		&template.Variables, &template.IsActive, &template.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &game.NotFoundError{Resource: "scenario template"}
		}
		return nil, fmt.Errorf("failed to select template: %w", err)
	}

	return &template, nil
}

// Create inserts a template, used by seeding.
func (r *TemplateRepository) Create(ctx context.Context, template *game.ScenarioTemplate) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO scenario_templates (id, name, character_template, secret_template, variables, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		template.ID, template.Name,
		template.CharacterTemplate, template.SecretTemplate,
		template.Variables, template.IsActive, template.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}
