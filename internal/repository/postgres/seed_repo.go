package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/freeeve/mercury-council/api/internal/model"
)

// OpeningVariants returns the seeded opening statement candidates for a
// role, in seed order.
func (s *Store) OpeningVariants(ctx context.Context, roleID string) ([]model.OpeningVariant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role_id, opening_text, initial_stances
		 FROM opening_variants WHERE role_id = $1 ORDER BY id`, roleID)
	if err != nil {
		return nil, fmt.Errorf("opening variants: %w", err)
	}
	defer rows.Close()

	var variants []model.OpeningVariant
	for rows.Next() {
		var v model.OpeningVariant
		var stances []byte
		if err := rows.Scan(&v.ID, &v.RoleID, &v.OpeningText, &stances); err != nil {
			return nil, fmt.Errorf("scan opening variant: %w", err)
		}
		if len(stances) > 0 {
			v.InitialStances = stances
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// Issues returns the seeded agenda in position order, options included.
func (s *Store) Issues(ctx context.Context) ([]model.IssueDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT issue_id, title, ui_prompt, options
		 FROM issue_definitions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("issues: %w", err)
	}
	defer rows.Close()

	var issues []model.IssueDefinition
	for rows.Next() {
		var def model.IssueDefinition
		var uiPrompt sql.NullString
		var options []byte
		if err := rows.Scan(&def.IssueID, &def.Title, &uiPrompt, &options); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		def.UIPrompt = uiPrompt.String
		if err := json.Unmarshal(options, &def.Options); err != nil {
			return nil, fmt.Errorf("unmarshal issue options: %w", err)
		}
		issues = append(issues, def)
	}
	return issues, rows.Err()
}

// ChairScript returns the seeded chair template for a script key. An
// unknown key returns an empty template, not an error.
func (s *Store) ChairScript(ctx context.Context, key string) (string, error) {
	var template string
	err := s.db.QueryRowContext(ctx,
		`SELECT template FROM japan_scripts WHERE script_key = $1`, key,
	).Scan(&template)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("chair script: %w", err)
	}
	return template, nil
}
