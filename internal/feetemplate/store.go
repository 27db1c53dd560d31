package feetemplate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/haulrate/internal/catalog"
)

// ErrTemplateNotFound is returned when no fee template matches the id.
var ErrTemplateNotFound = errors.New("fee template not found")

// Store persists fee templates.
type Store struct {
	db *sql.DB
}

// NewStore returns a template store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectTemplate = `
	SELECT id, name, gl_code, material_id, ` + catalog.PlanColumns + `, active
	FROM fee_templates
`

// List returns templates, newest first. A materialID of 0 lists every material.
func (s *Store) List(ctx context.Context, materialID int64) ([]Template, error) {
	rows, err := s.db.QueryContext(ctx, selectTemplate+`
		WHERE (? = 0 OR material_id = ?)
		ORDER BY id DESC
	`, materialID, materialID)
	if err != nil {
		return nil, fmt.Errorf("query fee templates: %w", err)
	}
	defer rows.Close()

	templates := make([]Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fee templates: %w", err)
	}

	return templates, nil
}

// Get returns the template with the given id.
func (s *Store) Get(ctx context.Context, id int64) (Template, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, selectTemplate+`WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrTemplateNotFound
	}
	return t, err
}

// Create inserts t and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, t Template) (Template, error) {
	if err := s.ensureMaterial(ctx, t.MaterialID); err != nil {
		return Template{}, err
	}

	args := append([]any{t.Name, t.GLCode, t.MaterialID}, catalog.PlanArgs(t.Plan)...)
	args = append(args, t.Active)
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO fee_templates (name, gl_code, material_id, `+catalog.PlanColumns+`, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return Template{}, fmt.Errorf("insert fee template: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Template{}, fmt.Errorf("read fee template id: %w", err)
	}
	t.ID = id
	return t, nil
}

// Update replaces the template with the given id.
func (s *Store) Update(ctx context.Context, id int64, t Template) (Template, error) {
	if err := s.ensureMaterial(ctx, t.MaterialID); err != nil {
		return Template{}, err
	}

	args := append([]any{t.Name, t.GLCode, t.MaterialID}, catalog.PlanArgs(t.Plan)...)
	args = append(args, t.Active, id)
	result, err := s.db.ExecContext(ctx, `
		UPDATE fee_templates
		SET
			name = ?,
			gl_code = ?,
			material_id = ?,
			unit = ?,
			rate_per_unit = ?,
			included_allowance = ?,
			overage_threshold = ?,
			overage_fee = ?,
			minimum_charge_enabled = ?,
			minimum_charge = ?,
			allows_per_container = ?,
			container_flat_rate = ?,
			active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, args...)
	if err != nil {
		return Template{}, fmt.Errorf("update fee template: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Template{}, fmt.Errorf("update fee template: %w", err)
	}
	if affected == 0 {
		return Template{}, ErrTemplateNotFound
	}

	t.ID = id
	return t, nil
}

func (s *Store) ensureMaterial(ctx context.Context, materialID int64) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM materials WHERE id = ? LIMIT 1)`, materialID).Scan(&exists); err != nil {
		return fmt.Errorf("check material existence: %w", err)
	}
	if !exists {
		return catalog.ErrMaterialNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(sc scanner) (Template, error) {
	var (
		t   Template
		rec catalog.PlanRecord
	)
	dest := append([]any{&t.ID, &t.Name, &t.GLCode, &t.MaterialID}, rec.Dest()...)
	dest = append(dest, &t.Active)
	if err := sc.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Template{}, err
		}
		return Template{}, fmt.Errorf("scan fee template: %w", err)
	}
	t.Plan = rec.Plan()
	return t, nil
}
