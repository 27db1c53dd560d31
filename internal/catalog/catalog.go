package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/haulrate/internal/pricing"
)

// ErrMaterialNotFound is returned when no material matches the lookup.
var ErrMaterialNotFound = errors.New("material not found")

// Material is one catalog entry with its default disposal rate plan.
type Material struct {
	ID     int64            `json:"id"`
	Name   string           `json:"name"`
	GLCode string           `json:"glCode"`
	Plan   pricing.RatePlan `json:"plan"`
	Active bool             `json:"active"`
}

// Store is a read-only lookup over the materials table.
type Store struct {
	db *sql.DB
}

// NewStore returns a catalog store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectMaterial = `
	SELECT id, name, gl_code, ` + PlanColumns + `, active
	FROM materials
`

// List returns catalog materials ordered by name.
func (s *Store) List(ctx context.Context, activeOnly bool) ([]Material, error) {
	rows, err := s.db.QueryContext(ctx, selectMaterial+`
		WHERE (? = 0 OR active = 1)
		ORDER BY name ASC, id ASC
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query materials: %w", err)
	}
	defer rows.Close()

	materials := make([]Material, 0)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate materials: %w", err)
	}

	return materials, nil
}

// Get returns the material with the given id.
func (s *Store) Get(ctx context.Context, id int64) (Material, error) {
	return s.getOne(ctx, `WHERE id = ?`, id)
}

// GetByName returns the material with the given name.
func (s *Store) GetByName(ctx context.Context, name string) (Material, error) {
	return s.getOne(ctx, `WHERE name = ?`, name)
}

// Plan returns a material and a private copy of its default rate plan.
// Callers may edit the returned plan freely; the catalog entry is unaffected.
func (s *Store) Plan(ctx context.Context, id int64) (Material, pricing.RatePlan, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return Material{}, pricing.RatePlan{}, err
	}
	if !m.Active {
		return Material{}, pricing.RatePlan{}, fmt.Errorf("material %d is inactive: %w", id, ErrMaterialNotFound)
	}
	return m, m.Plan.Clone(), nil
}

func (s *Store) getOne(ctx context.Context, where string, arg any) (Material, error) {
	row := s.db.QueryRowContext(ctx, selectMaterial+where, arg)
	m, err := scanMaterial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Material{}, ErrMaterialNotFound
	}
	return m, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMaterial(sc scanner) (Material, error) {
	var (
		m   Material
		rec PlanRecord
	)
	dest := append([]any{&m.ID, &m.Name, &m.GLCode}, rec.Dest()...)
	dest = append(dest, &m.Active)
	if err := sc.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Material{}, err
		}
		return Material{}, fmt.Errorf("scan material: %w", err)
	}
	m.Plan = rec.Plan()
	return m, nil
}

// PlanColumns lists the rate plan columns shared by materials and fee_templates.
const PlanColumns = `unit, rate_per_unit, included_allowance, overage_threshold, overage_fee,
	minimum_charge_enabled, minimum_charge, allows_per_container, container_flat_rate`

// PlanRecord is the row form of a rate plan. Amounts are stored as TEXT so they
// round-trip without float conversion.
type PlanRecord struct {
	Unit                 string
	RatePerUnit          decimal.Decimal
	IncludedAllowance    decimal.Decimal
	OverageThreshold     decimal.Decimal
	OverageFee           decimal.Decimal
	MinimumChargeEnabled bool
	MinimumCharge        decimal.NullDecimal
	AllowsPerContainer   bool
	ContainerFlatRate    decimal.NullDecimal
}

// Dest returns scan destinations in PlanColumns order.
func (r *PlanRecord) Dest() []any {
	return []any{
		&r.Unit,
		&r.RatePerUnit,
		&r.IncludedAllowance,
		&r.OverageThreshold,
		&r.OverageFee,
		&r.MinimumChargeEnabled,
		&r.MinimumCharge,
		&r.AllowsPerContainer,
		&r.ContainerFlatRate,
	}
}

// Plan converts the record into a rate plan.
func (r PlanRecord) Plan() pricing.RatePlan {
	p := pricing.RatePlan{
		Unit:                 pricing.UnitOfMeasure(r.Unit),
		RatePerUnit:          r.RatePerUnit,
		IncludedAllowance:    r.IncludedAllowance,
		OverageThreshold:     r.OverageThreshold,
		OverageFee:           r.OverageFee,
		MinimumChargeEnabled: r.MinimumChargeEnabled,
		AllowsPerContainer:   r.AllowsPerContainer,
	}
	if r.MinimumCharge.Valid {
		v := r.MinimumCharge.Decimal
		p.MinimumCharge = &v
	}
	if r.ContainerFlatRate.Valid {
		v := r.ContainerFlatRate.Decimal
		p.ContainerFlatRate = &v
	}
	return p
}

// PlanArgs returns insert/update arguments for p in PlanColumns order.
func PlanArgs(p pricing.RatePlan) []any {
	return []any{
		string(p.Unit),
		p.RatePerUnit.String(),
		p.IncludedAllowance.String(),
		p.OverageThreshold.String(),
		p.OverageFee.String(),
		p.MinimumChargeEnabled,
		nullableString(p.MinimumCharge),
		p.AllowsPerContainer,
		nullableString(p.ContainerFlatRate),
	}
}

func nullableString(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return v.String()
}
