package seed

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/haulrate/internal/catalog"
	"github.com/Simplici0/haulrate/internal/pricing"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

type defaultMaterial struct {
	name   string
	glCode string
	plan   pricing.RatePlan
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func amountPtr(s string) *decimal.Decimal {
	v := amount(s)
	return &v
}

// defaultMaterials is the starter catalog loaded into an empty database.
var defaultMaterials = []defaultMaterial{
	{
		name:   "Mixed C&D Debris",
		glCode: "4100-DISP",
		plan: pricing.RatePlan{
			Unit:                 pricing.UnitTons,
			RatePerUnit:          amount("65.00"),
			IncludedAllowance:    amount("2"),
			OverageThreshold:     amount("5"),
			OverageFee:           amount("25.00"),
			MinimumChargeEnabled: true,
			MinimumCharge:        amountPtr("130.00"),
		},
	},
	{
		name:   "Concrete",
		glCode: "4110-DISP",
		plan: pricing.RatePlan{
			Unit:                 pricing.UnitTons,
			RatePerUnit:          amount("95.00"),
			IncludedAllowance:    amount("1"),
			OverageThreshold:     amount("10"),
			OverageFee:           amount("40.00"),
			MinimumChargeEnabled: true,
			AllowsPerContainer:   true,
			ContainerFlatRate:    amountPtr("185.00"),
		},
	},
	{
		name:   "Tires",
		glCode: "4200-DISP",
		plan: pricing.RatePlan{
			Unit:              pricing.UnitItems,
			RatePerUnit:       amount("12.50"),
			IncludedAllowance: amount("0"),
			OverageThreshold:  amount("20"),
			OverageFee:        amount("50.00"),
		},
	},
	{
		name:   "Used Motor Oil",
		glCode: "4300-DISP",
		plan: pricing.RatePlan{
			Unit:                 pricing.UnitGallons,
			RatePerUnit:          amount("1.75"),
			IncludedAllowance:    amount("5"),
			OverageThreshold:     amount("55"),
			OverageFee:           amount("15.00"),
			MinimumChargeEnabled: true,
			MinimumCharge:        amountPtr("10.00"),
		},
	},
	{
		name:   "Yard Waste",
		glCode: "4400-DISP",
		plan: pricing.RatePlan{
			Unit:               pricing.UnitYards,
			RatePerUnit:        amount("18.00"),
			IncludedAllowance:  amount("2"),
			OverageThreshold:   amount("30"),
			OverageFee:         amount("20.00"),
			AllowsPerContainer: true,
			ContainerFlatRate:  amountPtr("120.00"),
		},
	},
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	for _, m := range defaultMaterials {
		if err := ensureMaterial(tx, m, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureMaterial(tx *sql.Tx, m defaultMaterial, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM materials WHERE name = ? LIMIT 1)`, m.name).Scan(&exists); err != nil {
		return fmt.Errorf("check material %q existence: %w", m.name, err)
	}
	if exists {
		return nil
	}

	args := append([]any{m.name, m.glCode}, catalog.PlanArgs(m.plan)...)
	if _, err := tx.Exec(`
		INSERT INTO materials (name, gl_code, `+catalog.PlanColumns+`, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE)
	`, args...); err != nil {
		return fmt.Errorf("insert material %q: %w", m.name, err)
	}
	stats.Inserts++
	return nil
}
