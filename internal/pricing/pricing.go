package pricing

import "github.com/shopspring/decimal"

// DefaultTaxRate is the sales tax rate applied to taxable disposal charges.
var DefaultTaxRate = decimal.RequireFromString("0.0825")

// DefaultTippingDiscount is the share of the disposal rate a hauler pays the site.
var DefaultTippingDiscount = decimal.RequireFromString("0.85")

// Mode selects how a charge is priced.
type Mode string

const (
	ModePerUnit      Mode = "per_unit"
	ModePerContainer Mode = "per_container"
)

// RatePlan is the pricing configuration for one material/fee combination.
type RatePlan struct {
	Unit              UnitOfMeasure   `json:"unit"`
	RatePerUnit       decimal.Decimal `json:"ratePerUnit"`
	IncludedAllowance decimal.Decimal `json:"includedAllowance"`
	OverageThreshold  decimal.Decimal `json:"overageThreshold"`
	OverageFee        decimal.Decimal `json:"overageFee"`

	// MinimumChargeEnabled turns the subtotal floor on. With the floor on and
	// MinimumCharge nil, the floor is IncludedAllowance x RatePerUnit.
	MinimumChargeEnabled bool             `json:"minimumChargeEnabled"`
	MinimumCharge        *decimal.Decimal `json:"minimumCharge,omitempty"`

	AllowsPerContainer bool             `json:"allowsPerContainer"`
	ContainerFlatRate  *decimal.Decimal `json:"containerFlatRate,omitempty"`
}

// Clone returns a copy of p that shares no pointers with it.
func (p RatePlan) Clone() RatePlan {
	out := p
	if p.MinimumCharge != nil {
		v := *p.MinimumCharge
		out.MinimumCharge = &v
	}
	if p.ContainerFlatRate != nil {
		v := *p.ContainerFlatRate
		out.ContainerFlatRate = &v
	}
	return out
}

// Validate checks every field of the plan. Both pricing modes call it.
func (p RatePlan) Validate() error {
	if p.Unit == "" {
		return &InvalidRatePlanError{Field: "unit", Reason: "is required"}
	}
	if !p.Unit.Valid() {
		return &InvalidRatePlanError{Field: "unit", Reason: "is not a known unit of measure"}
	}

	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"ratePerUnit", p.RatePerUnit},
		{"includedAllowance", p.IncludedAllowance},
		{"overageThreshold", p.OverageThreshold},
		{"overageFee", p.OverageFee},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return &InvalidRatePlanError{Field: f.name, Reason: "must not be negative"}
		}
	}
	if p.MinimumCharge != nil && p.MinimumCharge.IsNegative() {
		return &InvalidRatePlanError{Field: "minimumCharge", Reason: "must not be negative"}
	}
	if p.ContainerFlatRate != nil && p.ContainerFlatRate.IsNegative() {
		return &InvalidRatePlanError{Field: "containerFlatRate", Reason: "must not be negative"}
	}
	return nil
}

// MeasuredQuantity is the observed amount being billed, in the plan's unit.
type MeasuredQuantity struct {
	Unit      UnitOfMeasure   `json:"unit"`
	NetAmount decimal.Decimal `json:"netAmount"`
}

// ChargeBreakdown contains every intermediate value of one charge calculation.
type ChargeBreakdown struct {
	Mode               Mode            `json:"mode"`
	ChargeableQuantity decimal.Decimal `json:"chargeableQuantity"`
	BaseCharge         decimal.Decimal `json:"baseCharge"`
	OverageApplied     bool            `json:"overageApplied"`
	OverageAmount      decimal.Decimal `json:"overageAmount"`
	MinimumCharge      decimal.Decimal `json:"minimumCharge"`
	MinimumApplied     bool            `json:"minimumApplied"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TaxAmount          decimal.Decimal `json:"taxAmount"`
	Total              decimal.Decimal `json:"total"`
}

// EffectiveMinimumCharge returns the subtotal floor for p.
func EffectiveMinimumCharge(p RatePlan) decimal.Decimal {
	if !p.MinimumChargeEnabled {
		return decimal.Zero
	}
	if p.MinimumCharge != nil {
		return *p.MinimumCharge
	}
	return p.IncludedAllowance.Mul(p.RatePerUnit)
}

// ComputeUnitCharge prices a measured quantity against a per-unit rate plan.
func ComputeUnitCharge(p RatePlan, q MeasuredQuantity, taxable bool, taxRate decimal.Decimal) (ChargeBreakdown, error) {
	if err := p.Validate(); err != nil {
		return ChargeBreakdown{}, err
	}
	if q.Unit != p.Unit {
		return ChargeBreakdown{}, &InvalidQuantityError{
			Reason: "quantity is in " + string(q.Unit) + ", plan is in " + string(p.Unit),
			Err:    ErrUnitMismatch,
		}
	}
	if q.NetAmount.IsNegative() {
		return ChargeBreakdown{}, &InvalidQuantityError{Reason: "net amount must not be negative"}
	}

	chargeable := decimal.Max(decimal.Zero, q.NetAmount.Sub(p.IncludedAllowance))
	base := chargeable.Mul(p.RatePerUnit)

	// Strictly greater: a quantity sitting on the threshold carries no overage fee.
	overageApplied := q.NetAmount.GreaterThan(p.OverageThreshold)
	overage := decimal.Zero
	if overageApplied {
		overage = p.OverageFee
	}

	b := ChargeBreakdown{
		Mode:               ModePerUnit,
		ChargeableQuantity: chargeable,
		BaseCharge:         base,
		OverageApplied:     overageApplied,
		OverageAmount:      overage,
	}
	b = applyMinimum(b, EffectiveMinimumCharge(p))

	return ApplyTax(b, taxable, taxRate)
}

// ComputeContainerCharge prices one container at the plan's flat rate.
// The measured quantity plays no part in the charge.
func ComputeContainerCharge(p RatePlan) (ChargeBreakdown, error) {
	if !p.AllowsPerContainer {
		return ChargeBreakdown{}, &UnsupportedModeError{Mode: ModePerContainer}
	}
	if err := p.Validate(); err != nil {
		return ChargeBreakdown{}, err
	}
	if p.ContainerFlatRate == nil {
		return ChargeBreakdown{}, &InvalidRatePlanError{Field: "containerFlatRate", Reason: "is required for per-container pricing"}
	}

	flat := *p.ContainerFlatRate
	return ChargeBreakdown{
		Mode:               ModePerContainer,
		ChargeableQuantity: decimal.Zero,
		BaseCharge:         flat,
		OverageAmount:      decimal.Zero,
		MinimumCharge:      decimal.Zero,
		Subtotal:           flat,
		TaxAmount:          decimal.Zero,
		Total:              flat,
	}, nil
}

// ApplyTax recomputes the tax amount and total of b from its subtotal.
func ApplyTax(b ChargeBreakdown, taxable bool, taxRate decimal.Decimal) (ChargeBreakdown, error) {
	if taxRate.IsNegative() {
		return ChargeBreakdown{}, &InvalidRatePlanError{Field: "taxRate", Reason: "must not be negative"}
	}

	b.TaxAmount = decimal.Zero
	if taxable {
		b.TaxAmount = b.Subtotal.Mul(taxRate)
	}
	b.Total = b.Subtotal.Add(b.TaxAmount)
	return b, nil
}

func applyMinimum(b ChargeBreakdown, floor decimal.Decimal) ChargeBreakdown {
	combined := b.BaseCharge.Add(b.OverageAmount)
	b.MinimumCharge = floor
	b.MinimumApplied = floor.GreaterThan(combined)
	b.Subtotal = decimal.Max(floor, combined)
	return b
}

// ScaleRate returns a copy of p with its per-unit rate multiplied by factor.
// Allowance, threshold, overage fee, minimum and container fields are kept as is.
func ScaleRate(p RatePlan, factor decimal.Decimal) RatePlan {
	out := p.Clone()
	out.RatePerUnit = p.RatePerUnit.Mul(factor)
	return out
}

// DeriveTippingPlan builds the hauler-side plan from a disposal plan.
// The result is a snapshot: edits to the disposal plan afterwards require deriving again.
func DeriveTippingPlan(disposal RatePlan, discountFactor decimal.Decimal) RatePlan {
	return ScaleRate(disposal, discountFactor)
}
