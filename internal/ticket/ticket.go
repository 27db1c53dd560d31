package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Simplici0/haulrate/internal/catalog"
	"github.com/Simplici0/haulrate/internal/pricing"
)

// ErrNoLines prevents building a ticket without any material entries.
var ErrNoLines = errors.New("ticket has no lines")

// PlanSource resolves a material to a private copy of its default rate plan.
type PlanSource interface {
	Plan(ctx context.Context, materialID int64) (catalog.Material, pricing.RatePlan, error)
}

// Policy holds the business factors applied on top of catalog rates.
type Policy struct {
	TaxRate         decimal.Decimal
	TippingDiscount decimal.Decimal
	CustomerMarkup  decimal.Decimal
}

// DefaultPolicy bills catalog rates as-is with the default tax and tipping factors.
func DefaultPolicy() Policy {
	return Policy{
		TaxRate:         pricing.DefaultTaxRate,
		TippingDiscount: pricing.DefaultTippingDiscount,
		CustomerMarkup:  decimal.NewFromInt(1),
	}
}

// PlanOverride is a per-ticket edit of the disposal plan. Nil fields keep the catalog value.
// The tipping fields set the hauler's rates directly; without TippingContainerRate the
// hauler pays the customer's container rate.
type PlanOverride struct {
	RatePerUnit          *decimal.Decimal `json:"ratePerUnit,omitempty"`
	IncludedAllowance    *decimal.Decimal `json:"includedAllowance,omitempty"`
	OverageThreshold     *decimal.Decimal `json:"overageThreshold,omitempty"`
	OverageFee           *decimal.Decimal `json:"overageFee,omitempty"`
	MinimumCharge        *decimal.Decimal `json:"minimumCharge,omitempty"`
	ContainerFlatRate    *decimal.Decimal `json:"containerFlatRate,omitempty"`
	TippingRatePerUnit   *decimal.Decimal `json:"tippingRatePerUnit,omitempty"`
	TippingContainerRate *decimal.Decimal `json:"tippingContainerRate,omitempty"`
}

// Apply returns a new plan with the override's fields set. p is not modified.
func (o *PlanOverride) Apply(p pricing.RatePlan) pricing.RatePlan {
	out := p.Clone()
	if o == nil {
		return out
	}
	if o.RatePerUnit != nil {
		out.RatePerUnit = *o.RatePerUnit
	}
	if o.IncludedAllowance != nil {
		out.IncludedAllowance = *o.IncludedAllowance
	}
	if o.OverageThreshold != nil {
		out.OverageThreshold = *o.OverageThreshold
	}
	if o.OverageFee != nil {
		out.OverageFee = *o.OverageFee
	}
	if o.MinimumCharge != nil {
		v := *o.MinimumCharge
		out.MinimumChargeEnabled = true
		out.MinimumCharge = &v
	}
	if o.ContainerFlatRate != nil {
		v := *o.ContainerFlatRate
		out.ContainerFlatRate = &v
	}
	return out
}

// LineInput is one material entry as captured on the ticket form.
// Weight-based materials may give GrossWeight/TareWeight in pounds instead of NetAmount.
type LineInput struct {
	MaterialID  int64            `json:"materialId"`
	Mode        pricing.Mode     `json:"mode,omitempty"`
	NetAmount   *decimal.Decimal `json:"netAmount,omitempty"`
	GrossWeight *decimal.Decimal `json:"grossWeight,omitempty"`
	TareWeight  *decimal.Decimal `json:"tareWeight,omitempty"`
	Override    *PlanOverride    `json:"override,omitempty"`
}

// Request is everything needed to price a ticket.
type Request struct {
	Taxable bool        `json:"taxable"`
	Lines   []LineInput `json:"lines"`
}

// Line binds a rate plan snapshot and a measured quantity to its computed charges.
type Line struct {
	MaterialID   int64                    `json:"materialId"`
	MaterialName string                   `json:"materialName"`
	GLCode       string                   `json:"glCode"`
	Mode         pricing.Mode             `json:"mode"`
	DisposalPlan pricing.RatePlan         `json:"disposalPlan"`
	TippingPlan  pricing.RatePlan         `json:"tippingPlan"`
	Quantity     pricing.MeasuredQuantity `json:"quantity"`
	Disposal     pricing.ChargeBreakdown  `json:"disposal"`
	Tipping      pricing.ChargeBreakdown  `json:"tipping"`
}

// Totals rolls up every line on a ticket.
type Totals struct {
	DisposalSubtotal decimal.Decimal `json:"disposalSubtotal"`
	DisposalTax      decimal.Decimal `json:"disposalTax"`
	DisposalTotal    decimal.Decimal `json:"disposalTotal"`
	TippingTotal     decimal.Decimal `json:"tippingTotal"`
	Margin           decimal.Decimal `json:"margin"`
}

// Ticket is the priced payload handed to the backend for submission.
type Ticket struct {
	ID        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Taxable   bool            `json:"taxable"`
	TaxRate   decimal.Decimal `json:"taxRate"`
	Lines     []Line          `json:"lines"`
	Totals    Totals          `json:"totals"`
}

// Builder prices tickets against a plan source.
type Builder struct {
	source PlanSource
	policy Policy
	clock  func() time.Time
}

// NewBuilder returns a builder using source for plans and policy for business factors.
func NewBuilder(source PlanSource, policy Policy) *Builder {
	return &Builder{source: source, policy: policy, clock: time.Now}
}

// Build prices every line of req. Lines are independent and computed concurrently;
// the first failing line aborts the build.
func (b *Builder) Build(ctx context.Context, req Request) (Ticket, error) {
	if len(req.Lines) == 0 {
		return Ticket{}, ErrNoLines
	}

	lines := make([]Line, len(req.Lines))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range req.Lines {
		g.Go(func() error {
			line, err := b.buildLine(gctx, in, req.Taxable)
			if err != nil {
				return fmt.Errorf("line %d (material %d): %w", i+1, in.MaterialID, err)
			}
			lines[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Ticket{}, err
	}

	return Ticket{
		ID:        uuid.New(),
		CreatedAt: b.clock().UTC(),
		Taxable:   req.Taxable,
		TaxRate:   b.policy.TaxRate,
		Lines:     lines,
		Totals:    sumLines(lines),
	}, nil
}

func (b *Builder) buildLine(ctx context.Context, in LineInput, taxable bool) (Line, error) {
	if err := ctx.Err(); err != nil {
		return Line{}, err
	}

	material, plan, err := b.source.Plan(ctx, in.MaterialID)
	if err != nil {
		return Line{}, err
	}

	disposal := in.Override.Apply(pricing.ScaleRate(plan, b.policy.CustomerMarkup))
	tipping := pricing.DeriveTippingPlan(disposal, b.policy.TippingDiscount)
	if in.Override != nil && in.Override.TippingRatePerUnit != nil {
		tipping.RatePerUnit = *in.Override.TippingRatePerUnit
	}
	if in.Override != nil && in.Override.TippingContainerRate != nil {
		v := *in.Override.TippingContainerRate
		tipping.ContainerFlatRate = &v
	}

	mode := in.Mode
	if mode == "" {
		mode = pricing.ModePerUnit
	}

	line := Line{
		MaterialID:   material.ID,
		MaterialName: material.Name,
		GLCode:       material.GLCode,
		Mode:         mode,
		DisposalPlan: disposal,
		TippingPlan:  tipping,
	}

	switch mode {
	case pricing.ModePerUnit:
		qty, err := measure(disposal.Unit, in, true)
		if err != nil {
			return Line{}, err
		}
		line.Quantity = qty
		if line.Disposal, err = pricing.ComputeUnitCharge(disposal, qty, taxable, b.policy.TaxRate); err != nil {
			return Line{}, err
		}
		// The hauler's tipping fee is a cost, never taxed.
		if line.Tipping, err = pricing.ComputeUnitCharge(tipping, qty, false, decimal.Zero); err != nil {
			return Line{}, err
		}
	case pricing.ModePerContainer:
		// Quantity is recorded on the line but plays no part in the charge.
		qty, err := measure(disposal.Unit, in, false)
		if err != nil {
			return Line{}, err
		}
		line.Quantity = qty
		if line.Disposal, err = pricing.ComputeContainerCharge(disposal); err != nil {
			return Line{}, err
		}
		if line.Disposal, err = pricing.ApplyTax(line.Disposal, taxable, b.policy.TaxRate); err != nil {
			return Line{}, err
		}
		if line.Tipping, err = pricing.ComputeContainerCharge(tipping); err != nil {
			return Line{}, err
		}
	default:
		return Line{}, &pricing.UnsupportedModeError{Mode: mode}
	}

	return line, nil
}

func measure(unit pricing.UnitOfMeasure, in LineInput, required bool) (pricing.MeasuredQuantity, error) {
	if in.GrossWeight != nil || in.TareWeight != nil {
		if in.GrossWeight == nil || in.TareWeight == nil {
			return pricing.MeasuredQuantity{}, &pricing.InvalidQuantityError{Reason: "gross and tare weights must be given together"}
		}
		return pricing.FromWeights(unit, *in.GrossWeight, *in.TareWeight)
	}
	if in.NetAmount == nil {
		if required {
			return pricing.MeasuredQuantity{}, &pricing.InvalidQuantityError{Reason: "net amount is required"}
		}
		return pricing.MeasuredQuantity{Unit: unit, NetAmount: decimal.Zero}, nil
	}
	if in.NetAmount.IsNegative() {
		return pricing.MeasuredQuantity{}, &pricing.InvalidQuantityError{Reason: "net amount must not be negative"}
	}
	return pricing.MeasuredQuantity{Unit: unit, NetAmount: *in.NetAmount}, nil
}

func sumLines(lines []Line) Totals {
	t := Totals{
		DisposalSubtotal: decimal.Zero,
		DisposalTax:      decimal.Zero,
		DisposalTotal:    decimal.Zero,
		TippingTotal:     decimal.Zero,
	}
	for _, l := range lines {
		t.DisposalSubtotal = t.DisposalSubtotal.Add(l.Disposal.Subtotal)
		t.DisposalTax = t.DisposalTax.Add(l.Disposal.TaxAmount)
		t.DisposalTotal = t.DisposalTotal.Add(l.Disposal.Total)
		t.TippingTotal = t.TippingTotal.Add(l.Tipping.Total)
	}
	t.Margin = t.DisposalSubtotal.Sub(t.TippingTotal)
	return t
}
