package ticket

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/haulrate/internal/catalog"
	"github.com/Simplici0/haulrate/internal/pricing"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// fakeSource hands out clones of fixed plans and counts lookups.
type fakeSource struct {
	materials map[int64]catalog.Material
	calls     atomic.Int32
}

func (f *fakeSource) Plan(_ context.Context, id int64) (catalog.Material, pricing.RatePlan, error) {
	f.calls.Add(1)
	m, ok := f.materials[id]
	if !ok {
		return catalog.Material{}, pricing.RatePlan{}, catalog.ErrMaterialNotFound
	}
	return m, m.Plan.Clone(), nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{materials: map[int64]catalog.Material{
		1: {ID: 1, Name: "Mixed C&D Debris", GLCode: "4100-DISP", Active: true, Plan: pricing.RatePlan{
			Unit:                 pricing.UnitTons,
			RatePerUnit:          d("65.00"),
			IncludedAllowance:    d("2"),
			OverageThreshold:     d("5"),
			OverageFee:           d("25.00"),
			MinimumChargeEnabled: true,
			MinimumCharge:        dp("130.00"),
		}},
		2: {ID: 2, Name: "Concrete", GLCode: "4110-DISP", Active: true, Plan: pricing.RatePlan{
			Unit:               pricing.UnitTons,
			RatePerUnit:        d("95.00"),
			OverageThreshold:   d("10"),
			AllowsPerContainer: true,
			ContainerFlatRate:  dp("185.00"),
		}},
		3: {ID: 3, Name: "Tires", GLCode: "4200-DISP", Active: true, Plan: pricing.RatePlan{
			Unit:             pricing.UnitItems,
			RatePerUnit:      d("12.50"),
			OverageThreshold: d("20"),
			OverageFee:       d("50"),
		}},
	}}
}

func newTestBuilder(src PlanSource, policy Policy) *Builder {
	b := NewBuilder(src, policy)
	b.clock = func() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC) }
	return b
}

func TestBuild_PerUnitLineComputesDisposalAndTipping(t *testing.T) {
	b := newTestBuilder(newFakeSource(), DefaultPolicy())

	tk, err := b.Build(context.Background(), Request{
		Taxable: true,
		Lines:   []LineInput{{MaterialID: 1, NetAmount: dp("6")}},
	})
	require.NoError(t, err)
	require.Len(t, tk.Lines, 1)

	line := tk.Lines[0]
	assert.Equal(t, "Mixed C&D Debris", line.MaterialName)
	assert.Equal(t, pricing.ModePerUnit, line.Mode)
	assert.Equal(t, "285", line.Disposal.Subtotal.String())
	assert.Equal(t, "23.5125", line.Disposal.TaxAmount.String())
	assert.Equal(t, "308.5125", line.Disposal.Total.String())

	// 4 chargeable tons at 55.25 plus the 25 overage fee.
	assert.Equal(t, "55.25", line.TippingPlan.RatePerUnit.String())
	assert.Equal(t, "246", line.Tipping.Subtotal.String())
	assert.True(t, line.Tipping.TaxAmount.IsZero())

	assert.Equal(t, "308.5125", tk.Totals.DisposalTotal.String())
	assert.Equal(t, "246", tk.Totals.TippingTotal.String())
	assert.Equal(t, "39", tk.Totals.Margin.String())
	assert.Equal(t, time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), tk.CreatedAt)
	assert.NotEqual(t, uuid.Nil, tk.ID)
}

func TestBuild_GrossAndTareWeights(t *testing.T) {
	b := newTestBuilder(newFakeSource(), DefaultPolicy())

	tk, err := b.Build(context.Background(), Request{
		Lines: []LineInput{{MaterialID: 1, GrossWeight: dp("34000"), TareWeight: dp("22000")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "6", tk.Lines[0].Quantity.NetAmount.String())
	assert.Equal(t, "285", tk.Lines[0].Disposal.Total.String())

	_, err = b.Build(context.Background(), Request{
		Lines: []LineInput{{MaterialID: 1, GrossWeight: dp("34000")}},
	})
	var qErr *pricing.InvalidQuantityError
	require.ErrorAs(t, err, &qErr)
}

func TestBuild_ContainerLineIgnoresQuantity(t *testing.T) {
	b := newTestBuilder(newFakeSource(), DefaultPolicy())

	for _, net := range []string{"0", "3", "40"} {
		tk, err := b.Build(context.Background(), Request{
			Lines: []LineInput{{MaterialID: 2, Mode: pricing.ModePerContainer, NetAmount: dp(net)}},
		})
		require.NoError(t, err)
		line := tk.Lines[0]
		assert.Equal(t, "185", line.Disposal.Total.String(), "net=%s", net)
		assert.Equal(t, net, line.Quantity.NetAmount.String())
	}
}

func TestBuild_ContainerTippingRateOverride(t *testing.T) {
	src := newFakeSource()
	b := newTestBuilder(src, DefaultPolicy())

	tk, err := b.Build(context.Background(), Request{
		Lines: []LineInput{{
			MaterialID: 2,
			Mode:       pricing.ModePerContainer,
			Override:   &PlanOverride{TippingContainerRate: dp("150.00")},
		}},
	})
	require.NoError(t, err)

	line := tk.Lines[0]
	assert.Equal(t, "185", line.Disposal.Total.String())
	assert.Equal(t, "150", line.Tipping.Total.String())
	assert.Equal(t, "35", tk.Totals.Margin.String())
	assert.Equal(t, "185", src.materials[2].Plan.ContainerFlatRate.String())
	assert.Equal(t, "185", line.DisposalPlan.ContainerFlatRate.String())
}

func TestBuild_ContainerModeNotAllowed(t *testing.T) {
	b := newTestBuilder(newFakeSource(), DefaultPolicy())

	_, err := b.Build(context.Background(), Request{
		Lines: []LineInput{{MaterialID: 1, Mode: pricing.ModePerContainer}},
	})
	var modeErr *pricing.UnsupportedModeError
	require.ErrorAs(t, err, &modeErr)
	assert.Contains(t, err.Error(), "line 1")
}

func TestBuild_OverrideIsCopyOnWrite(t *testing.T) {
	src := newFakeSource()
	b := newTestBuilder(src, DefaultPolicy())

	tk, err := b.Build(context.Background(), Request{
		Lines: []LineInput{{
			MaterialID: 1,
			NetAmount:  dp("6"),
			Override: &PlanOverride{
				RatePerUnit:        dp("70"),
				MinimumCharge:      dp("400"),
				TippingRatePerUnit: dp("50"),
			},
		}},
	})
	require.NoError(t, err)

	line := tk.Lines[0]
	assert.Equal(t, "70", line.DisposalPlan.RatePerUnit.String())
	assert.Equal(t, "400", line.Disposal.Subtotal.String())
	assert.True(t, line.Disposal.MinimumApplied)
	assert.Equal(t, "50", line.TippingPlan.RatePerUnit.String())

	assert.Equal(t, "65", src.materials[1].Plan.RatePerUnit.String())
	assert.Equal(t, "130", src.materials[1].Plan.MinimumCharge.String())
}

func TestBuild_CustomerMarkupAndTippingDiscountAreConfigurable(t *testing.T) {
	policy := Policy{TaxRate: d("0.0825"), TippingDiscount: d("0.7"), CustomerMarkup: d("1.10")}
	b := newTestBuilder(newFakeSource(), policy)

	tk, err := b.Build(context.Background(), Request{
		Lines: []LineInput{{MaterialID: 3, NetAmount: dp("10")}},
	})
	require.NoError(t, err)

	line := tk.Lines[0]
	assert.Equal(t, "13.75", line.DisposalPlan.RatePerUnit.String())
	assert.Equal(t, "137.5", line.Disposal.Total.String())
	assert.Equal(t, "9.625", line.TippingPlan.RatePerUnit.String())
}

func TestBuild_ManyLinesInParallel(t *testing.T) {
	src := newFakeSource()
	b := newTestBuilder(src, DefaultPolicy())

	req := Request{}
	for i := 0; i < 30; i++ {
		req.Lines = append(req.Lines, LineInput{MaterialID: int64(i%3) + 1, Mode: pricing.ModePerUnit, NetAmount: dp("6")})
	}

	first, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, first.Lines, 30)
	assert.Equal(t, int32(60), src.calls.Load())
	for i := range first.Lines {
		assert.Equal(t, req.Lines[i].MaterialID, first.Lines[i].MaterialID, "line order")
		assert.True(t, first.Lines[i].Disposal.Total.Equal(second.Lines[i].Disposal.Total))
	}
	assert.True(t, first.Totals.DisposalTotal.Equal(second.Totals.DisposalTotal))
}

func TestBuild_Errors(t *testing.T) {
	b := newTestBuilder(newFakeSource(), DefaultPolicy())
	ctx := context.Background()

	_, err := b.Build(ctx, Request{})
	require.ErrorIs(t, err, ErrNoLines)

	_, err = b.Build(ctx, Request{Lines: []LineInput{{MaterialID: 99, NetAmount: dp("1")}}})
	require.ErrorIs(t, err, catalog.ErrMaterialNotFound)

	_, err = b.Build(ctx, Request{Lines: []LineInput{{MaterialID: 1}}})
	var qErr *pricing.InvalidQuantityError
	require.ErrorAs(t, err, &qErr)

	_, err = b.Build(ctx, Request{Lines: []LineInput{{MaterialID: 1, NetAmount: dp("-2")}}})
	require.ErrorAs(t, err, &qErr)

	_, err = b.Build(ctx, Request{Lines: []LineInput{{MaterialID: 1, Mode: "per_load", NetAmount: dp("2")}}})
	var modeErr *pricing.UnsupportedModeError
	require.ErrorAs(t, err, &modeErr)
}

func TestBuild_CancelledContext(t *testing.T) {
	b := newTestBuilder(newFakeSource(), DefaultPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Build(ctx, Request{Lines: []LineInput{{MaterialID: 1, NetAmount: dp("1")}}})
	require.True(t, errors.Is(err, context.Canceled))
}
