package pricing

import "github.com/shopspring/decimal"

// UnitOfMeasure is the quantity unit a rate plan is denominated in.
type UnitOfMeasure string

const (
	UnitTons    UnitOfMeasure = "tons"
	UnitItems   UnitOfMeasure = "items"
	UnitGallons UnitOfMeasure = "gallons"
	UnitYards   UnitOfMeasure = "yards"
)

// UnitSpec describes how a unit of measure maps onto its base unit.
type UnitSpec struct {
	// BaseUnit is the small unit raw measurements are taken in.
	BaseUnit string
	// BasePerUnit is how many base units make one unit of measure.
	BasePerUnit decimal.Decimal
	// WeightBased units are measured as gross minus tare on a scale.
	WeightBased bool
}

// Units is the conversion table for every supported unit of measure.
var Units = map[UnitOfMeasure]UnitSpec{
	UnitTons:    {BaseUnit: "lb", BasePerUnit: decimal.NewFromInt(2000), WeightBased: true},
	UnitItems:   {BaseUnit: "item", BasePerUnit: decimal.NewFromInt(1)},
	UnitGallons: {BaseUnit: "gal", BasePerUnit: decimal.NewFromInt(1)},
	UnitYards:   {BaseUnit: "yd3", BasePerUnit: decimal.NewFromInt(1)},
}

// Valid reports whether u is a known unit of measure.
func (u UnitOfMeasure) Valid() bool {
	_, ok := Units[u]
	return ok
}

// FeeStructureConfig carries the presentation settings for one unit of measure.
type FeeStructureConfig struct {
	Unit          UnitOfMeasure `json:"unit"`
	UnitLabel     string        `json:"unitLabel"`
	QuantityLabel string        `json:"quantityLabel"`
	ShowWeights   bool          `json:"showWeights"`
	Precision     int32         `json:"precision"`
}

// FeeStructures drives which quantity fields a fee form shows per unit.
var FeeStructures = map[UnitOfMeasure]FeeStructureConfig{
	UnitTons:    {Unit: UnitTons, UnitLabel: "ton", QuantityLabel: "Net Tons", ShowWeights: true, Precision: 2},
	UnitItems:   {Unit: UnitItems, UnitLabel: "item", QuantityLabel: "Item Count", Precision: 0},
	UnitGallons: {Unit: UnitGallons, UnitLabel: "gallon", QuantityLabel: "Gallons", Precision: 1},
	UnitYards:   {Unit: UnitYards, UnitLabel: "yard", QuantityLabel: "Cubic Yards", Precision: 1},
}

// FeeStructureFor returns the fee structure for a unit.
func FeeStructureFor(unit UnitOfMeasure) (FeeStructureConfig, bool) {
	cfg, ok := FeeStructures[unit]
	return cfg, ok
}

// FromWeights derives a measured quantity from scale weights given in the unit's base unit.
func FromWeights(unit UnitOfMeasure, gross, tare decimal.Decimal) (MeasuredQuantity, error) {
	spec, ok := Units[unit]
	if !ok {
		return MeasuredQuantity{}, &InvalidQuantityError{Reason: "unknown unit of measure " + string(unit)}
	}
	if !spec.WeightBased {
		return MeasuredQuantity{}, &InvalidQuantityError{Reason: string(unit) + " is not weight based"}
	}
	if gross.IsNegative() || tare.IsNegative() {
		return MeasuredQuantity{}, &InvalidQuantityError{Reason: "weights must not be negative"}
	}
	if tare.GreaterThan(gross) {
		return MeasuredQuantity{}, &InvalidQuantityError{Reason: "tare weight exceeds gross weight"}
	}

	return MeasuredQuantity{
		Unit:      unit,
		NetAmount: gross.Sub(tare).Div(spec.BasePerUnit),
	}, nil
}
