// Package feetemplate holds the operator-edited disposal fee templates: the
// validation a fee form must pass and the SQLite store the templates live in.
package feetemplate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/haulrate/internal/pricing"
)

// Template is a named, GL-coded rate plan for one catalog material.
type Template struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	GLCode     string           `json:"glCode"`
	MaterialID int64            `json:"materialId"`
	Plan       pricing.RatePlan `json:"plan"`
	Active     bool             `json:"active"`
}

// AutoMinimumCharge reports whether the floor is derived from allowance x rate.
func (t Template) AutoMinimumCharge() bool {
	return t.Plan.MinimumChargeEnabled && t.Plan.MinimumCharge == nil
}

// Draft is the raw, unvalidated content of a fee form.
type Draft struct {
	Name                 string `json:"name"`
	GLCode               string `json:"glCode"`
	MaterialID           string `json:"materialId"`
	Unit                 string `json:"unit"`
	RatePerUnit          string `json:"ratePerUnit"`
	IncludedAllowance    string `json:"includedAllowance"`
	OverageThreshold     string `json:"overageThreshold"`
	OverageFee           string `json:"overageFee"`
	MinimumChargeEnabled bool   `json:"minimumChargeEnabled"`
	AutoMinimumCharge    bool   `json:"autoMinimumCharge"`
	MinimumCharge        string `json:"minimumCharge"`
	AllowsPerContainer   bool   `json:"allowsPerContainer"`
	ContainerFlatRate    string `json:"containerFlatRate"`
	Active               bool   `json:"active"`
}

// FieldError is a validation message bound to one form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field error found in a draft.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+" "+f.Message)
	}
	return "invalid fee template: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// ParseDraft validates a draft and converts it into a template.
// Rejected numbers are reported, never replaced with zero.
func ParseDraft(d Draft) (Template, error) {
	verr := &ValidationError{}

	t := Template{
		Name:   strings.TrimSpace(d.Name),
		GLCode: strings.TrimSpace(d.GLCode),
		Active: d.Active,
	}
	if t.Name == "" {
		verr.add("name", "is required")
	}
	if t.GLCode == "" {
		verr.add("glCode", "is required")
	}

	materialID, err := strconv.ParseInt(strings.TrimSpace(d.MaterialID), 10, 64)
	if err != nil || materialID <= 0 {
		verr.add("materialId", "must select a material")
	}
	t.MaterialID = materialID

	plan := pricing.RatePlan{
		Unit:                 pricing.UnitOfMeasure(strings.TrimSpace(d.Unit)),
		MinimumChargeEnabled: d.MinimumChargeEnabled,
		AllowsPerContainer:   d.AllowsPerContainer,
	}
	if !plan.Unit.Valid() {
		verr.add("unit", "must be one of tons, items, gallons, yards")
	}

	plan.RatePerUnit = parseAmount(verr, "ratePerUnit", d.RatePerUnit, true)
	plan.IncludedAllowance = parseAmount(verr, "includedAllowance", d.IncludedAllowance, false)
	plan.OverageThreshold = parseAmount(verr, "overageThreshold", d.OverageThreshold, false)
	plan.OverageFee = parseAmount(verr, "overageFee", d.OverageFee, false)

	if d.MinimumChargeEnabled && !d.AutoMinimumCharge {
		v := parseAmount(verr, "minimumCharge", d.MinimumCharge, true)
		plan.MinimumCharge = &v
	}
	if d.AllowsPerContainer {
		v := parseAmount(verr, "containerFlatRate", d.ContainerFlatRate, true)
		plan.ContainerFlatRate = &v
	}

	if len(verr.Fields) > 0 {
		return Template{}, verr
	}

	if err := plan.Validate(); err != nil {
		var planErr *pricing.InvalidRatePlanError
		if errors.As(err, &planErr) {
			verr.add(planErr.Field, planErr.Reason)
			return Template{}, verr
		}
		return Template{}, fmt.Errorf("validate rate plan: %w", err)
	}

	t.Plan = plan
	return t, nil
}

func parseAmount(verr *ValidationError, field, raw string, required bool) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			verr.add(field, "is required")
		}
		return decimal.Zero
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		verr.add(field, "must be numeric")
		return decimal.Zero
	}
	if v.IsNegative() {
		verr.add(field, "must be greater than or equal to 0")
		return decimal.Zero
	}
	return v
}
