package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/haulrate/internal/catalog"
	"github.com/Simplici0/haulrate/internal/feetemplate"
	"github.com/Simplici0/haulrate/internal/pricing"
	"github.com/Simplici0/haulrate/internal/ticket"
)

type errorResponse struct {
	Error  string                   `json:"error"`
	Field  string                   `json:"field,omitempty"`
	Fields []feetemplate.FieldError `json:"fields,omitempty"`
}

type materialResponse struct {
	catalog.Material
	FeeStructure pricing.FeeStructureConfig `json:"feeStructure"`
}

type unitChargeRequest struct {
	Plan        pricing.RatePlan          `json:"plan"`
	Quantity    *pricing.MeasuredQuantity `json:"quantity,omitempty"`
	GrossWeight *decimal.Decimal          `json:"grossWeight,omitempty"`
	TareWeight  *decimal.Decimal          `json:"tareWeight,omitempty"`
	Taxable     bool                      `json:"taxable"`
	TaxRate     *decimal.Decimal          `json:"taxRate,omitempty"`
}

type containerChargeRequest struct {
	Plan    pricing.RatePlan `json:"plan"`
	Taxable bool             `json:"taxable"`
	TaxRate *decimal.Decimal `json:"taxRate,omitempty"`
}

type tippingPlanRequest struct {
	Plan           pricing.RatePlan `json:"plan"`
	DiscountFactor *decimal.Decimal `json:"discountFactor,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleFeeStructures(w http.ResponseWriter, r *http.Request) {
	structures := lo.Values(pricing.FeeStructures)
	slices.SortFunc(structures, func(a, b pricing.FeeStructureConfig) int {
		return strings.Compare(string(a.Unit), string(b.Unit))
	})
	writeJSON(w, http.StatusOK, structures)
}

func (s *server) handleMaterialsList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "1"
	materials, err := s.catalog.List(r.Context(), activeOnly)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(materials, func(m catalog.Material, _ int) materialResponse {
		return toMaterialResponse(m)
	}))
}

func (s *server) handleMaterialGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	m, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMaterialResponse(m))
}

func (s *server) handleUnitCharge(w http.ResponseWriter, r *http.Request) {
	var req unitChargeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var qty pricing.MeasuredQuantity
	switch {
	case req.Quantity != nil:
		qty = *req.Quantity
		if qty.Unit == "" {
			qty.Unit = req.Plan.Unit
		}
	case req.GrossWeight != nil && req.TareWeight != nil:
		var err error
		if qty, err = pricing.FromWeights(req.Plan.Unit, *req.GrossWeight, *req.TareWeight); err != nil {
			s.writeErr(w, r, err)
			return
		}
	default:
		s.writeErr(w, r, &pricing.InvalidQuantityError{Reason: "quantity or gross and tare weights are required"})
		return
	}

	breakdown, err := pricing.ComputeUnitCharge(req.Plan, qty, req.Taxable, s.taxRate(req.TaxRate))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *server) handleContainerCharge(w http.ResponseWriter, r *http.Request) {
	var req containerChargeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	breakdown, err := pricing.ComputeContainerCharge(req.Plan)
	if err == nil {
		breakdown, err = pricing.ApplyTax(breakdown, req.Taxable, s.taxRate(req.TaxRate))
	}
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *server) handleTippingPlan(w http.ResponseWriter, r *http.Request) {
	var req tippingPlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	factor := s.policy.TippingDiscount
	if req.DiscountFactor != nil {
		factor = *req.DiscountFactor
	}
	if factor.IsNegative() {
		s.writeErr(w, r, &pricing.InvalidRatePlanError{Field: "discountFactor", Reason: "must not be negative"})
		return
	}
	if err := req.Plan.Validate(); err != nil {
		s.writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pricing.DeriveTippingPlan(req.Plan, factor))
}

func (s *server) handleFeeTemplatesList(w http.ResponseWriter, r *http.Request) {
	var materialID int64
	if raw := r.URL.Query().Get("materialId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid material id", Field: "materialId"})
			return
		}
		materialID = id
	}

	templates, err := s.templates.List(r.Context(), materialID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *server) handleFeeTemplateCreate(w http.ResponseWriter, r *http.Request) {
	var draft feetemplate.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}

	tmpl, err := feetemplate.ParseDraft(draft)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	created, err := s.templates.Create(r.Context(), tmpl)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.log.Info("fee template created", zap.Int64("template_id", created.ID), zap.Int64("material_id", created.MaterialID))
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleFeeTemplateUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var draft feetemplate.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}

	tmpl, err := feetemplate.ParseDraft(draft)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	updated, err := s.templates.Update(r.Context(), id, tmpl)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleTicketBuild(w http.ResponseWriter, r *http.Request) {
	var req ticket.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	tk, err := s.tickets.Build(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tk)
}

func (s *server) taxRate(override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return s.policy.TaxRate
}

func toMaterialResponse(m catalog.Material) materialResponse {
	fs, _ := pricing.FeeStructureFor(m.Plan.Unit)
	return materialResponse{Material: m, FeeStructure: fs}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id", Field: "id"})
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (s *server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		quantityErr *pricing.InvalidQuantityError
		planErr     *pricing.InvalidRatePlanError
		modeErr     *pricing.UnsupportedModeError
		validErr    *feetemplate.ValidationError
	)

	switch {
	case errors.As(err, &validErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Fields: validErr.Fields})
	case errors.As(err, &quantityErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: "quantity"})
	case errors.As(err, &planErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: planErr.Field})
	case errors.As(err, &modeErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: "mode"})
	case errors.Is(err, ticket.ErrNoLines):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: "lines"})
	case errors.Is(err, catalog.ErrMaterialNotFound), errors.Is(err, feetemplate.ErrTemplateNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
