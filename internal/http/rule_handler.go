package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/resort-scheduler/internal/application"
	"github.com/example/resort-scheduler/internal/persistence"
)

type ruleService interface {
	ListRules(ctx context.Context, onlyActive bool) ([]persistence.RecurringRule, error)
	CreateRule(ctx context.Context, principal application.Principal, rule persistence.RecurringRule) (persistence.RecurringRule, error)
	UpdateRule(ctx context.Context, principal application.Principal, rule persistence.RecurringRule) (persistence.RecurringRule, error)
	DeleteRule(ctx context.Context, principal application.Principal, id string) error
}

// RuleHandler serves recurring-rule management.
type RuleHandler struct {
	service   ruleService
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

func NewRuleHandler(service ruleService, location *time.Location, logger *slog.Logger) *RuleHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &RuleHandler{service: service, location: location, responder: newResponder(base), logger: base}
}

func (h *RuleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RuleHandler", operation, attrs...)
}

// List answers GET /rules[?active=true].
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	onlyActive := r.URL.Query().Get("active") == "true"
	rules, err := h.service.ListRules(r.Context(), onlyActive)
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list rules", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	items := make([]ruleDTO, len(rules))
	for i, rule := range rules {
		items[i] = toRuleDTO(rule)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, ruleListResponse{Rules: items})
}

// Create answers POST /rules. Admin only.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	rule, err := h.toRule(req)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	created, err := h.service.CreateRule(r.Context(), principal, rule)
	if err != nil {
		h.log(r.Context(), "Create").ErrorContext(r.Context(), "failed to create rule", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "rule_id", created.ID).InfoContext(r.Context(), "recurring rule created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toRuleDTO(created))
}

// Update answers PUT /rules/{id}. Admin only.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	rule, err := h.toRule(req)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	rule.ID = id

	updated, err := h.service.UpdateRule(r.Context(), principal, rule)
	if err != nil {
		h.log(r.Context(), "Update", "rule_id", id).ErrorContext(r.Context(), "failed to update rule", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRuleDTO(updated))
}

// Delete answers DELETE /rules/{id}. Admin only.
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.DeleteRule(r.Context(), principal, id); err != nil {
		h.log(r.Context(), "Delete", "rule_id", id).ErrorContext(r.Context(), "failed to delete rule", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Delete", "rule_id", id).InfoContext(r.Context(), "recurring rule deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RuleHandler) toRule(req ruleRequest) (persistence.RecurringRule, error) {
	rule := persistence.RecurringRule{
		ClassID:     req.ClassID,
		Studio:      req.Studio,
		Timezone:    req.Timezone,
		StartTime:   req.StartTime,
		DurationMin: req.DurationMin,
		RRule:       req.RRule,
		Exceptions:  req.Exceptions,
		Active:      req.Active,
	}
	if req.EffectiveFrom != "" {
		from, err := time.ParseInLocation("2006-01-02", req.EffectiveFrom, h.location)
		if err != nil {
			return persistence.RecurringRule{}, &paramError{name: "effective_from"}
		}
		rule.EffectiveFrom = from
	}
	if req.EffectiveTo != "" {
		to, err := time.ParseInLocation("2006-01-02", req.EffectiveTo, h.location)
		if err != nil {
			return persistence.RecurringRule{}, &paramError{name: "effective_to"}
		}
		rule.EffectiveTo = &to
	}
	return rule, nil
}

type ruleRequest struct {
	ClassID       string   `json:"class_id"`
	Studio        string   `json:"studio,omitempty"`
	Timezone      string   `json:"timezone,omitempty"`
	StartTime     string   `json:"start_time"`
	DurationMin   int      `json:"duration_min"`
	RRule         string   `json:"rrule"`
	EffectiveFrom string   `json:"effective_from"`
	EffectiveTo   string   `json:"effective_to,omitempty"`
	Exceptions    []string `json:"exceptions,omitempty"`
	Active        bool     `json:"active"`
}

type ruleDTO struct {
	ID            string   `json:"id"`
	ClassID       string   `json:"class_id"`
	Studio        string   `json:"studio,omitempty"`
	Timezone      string   `json:"timezone,omitempty"`
	StartTime     string   `json:"start_time"`
	DurationMin   int      `json:"duration_min"`
	RRule         string   `json:"rrule"`
	EffectiveFrom string   `json:"effective_from"`
	EffectiveTo   string   `json:"effective_to,omitempty"`
	Exceptions    []string `json:"exceptions,omitempty"`
	Active        bool     `json:"active"`
}

func toRuleDTO(rule persistence.RecurringRule) ruleDTO {
	dto := ruleDTO{
		ID:          rule.ID,
		ClassID:     rule.ClassID,
		Studio:      rule.Studio,
		Timezone:    rule.Timezone,
		StartTime:   rule.StartTime,
		DurationMin: rule.DurationMin,
		RRule:       rule.RRule,
		Exceptions:  rule.Exceptions,
		Active:      rule.Active,
	}
	if !rule.EffectiveFrom.IsZero() {
		dto.EffectiveFrom = rule.EffectiveFrom.Format("2006-01-02")
	}
	if rule.EffectiveTo != nil {
		dto.EffectiveTo = rule.EffectiveTo.Format("2006-01-02")
	}
	return dto
}

type ruleListResponse struct {
	Rules []ruleDTO `json:"rules"`
}
