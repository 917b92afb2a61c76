package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

// RuleRepository implements persistence.RuleRepository using SQLite.
type RuleRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRuleRepository creates a new SQLite recurring-rule repository.
func NewRuleRepository(pool *ConnectionPool) *RuleRepository {
	return &RuleRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const ruleColumns = `id, class_id, studio, timezone, start_time, duration_min, rrule,
	effective_from, effective_to, exceptions, active, created_at, updated_at`

// CreateRule inserts a new recurring rule.
func (r *RuleRepository) CreateRule(ctx context.Context, rule persistence.RecurringRule) (persistence.RecurringRule, error) {
	if rule.ID == "" {
		return persistence.RecurringRule{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	exceptions, err := json.Marshal(sliceOrEmpty(rule.Exceptions))
	if err != nil {
		return persistence.RecurringRule{}, fmt.Errorf("marshal exceptions: %w", err)
	}

	_, err = r.helper.Exec(ctx, `
		INSERT INTO recurring_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.ClassID,
		rule.Studio,
		rule.Timezone,
		rule.StartTime,
		rule.DurationMin,
		rule.RRule,
		formatDate(rule.EffectiveFrom),
		nullDate(rule.EffectiveTo),
		string(exceptions),
		boolToInt(rule.Active),
		formatTime(rule.CreatedAt),
		formatTime(rule.UpdatedAt),
	)
	if err != nil {
		return persistence.RecurringRule{}, r.mapper.MapError(err)
	}
	return rule, nil
}

// GetRule fetches a rule by ID.
func (r *RuleRepository) GetRule(ctx context.Context, id string) (persistence.RecurringRule, error) {
	row := r.helper.QueryRow(ctx, `SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`, id)
	return r.scanRule(row)
}

// ListRules returns all rules, optionally restricted to active ones, ordered
// by creation time.
func (r *RuleRepository) ListRules(ctx context.Context, onlyActive bool) ([]persistence.RecurringRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules`
	if onlyActive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	rules := make([]persistence.RecurringRule, 0)
	for rows.Next() {
		rule, err := r.scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpdateRule replaces a rule's mutable fields.
func (r *RuleRepository) UpdateRule(ctx context.Context, rule persistence.RecurringRule) (persistence.RecurringRule, error) {
	rule.UpdatedAt = time.Now().UTC()

	exceptions, err := json.Marshal(sliceOrEmpty(rule.Exceptions))
	if err != nil {
		return persistence.RecurringRule{}, fmt.Errorf("marshal exceptions: %w", err)
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE recurring_rules
		SET class_id = ?, studio = ?, timezone = ?, start_time = ?, duration_min = ?,
			rrule = ?, effective_from = ?, effective_to = ?, exceptions = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		rule.ClassID,
		rule.Studio,
		rule.Timezone,
		rule.StartTime,
		rule.DurationMin,
		rule.RRule,
		formatDate(rule.EffectiveFrom),
		nullDate(rule.EffectiveTo),
		string(exceptions),
		boolToInt(rule.Active),
		formatTime(rule.UpdatedAt),
		rule.ID,
	)
	if err != nil {
		return persistence.RecurringRule{}, r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.RecurringRule{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.RecurringRule{}, persistence.ErrNotFound
	}
	return r.GetRule(ctx, rule.ID)
}

// DeleteRule removes a rule.
func (r *RuleRepository) DeleteRule(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM recurring_rules WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RuleRepository) scanRule(row rowScanner) (persistence.RecurringRule, error) {
	var (
		rule          persistence.RecurringRule
		effectiveFrom string
		effectiveTo   sql.NullString
		exceptions    string
		active        int
		createdAt     string
		updatedAt     string
	)
	err := row.Scan(
		&rule.ID,
		&rule.ClassID,
		&rule.Studio,
		&rule.Timezone,
		&rule.StartTime,
		&rule.DurationMin,
		&rule.RRule,
		&effectiveFrom,
		&effectiveTo,
		&exceptions,
		&active,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.RecurringRule{}, r.mapper.MapError(err)
	}

	if rule.EffectiveFrom, err = parseDate(effectiveFrom); err != nil {
		return persistence.RecurringRule{}, err
	}
	if rule.EffectiveTo, err = datePtr(effectiveTo); err != nil {
		return persistence.RecurringRule{}, err
	}
	if err = json.Unmarshal([]byte(exceptions), &rule.Exceptions); err != nil {
		return persistence.RecurringRule{}, fmt.Errorf("unmarshal exceptions: %w", err)
	}
	rule.Active = active != 0
	if rule.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.RecurringRule{}, err
	}
	if rule.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.RecurringRule{}, err
	}
	return rule, nil
}

func sliceOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
