package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RuleRepository stores per-user notification rules. Condition trees are
// kept as JSONB and decoded on read.
type RuleRepository interface {
	ListForUser(ctx context.Context, userID string, channel domain.NotificationChannel) ([]domain.NotificationRule, error)
	ListAllForUser(ctx context.Context, userID string) ([]domain.NotificationRule, error)
	ReplaceForUser(ctx context.Context, userID string, rules []domain.NotificationRule) error
}

type ruleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository instantiates repository.
func NewRuleRepository(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepository{pool: pool}
}

const ruleColumns = `id, user_id, channel, event_types, conditions, enabled, created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (domain.NotificationRule, error) {
	var rule domain.NotificationRule
	var conditions []byte
	if err := row.Scan(
		&rule.ID, &rule.UserID, &rule.Channel, &rule.EventTypes,
		&conditions, &rule.Enabled, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return rule, err
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return rule, err
		}
	}
	return rule, nil
}

func (r *ruleRepository) ListForUser(ctx context.Context, userID string, channel domain.NotificationChannel) ([]domain.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE user_id = $1 AND channel = $2 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, userID, channel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.NotificationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *ruleRepository) ListAllForUser(ctx context.Context, userID string) ([]domain.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.NotificationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// ReplaceForUser swaps a user's full rule set atomically.
func (r *ruleRepository) ReplaceForUser(ctx context.Context, userID string, rules []domain.NotificationRule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM notification_rules WHERE user_id = $1`, userID); err != nil {
		return err
	}

	const insert = `
        INSERT INTO notification_rules (id, user_id, channel, event_types, conditions, enabled)
        VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)`
	for _, rule := range rules {
		conditions, err := json.Marshal(rule.Conditions)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insert, userID, rule.Channel, rule.EventTypes, conditions, rule.Enabled); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
