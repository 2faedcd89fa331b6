package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ChangeSet describes one authorized ticket mutation: the change record to
// append, the current pointer to move, and the notification event to emit.
// All three are applied in a single transaction.
type ChangeSet struct {
	TicketID      string
	Field         domain.ChangeField
	FromValue     *string
	ToValue       *string
	ActorEntityID string
	// NewAssignedEntityID feeds the ticket pointer for assignment changes
	// (nil clears the assignment); other fields take the pointer value
	// from ToValue.
	NewAssignedEntityID *string
	EventType           domain.NotificationEventType
}

// TicketRepository encapsulates ticket persistence and the
// ownership-snapshot queries the access resolver runs on.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	QueryByRules(ctx context.Context, rules []access.AccessRule, matchAll bool) ([]access.TicketRelations, error)
	RelationsFor(ctx context.Context, ticketID string) (*access.TicketRelations, error)
	ApplyChange(ctx context.Context, cs ChangeSet) (eventID int64, err error)
	CreateThread(ctx context.Context, thread *domain.Thread) (eventID int64, err error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, subject, current_status, current_priority_id, current_category_id,
                             current_assigned_to_id, created_by_id)
        VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.CurrentStatus,
		ticket.CurrentPriorityID,
		ticket.CurrentCategoryID,
		ticket.CurrentAssignedToID,
		ticket.CreatedByID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, subject, current_status, current_priority_id, current_category_id,
               current_assigned_to_id, created_by_id, created_at, updated_at
        FROM tickets WHERE id = $1`
	var t domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Subject,
		&t.CurrentStatus,
		&t.CurrentPriorityID,
		&t.CurrentCategoryID,
		&t.CurrentAssignedToID,
		&t.CreatedByID,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// relationsBase resolves each ticket together with the effective team and
// membership behind its assigned and created-by entities. An entity owned
// by a membership inherits that membership's team.
const relationsBase = `
    SELECT t.id,
           t.current_assigned_to_id,
           COALESCE(ae.team_id, aut.team_id) AS assigned_team_id,
           ae.user_team_id                   AS assigned_user_team_id,
           t.created_by_id,
           COALESCE(ce.team_id, cut.team_id) AS created_team_id,
           ce.user_team_id                   AS created_user_team_id
    FROM tickets t
    LEFT JOIN entities ae   ON ae.id = t.current_assigned_to_id
    LEFT JOIN user_teams aut ON aut.id = ae.user_team_id
    LEFT JOIN entities ce   ON ce.id = t.created_by_id
    LEFT JOIN user_teams cut ON cut.id = ce.user_team_id`

func (r *ticketRepository) QueryByRules(ctx context.Context, rules []access.AccessRule, matchAll bool) ([]access.TicketRelations, error) {
	query := relationsBase
	var args []any

	if !matchAll {
		clauses := make([]string, 0, len(rules))
		for _, rule := range rules {
			clause, ok := ruleClause(rule, &args)
			if !ok {
				continue
			}
			clauses = append(clauses, clause)
		}
		if len(clauses) == 0 {
			return nil, nil
		}
		query += "\n    WHERE " + strings.Join(clauses, " OR ")
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelations(rows)
}

// ruleClause translates one access rule into a SQL predicate over the
// relations projection. It mirrors AccessRule.Matches exactly; the Go-side
// re-match on the returned rows produces the provenance list.
func ruleClause(rule access.AccessRule, args *[]any) (string, bool) {
	var teamCol, userTeamCol string
	switch rule.Relation {
	case access.RelationAssigned:
		teamCol = "COALESCE(ae.team_id, aut.team_id)"
		userTeamCol = "ae.user_team_id"
	case access.RelationCreatedBy:
		teamCol = "COALESCE(ce.team_id, cut.team_id)"
		userTeamCol = "ce.user_team_id"
	default:
		return "", false
	}

	switch rule.Scope {
	case domain.ScopeAny:
		return "TRUE", true
	case domain.ScopeTeamAny:
		*args = append(*args, rule.TeamID)
		return fmt.Sprintf("%s = $%d", teamCol, len(*args)), true
	case domain.ScopeTeamUnclaimed:
		*args = append(*args, rule.TeamID)
		return fmt.Sprintf("(%s = $%d AND %s IS NULL)", teamCol, len(*args), userTeamCol), true
	case domain.ScopeSelf:
		*args = append(*args, rule.UserTeamID)
		return fmt.Sprintf("%s = $%d", userTeamCol, len(*args)), true
	}
	return "", false
}

func (r *ticketRepository) RelationsFor(ctx context.Context, ticketID string) (*access.TicketRelations, error) {
	query := relationsBase + "\n    WHERE t.id = $1"
	var rel access.TicketRelations
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&rel.TicketID,
		&rel.AssignedEntityID,
		&rel.AssignedTeamID,
		&rel.AssignedUserTeamID,
		&rel.CreatedByEntityID,
		&rel.CreatedTeamID,
		&rel.CreatedUserTeamID,
	); err != nil {
		return nil, err
	}
	return &rel, nil
}

func scanRelations(rows pgx.Rows) ([]access.TicketRelations, error) {
	var result []access.TicketRelations
	for rows.Next() {
		var rel access.TicketRelations
		if err := rows.Scan(
			&rel.TicketID,
			&rel.AssignedEntityID,
			&rel.AssignedTeamID,
			&rel.AssignedUserTeamID,
			&rel.CreatedByEntityID,
			&rel.CreatedTeamID,
			&rel.CreatedUserTeamID,
		); err != nil {
			return nil, err
		}
		result = append(result, rel)
	}
	return result, rows.Err()
}

func pointerColumn(field domain.ChangeField) string {
	switch field {
	case domain.ChangeFieldAssignment:
		return "current_assigned_to_id"
	case domain.ChangeFieldCategory:
		return "current_category_id"
	case domain.ChangeFieldPriority:
		return "current_priority_id"
	case domain.ChangeFieldStatus:
		return "current_status"
	}
	return ""
}

// ApplyChange appends the change record, moves the current pointer and
// records the notification event atomically. A reader never observes one
// side without the other.
func (r *ticketRepository) ApplyChange(ctx context.Context, cs ChangeSet) (int64, error) {
	col := pointerColumn(cs.Field)
	if col == "" {
		return 0, fmt.Errorf("unknown change field %q", cs.Field)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var changeID string
	const insertChange = `
        INSERT INTO ticket_changes (id, ticket_id, field, from_value, to_value, actor_entity_id)
        VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
        RETURNING id`
	if err := tx.QueryRow(ctx, insertChange,
		cs.TicketID, cs.Field, cs.FromValue, cs.ToValue, cs.ActorEntityID,
	).Scan(&changeID); err != nil {
		return 0, err
	}

	var pointerValue any
	if cs.Field == domain.ChangeFieldAssignment {
		pointerValue = cs.NewAssignedEntityID
	} else {
		pointerValue = cs.ToValue
	}
	updatePointer := fmt.Sprintf(`UPDATE tickets SET %s = $1, updated_at = NOW() WHERE id = $2`, col)
	cmd, err := tx.Exec(ctx, updatePointer, pointerValue, cs.TicketID)
	if err != nil {
		return 0, err
	}
	if cmd.RowsAffected() == 0 {
		return 0, pgx.ErrNoRows
	}

	var eventID int64
	const insertEvent = `
        INSERT INTO notification_events (type, change_id)
        VALUES ($1, $2)
        RETURNING id`
	if err := tx.QueryRow(ctx, insertEvent, cs.EventType, changeID).Scan(&eventID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return eventID, nil
}

// CreateThread inserts a thread and its notification event atomically.
func (r *ticketRepository) CreateThread(ctx context.Context, thread *domain.Thread) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertThread = `
        INSERT INTO threads (id, ticket_id, body, author_entity_id)
        VALUES (gen_random_uuid(), $1, $2, $3)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insertThread,
		thread.TicketID, thread.Body, thread.AuthorEntityID,
	).Scan(&thread.ID, &thread.CreatedAt); err != nil {
		return 0, err
	}

	var eventID int64
	const insertEvent = `
        INSERT INTO notification_events (type, thread_id)
        VALUES ($1, $2)
        RETURNING id`
	if err := tx.QueryRow(ctx, insertEvent, domain.EventThreadNew, thread.ID).Scan(&eventID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return eventID, nil
}
