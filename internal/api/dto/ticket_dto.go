package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload. Body becomes the ticket's first thread.
type CreateTicketRequest struct {
	Subject    string  `json:"subject"`
	CategoryID string  `json:"category_id"`
	PriorityID string  `json:"priority_id"`
	TeamID     *string `json:"team_id"`
	Body       string  `json:"body"`
}

// AssignmentRequest names an assignment destination; both fields empty
// unassigns the ticket.
type AssignmentRequest struct {
	TeamID     *string `json:"team_id"`
	UserTeamID *string `json:"user_team_id"`
}

// CategoryRequest payload.
type CategoryRequest struct {
	CategoryID string `json:"category_id"`
}

// PriorityRequest payload.
type PriorityRequest struct {
	PriorityID string `json:"priority_id"`
}

// StatusRequest payload.
type StatusRequest struct {
	Status string `json:"status"`
}

// ThreadRequest payload.
type ThreadRequest struct {
	Body string `json:"body"`
}

// TicketResponse is the external ticket shape.
type TicketResponse struct {
	ID           string              `json:"id"`
	Subject      string              `json:"subject"`
	Status       domain.TicketStatus `json:"status"`
	PriorityID   string              `json:"priority_id"`
	CategoryID   string              `json:"category_id"`
	AssignedToID *string             `json:"assigned_to_id"`
	CreatedByID  string              `json:"created_by_id"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// TicketFromDomain maps a ticket.
func TicketFromDomain(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:           t.ID,
		Subject:      t.Subject,
		Status:       t.CurrentStatus,
		PriorityID:   t.CurrentPriorityID,
		CategoryID:   t.CurrentCategoryID,
		AssignedToID: t.CurrentAssignedToID,
		CreatedByID:  t.CreatedByID,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// ThreadResponse is the external thread shape.
type ThreadResponse struct {
	ID             string    `json:"id"`
	TicketID       string    `json:"ticket_id"`
	Body           string    `json:"body"`
	AuthorEntityID string    `json:"author_entity_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// ThreadFromDomain maps a thread.
func ThreadFromDomain(t *domain.Thread) ThreadResponse {
	return ThreadResponse{
		ID:             t.ID,
		TicketID:       t.TicketID,
		Body:           t.Body,
		AuthorEntityID: t.AuthorEntityID,
		CreatedAt:      t.CreatedAt,
	}
}

// ChangeResponse is the external change-record shape.
type ChangeResponse struct {
	ID            string    `json:"id"`
	TicketID      string    `json:"ticket_id"`
	Field         string    `json:"field"`
	FromValue     *string   `json:"from_value"`
	ToValue       *string   `json:"to_value"`
	ActorEntityID string    `json:"actor_entity_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// ChangeFromDomain maps a change record.
func ChangeFromDomain(c *domain.TicketChange) ChangeResponse {
	return ChangeResponse{
		ID:            c.ID,
		TicketID:      c.TicketID,
		Field:         string(c.Field),
		FromValue:     c.FromValue,
		ToValue:       c.ToValue,
		ActorEntityID: c.ActorEntityID,
		CreatedAt:     c.CreatedAt,
	}
}
