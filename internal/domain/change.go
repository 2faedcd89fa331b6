package domain

import "time"

// ChangeField names which ticket field a change record mutated.
type ChangeField string

const (
	ChangeFieldAssignment ChangeField = "ASSIGNMENT"
	ChangeFieldCategory   ChangeField = "CATEGORY"
	ChangeFieldPriority   ChangeField = "PRIORITY"
	ChangeFieldStatus     ChangeField = "STATUS"
)

// TicketChange is an immutable audit trail entry. The ticket's matching
// current_* pointer is updated in the same transaction that inserts the row,
// so readers never observe one without the other.
type TicketChange struct {
	ID            string
	TicketID      string
	Field         ChangeField
	FromValue     *string
	ToValue       *string
	ActorEntityID string
	CreatedAt     time.Time
}

// Thread is one message on a ticket. The first thread of a ticket is its
// opening message.
type Thread struct {
	ID             string
	TicketID       string
	Body           string
	AuthorEntityID string
	CreatedAt      time.Time
}
