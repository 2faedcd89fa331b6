package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// Ticket is the aggregate for support requests. The current_* columns are
// denormalized pointers to the newest change record per field; they are only
// ever updated in the same transaction that appends the change.
type Ticket struct {
	ID                  string
	Subject             string
	CurrentStatus       TicketStatus
	CurrentPriorityID   string
	CurrentCategoryID   string
	CurrentAssignedToID *string // entity reference, nil while unassigned
	CreatedByID         string  // entity reference
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Closed reports whether the ticket accepts no further threads.
func (t Ticket) Closed() bool {
	return t.CurrentStatus == TicketStatusClosed
}

// Valid reports whether the status is one of the known lifecycle states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}
