package domain

import "time"

// TicketCategory is a node in the category forest. ParentID is nil for
// roots. Access grants on a node propagate to all of its descendants, never
// to its ancestors.
type TicketCategory struct {
	ID            string
	ParentID      *string
	Name          string
	PriorityOrder int
	CreatedAt     time.Time
}

// TicketPriority is a configurable urgency level.
type TicketPriority struct {
	ID    string
	Name  string
	Order int
}
