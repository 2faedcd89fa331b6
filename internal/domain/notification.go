package domain

import "time"

// NotificationEventType names the kind of event for rule matching.
type NotificationEventType string

const (
	EventCreated           NotificationEventType = "CREATED"
	EventThreadNew         NotificationEventType = "THREAD_NEW"
	EventAssignmentChanged NotificationEventType = "ASSIGNMENT_CHANGED"
	EventPriorityChanged   NotificationEventType = "PRIORITY_CHANGED"
	EventStatusChanged     NotificationEventType = "STATUS_CHANGED"
	EventCategoryChanged   NotificationEventType = "CATEGORY_CHANGED"
)

// NotificationEvent records a ticket mutation for the fan-out pipeline.
// Exactly one of ThreadID/ChangeID is set; each resolves to a ticket.
type NotificationEvent struct {
	ID        int64
	Type      NotificationEventType
	ThreadID  *string
	ChangeID  *string
	CreatedAt time.Time
}

// NotificationRecipient is one (event, user) delivery target with
// independent per-channel idempotency flags. Unique on the pair; inserts use
// duplicate-skip so re-running the init stage is a no-op.
type NotificationRecipient struct {
	EventID       int64
	UserID        string
	EmailNotified bool
	SMSNotified   bool
}

// NotificationChannel is a delivery medium.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

// ConditionOperator enumerates atomic and combining operators of a rule
// tree.
type ConditionOperator string

const (
	OperatorAnd     ConditionOperator = "and"
	OperatorOr      ConditionOperator = "or"
	OperatorEquals  ConditionOperator = "equals"
	OperatorIn      ConditionOperator = "in"
	OperatorIsTrue  ConditionOperator = "isTrue"
	OperatorIsFalse ConditionOperator = "isFalse"
	OperatorAny     ConditionOperator = "any"
)

// ConditionNode is one node of a user-authored rule tree. For and/or nodes
// Rules holds the children; atomic nodes use Field/Value instead.
type ConditionNode struct {
	Operator ConditionOperator `json:"operator"`
	Field    string            `json:"field,omitempty"`
	Value    any               `json:"value,omitempty"`
	Rules    []ConditionNode   `json:"rules,omitempty"`
}

// NotificationRule is a user-owned, per-channel delivery rule. The pipeline
// evaluates it read-only; users create and edit rules through preference
// updates.
type NotificationRule struct {
	ID         string
	UserID     string
	Channel    NotificationChannel
	EventTypes []string
	Conditions ConditionNode
	Enabled    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
