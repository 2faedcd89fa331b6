// Package notify implements the two-stage notification fan-out pipeline:
// stage 1 materializes an event's recipients through the access resolver,
// stage 2 evaluates each recipient's rule trees per channel and dispatches.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/rules"
)

// EventRepository loads notification events.
type EventRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.NotificationEvent, error)
}

// RecipientRepository persists fan-out targets. BulkInsert must skip
// duplicates so a replayed init job is a no-op.
type RecipientRepository interface {
	BulkInsert(ctx context.Context, eventID int64, userIDs []string) error
	ListByEvent(ctx context.Context, eventID int64) ([]domain.NotificationRecipient, error)
	MarkNotified(ctx context.Context, eventID int64, userID string, channel domain.NotificationChannel) error
}

// RuleRepository loads a user's rules for one channel.
type RuleRepository interface {
	ListForUser(ctx context.Context, userID string, channel domain.NotificationChannel) ([]domain.NotificationRule, error)
}

// UserRepository resolves delivery addresses.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// TicketReader loads tickets for context building.
type TicketReader interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
}

// ThreadReader loads threads and answers the first-thread question.
type ThreadReader interface {
	GetByID(ctx context.Context, id string) (*domain.Thread, error)
	IsFirstThread(ctx context.Context, thread *domain.Thread) (bool, error)
}

// ChangeReader loads change records.
type ChangeReader interface {
	GetByID(ctx context.Context, id string) (*domain.TicketChange, error)
}

// AudienceResolver is the reverse direction of the ticket access resolver.
type AudienceResolver interface {
	WhoCanAccess(ctx context.Context, ticketID string) (*access.Audience, error)
}

// Enqueuer pushes the next stage's job.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any) error
}

// Dependencies bundles pipeline collaborators.
type Dependencies struct {
	Events        EventRepository
	Recipients    RecipientRepository
	Rules         RuleRepository
	Users         UserRepository
	Tickets       TicketReader
	Threads       ThreadReader
	Changes       ChangeReader
	Audience      AudienceResolver
	DeliveryQueue Enqueuer
	Email         EmailSender
	SMS           SMSSender
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// Pipeline runs both fan-out stages.
type Pipeline struct {
	deps Dependencies
}

// NewPipeline constructs the pipeline.
func NewPipeline(deps Dependencies) *Pipeline {
	return &Pipeline{deps: deps}
}

// HandleInit is the stage-1 worker handler: event -> recipient rows.
// Missing events or dangling linkage abandon the job (logged, nil return);
// storage failures bubble up for the queue's retry policy.
func (p *Pipeline) HandleInit(ctx context.Context, payload json.RawMessage) error {
	var job InitJob
	if err := json.Unmarshal(payload, &job); err != nil {
		p.deps.Logger.Error("undecodable init payload", zap.Error(err))
		return nil
	}

	event, err := p.deps.Events.GetByID(ctx, job.EventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			p.deps.Logger.Warn("abandoning init for missing event", zap.Int64("event_id", job.EventID))
			return nil
		}
		return err
	}

	ticketID, _, err := p.resolveLinkage(ctx, event)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, errDanglingEvent) {
			p.deps.Logger.Warn("abandoning init for dangling event",
				zap.Int64("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
			return nil
		}
		return err
	}

	audience, err := p.deps.Audience.WhoCanAccess(ctx, ticketID)
	if err != nil {
		return err
	}

	userIDs := make([]string, 0, len(audience.Users))
	for _, u := range audience.Users {
		userIDs = append(userIDs, u.UserID)
	}
	if err := p.deps.Recipients.BulkInsert(ctx, event.ID, userIDs); err != nil {
		return err
	}
	p.deps.Metrics.RecordPipeline("recipients_materialized", len(userIDs))

	return p.deps.DeliveryQueue.Enqueue(ctx, DeliveryJob{EventID: event.ID})
}

// HandleDelivery is the stage-2 worker handler: recipients -> channel
// sends. Per-channel notified flags make replays harmless; a transport
// failure returns an error so the queue retries the remainder.
func (p *Pipeline) HandleDelivery(ctx context.Context, payload json.RawMessage) error {
	var job DeliveryJob
	if err := json.Unmarshal(payload, &job); err != nil {
		p.deps.Logger.Error("undecodable delivery payload", zap.Error(err))
		return nil
	}

	event, err := p.deps.Events.GetByID(ctx, job.EventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			p.deps.Logger.Warn("abandoning delivery for missing event", zap.Int64("event_id", job.EventID))
			return nil
		}
		return err
	}

	ticketID, eventCtx, err := p.resolveLinkage(ctx, event)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, errDanglingEvent) {
			p.deps.Logger.Warn("abandoning delivery for dangling event", zap.Int64("event_id", event.ID))
			return nil
		}
		return err
	}

	ticket, err := p.deps.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			p.deps.Logger.Warn("abandoning delivery for missing ticket",
				zap.Int64("event_id", event.ID), zap.String("ticket_id", ticketID))
			return nil
		}
		return err
	}

	eventType := eventCtx.eventType
	baseCtx := rules.Context{
		"eventType":  string(eventType),
		"ticketId":   ticket.ID,
		"subject":    ticket.Subject,
		"status":     string(ticket.CurrentStatus),
		"priorityId": ticket.CurrentPriorityID,
		"categoryId": ticket.CurrentCategoryID,
	}
	for k, v := range eventCtx.fields {
		baseCtx[k] = v
	}

	recipients, err := p.deps.Recipients.ListByEvent(ctx, event.ID)
	if err != nil {
		return err
	}

	var failures []error
	for _, recipient := range recipients {
		if err := p.deliverToRecipient(ctx, event, eventType, baseCtx, recipient); err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("delivery incomplete for event %d: %w", event.ID, errors.Join(failures...))
	}
	return nil
}

func (p *Pipeline) deliverToRecipient(ctx context.Context, event *domain.NotificationEvent, eventType domain.NotificationEventType, baseCtx rules.Context, recipient domain.NotificationRecipient) error {
	user, err := p.deps.Users.GetByID(ctx, recipient.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			p.deps.Logger.Warn("skipping recipient without user row",
				zap.Int64("event_id", event.ID), zap.String("user_id", recipient.UserID))
			return nil
		}
		return err
	}

	userCtx := make(rules.Context, len(baseCtx)+1)
	for k, v := range baseCtx {
		userCtx[k] = v
	}
	userCtx["userId"] = user.ID

	if !recipient.EmailNotified {
		if err := p.deliverChannel(ctx, event, eventType, userCtx, user, domain.ChannelEmail); err != nil {
			return err
		}
	}
	if !recipient.SMSNotified {
		if err := p.deliverChannel(ctx, event, eventType, userCtx, user, domain.ChannelSMS); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) deliverChannel(ctx context.Context, event *domain.NotificationEvent, eventType domain.NotificationEventType, userCtx rules.Context, user *domain.User, channel domain.NotificationChannel) error {
	ruleSet, err := p.deps.Rules.ListForUser(ctx, user.ID, channel)
	if err != nil {
		return err
	}

	matched := false
	for _, rule := range ruleSet {
		if rules.RuleApplies(rule, eventType, userCtx) {
			matched = true
			break
		}
	}
	if !matched {
		return nil
	}

	rendered := renderTemplate(eventType, userCtx)
	switch channel {
	case domain.ChannelEmail:
		if user.Email == "" {
			return nil
		}
		if err := p.deps.Email.SendEmail(ctx, user.Email, rendered.Subject, rendered.Body); err != nil {
			p.deps.Metrics.RecordPipeline("email_failures", 1)
			return err
		}
		p.deps.Metrics.RecordPipeline("emails_sent", 1)
	case domain.ChannelSMS:
		if user.Phone == "" {
			return nil
		}
		if err := p.deps.SMS.SendSMS(ctx, user.Phone, rendered.Text); err != nil {
			p.deps.Metrics.RecordPipeline("sms_failures", 1)
			return err
		}
		p.deps.Metrics.RecordPipeline("sms_sent", 1)
	}

	// the flag is the idempotency guard against duplicate sends on replay
	return p.deps.Recipients.MarkNotified(ctx, event.ID, user.ID, channel)
}

var errDanglingEvent = errors.New("notification event has no linkage")

// eventContext carries the type (after normalization) and the extra
// context fields derived from the event's thread or change record.
type eventContext struct {
	eventType domain.NotificationEventType
	fields    rules.Context
}

// resolveLinkage follows the event's single populated reference to its
// ticket and builds the event-specific context. A THREAD_NEW event on a
// ticket's very first thread normalizes to CREATED: the opening message is
// the ticket's creation, not a reply.
func (p *Pipeline) resolveLinkage(ctx context.Context, event *domain.NotificationEvent) (string, eventContext, error) {
	switch {
	case event.ThreadID != nil:
		thread, err := p.deps.Threads.GetByID(ctx, *event.ThreadID)
		if err != nil {
			return "", eventContext{}, err
		}
		eventType := event.Type
		first, err := p.deps.Threads.IsFirstThread(ctx, thread)
		if err != nil {
			return "", eventContext{}, err
		}
		if eventType == domain.EventThreadNew && first {
			eventType = domain.EventCreated
		}
		return thread.TicketID, eventContext{
			eventType: eventType,
			fields: rules.Context{
				"threadId":      thread.ID,
				"threadBody":    thread.Body,
				"isFirstThread": first,
			},
		}, nil
	case event.ChangeID != nil:
		ch, err := p.deps.Changes.GetByID(ctx, *event.ChangeID)
		if err != nil {
			return "", eventContext{}, err
		}
		fields := rules.Context{"field": string(ch.Field)}
		if ch.FromValue != nil {
			fields["from"] = *ch.FromValue
		}
		if ch.ToValue != nil {
			fields["to"] = *ch.ToValue
		}
		return ch.TicketID, eventContext{eventType: event.Type, fields: fields}, nil
	}
	return "", eventContext{}, errDanglingEvent
}
