package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/category"
	"github.com/spec-kit/helpdesk-service/internal/change"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/entity"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketService coordinates ticket mutations. Every mutation follows the
// same shape: load the ownership snapshot, check access, check the
// transition policy, apply atomically, enqueue the init job.
type TicketService struct {
	tickets    repository.TicketRepository
	threads    repository.ThreadRepository
	changes    repository.ChangeRepository
	priorities repository.PriorityRepository
	access     *access.Resolver
	categories *category.Resolver
	validator  *change.Validator
	entities   *entity.Resolver
	initQueue  notify.Enqueuer
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	ThreadRepo   repository.ThreadRepository
	ChangeRepo   repository.ChangeRepository
	PriorityRepo repository.PriorityRepository
	Access       *access.Resolver
	Categories   *category.Resolver
	Validator    *change.Validator
	Entities     *entity.Resolver
	InitQueue    notify.Enqueuer
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// NewTicketService constructs ticket service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		threads:    deps.ThreadRepo,
		changes:    deps.ChangeRepo,
		priorities: deps.PriorityRepo,
		access:     deps.Access,
		categories: deps.Categories,
		validator:  deps.Validator,
		entities:   deps.Entities,
		initQueue:  deps.InitQueue,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// TicketCreateInput describes ticket creation payload. Body becomes the
// ticket's first thread.
type TicketCreateInput struct {
	Subject    string
	CategoryID string
	PriorityID string
	TeamID     *string
	Body       string
}

// AssignmentInput names an assignment destination. Nil TeamID and
// UserTeamID together mean unassign.
type AssignmentInput struct {
	TeamID     *string
	UserTeamID *string
}

// actorEntityID resolves the entity a principal's actions are recorded
// under. Machine callers carry theirs; users act through a membership,
// preferring one in the given team.
func (s *TicketService) actorEntityID(ctx context.Context, principal auth.Principal, preferredTeamID string) (string, error) {
	if principal.APIKeyEntityID != "" {
		return principal.APIKeyEntityID, nil
	}
	memberships := principal.Actor.Teams
	if len(memberships) == 0 {
		return "", apperrors.NewValidationError("caller has no membership to act through", nil)
	}
	chosen := memberships[0]
	if preferredTeamID != "" {
		for _, m := range memberships {
			if m.TeamID == preferredTeamID {
				chosen = m
				break
			}
		}
	}
	return s.entities.Resolve(ctx, domain.OwnerKindUserTeam, chosen.UserTeamID)
}

// requirePriority checks the priority id against reference data.
func (s *TicketService) requirePriority(ctx context.Context, priorityID string) error {
	if _, err := s.priorities.GetByID(ctx, priorityID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("unknown priority", map[string]any{"priority_id": priorityID})
		}
		return err
	}
	return nil
}

// requireAccess loads the ownership snapshot and checks the caller can see
// the ticket. A missing ticket is not-found; an invisible one is a plain
// forbidden that names no scope.
func (s *TicketService) requireAccess(ctx context.Context, principal auth.Principal, ticketID string) (*access.TicketRelations, error) {
	rel, err := s.tickets.RelationsFor(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	via, err := s.access.CanAccess(ctx, principal.Actor, ticketID)
	if err != nil {
		return nil, err
	}
	if len(via) == 0 {
		return nil, apperrors.NewPermissionError("ticket:read", "ticket", map[string]any{"ticket_id": ticketID})
	}
	return rel, nil
}

// CreateTicket creates a ticket together with its first thread. The
// notification event rides on the thread; first-thread normalization in the
// pipeline reports it as a creation.
func (s *TicketService) CreateTicket(ctx context.Context, principal auth.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if input.Subject == "" || input.Body == "" {
		return nil, apperrors.NewValidationError("subject and body are required", nil)
	}
	if err := s.requirePriority(ctx, input.PriorityID); err != nil {
		return nil, err
	}
	ok, err := s.categories.CanAccess(ctx, principal.Actor, input.CategoryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewPermissionError("category:view", "category", map[string]any{"category_id": input.CategoryID})
	}

	preferredTeam := ""
	if input.TeamID != nil {
		preferredTeam = *input.TeamID
	}
	creatorEntityID, err := s.actorEntityID(ctx, principal, preferredTeam)
	if err != nil {
		return nil, err
	}

	var assignedEntityID *string
	if input.TeamID != nil {
		id, err := s.entities.Resolve(ctx, domain.OwnerKindTeam, *input.TeamID)
		if err != nil {
			return nil, err
		}
		assignedEntityID = &id
	}

	ticket := &domain.Ticket{
		Subject:             input.Subject,
		CurrentStatus:       domain.TicketStatusOpen,
		CurrentPriorityID:   input.PriorityID,
		CurrentCategoryID:   input.CategoryID,
		CurrentAssignedToID: assignedEntityID,
		CreatedByID:         creatorEntityID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	thread := &domain.Thread{
		TicketID:       ticket.ID,
		Body:           input.Body,
		AuthorEntityID: creatorEntityID,
	}
	eventID, err := s.tickets.CreateThread(ctx, thread)
	if err != nil {
		return nil, err
	}
	s.enqueueInit(ctx, eventID)
	return ticket, nil
}

// GetTicket returns a ticket the caller can see.
func (s *TicketService) GetTicket(ctx context.Context, principal auth.Principal, ticketID string) (*domain.Ticket, error) {
	if _, err := s.requireAccess(ctx, principal, ticketID); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.ToDomainError(err)
	}
	return ticket, nil
}

// AccessibleTickets lists every ticket the caller can see with provenance.
func (s *TicketService) AccessibleTickets(ctx context.Context, principal auth.Principal) ([]access.TicketAccess, error) {
	return s.access.AccessibleTickets(ctx, principal.Actor)
}

// Audience answers who can see a ticket. The caller must see it first.
func (s *TicketService) Audience(ctx context.Context, principal auth.Principal, ticketID string) (*access.Audience, error) {
	if _, err := s.requireAccess(ctx, principal, ticketID); err != nil {
		return nil, err
	}
	return s.access.WhoCanAccess(ctx, ticketID)
}

// History lists a ticket's change records.
func (s *TicketService) History(ctx context.Context, principal auth.Principal, ticketID string) ([]domain.TicketChange, error) {
	if _, err := s.requireAccess(ctx, principal, ticketID); err != nil {
		return nil, err
	}
	return s.changes.ListByTicket(ctx, ticketID)
}

// ChangeAssignment claims, reassigns or unassigns a ticket.
func (s *TicketService) ChangeAssignment(ctx context.Context, principal auth.Principal, ticketID string, input AssignmentInput) error {
	rel, err := s.requireAccess(ctx, principal, ticketID)
	if err != nil {
		return err
	}

	var from *change.AssignmentRef
	if rel.AssignedEntityID != nil {
		from = &change.AssignmentRef{
			EntityID:   *rel.AssignedEntityID,
			TeamID:     rel.AssignedTeamID,
			UserTeamID: rel.AssignedUserTeamID,
		}
	}

	var to *change.AssignmentRef
	var newAssigned *string
	if input.UserTeamID != nil {
		if input.TeamID == nil {
			return apperrors.NewValidationError("teamId is required with userTeamId", nil)
		}
		id, err := s.entities.Resolve(ctx, domain.OwnerKindUserTeam, *input.UserTeamID)
		if err != nil {
			return err
		}
		to = &change.AssignmentRef{EntityID: id, TeamID: input.TeamID, UserTeamID: input.UserTeamID}
		newAssigned = &id
	} else if input.TeamID != nil {
		id, err := s.entities.Resolve(ctx, domain.OwnerKindTeam, *input.TeamID)
		if err != nil {
			return err
		}
		to = &change.AssignmentRef{EntityID: id, TeamID: input.TeamID}
		newAssigned = &id
	}

	if err := s.validator.CanChangeAssignment(principal.Actor, from, to); err != nil {
		return err
	}

	preferredTeam := ""
	if to != nil && to.TeamID != nil {
		preferredTeam = *to.TeamID
	} else if rel.AssignedTeamID != nil {
		preferredTeam = *rel.AssignedTeamID
	}
	actorEntityID, err := s.actorEntityID(ctx, principal, preferredTeam)
	if err != nil {
		return err
	}

	var fromValue, toValue *string
	if from != nil {
		v := from.EntityID
		fromValue = &v
	}
	if to != nil {
		v := to.EntityID
		toValue = &v
	}
	return s.applyChange(ctx, repository.ChangeSet{
		TicketID:            ticketID,
		Field:               domain.ChangeFieldAssignment,
		FromValue:           fromValue,
		ToValue:             toValue,
		ActorEntityID:       actorEntityID,
		NewAssignedEntityID: newAssigned,
		EventType:           domain.EventAssignmentChanged,
	})
}

// ChangeCategory moves a ticket to another category. Both sides of the
// transition must sit inside the caller's category closure.
func (s *TicketService) ChangeCategory(ctx context.Context, principal auth.Principal, ticketID, categoryID string) error {
	rel, err := s.requireAccess(ctx, principal, ticketID)
	if err != nil {
		return err
	}
	ok, err := s.categories.CanAccess(ctx, principal.Actor, categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewPermissionError("category:view", "category", map[string]any{"category_id": categoryID})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return apperrors.ToDomainError(err)
	}
	if ticket.CurrentCategoryID == categoryID {
		return nil
	}
	if err := s.validator.CanChangeField(principal.Actor, *rel, domain.ChangeFieldCategory, ticket.CurrentCategoryID, categoryID); err != nil {
		return err
	}
	return s.applyFieldChange(ctx, principal, rel, domain.ChangeFieldCategory, ticket.CurrentCategoryID, categoryID, domain.EventCategoryChanged)
}

// ChangePriority moves a ticket to another priority.
func (s *TicketService) ChangePriority(ctx context.Context, principal auth.Principal, ticketID, priorityID string) error {
	rel, err := s.requireAccess(ctx, principal, ticketID)
	if err != nil {
		return err
	}
	if err := s.requirePriority(ctx, priorityID); err != nil {
		return err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return apperrors.ToDomainError(err)
	}
	if ticket.CurrentPriorityID == priorityID {
		return nil
	}
	if err := s.validator.CanChangeField(principal.Actor, *rel, domain.ChangeFieldPriority, ticket.CurrentPriorityID, priorityID); err != nil {
		return err
	}
	return s.applyFieldChange(ctx, principal, rel, domain.ChangeFieldPriority, ticket.CurrentPriorityID, priorityID, domain.EventPriorityChanged)
}

// ChangeStatus transitions a ticket's status. Reopening a closed ticket
// takes the widest scope; the validator enforces that.
func (s *TicketService) ChangeStatus(ctx context.Context, principal auth.Principal, ticketID string, status domain.TicketStatus) error {
	if !status.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown status %q", status), nil)
	}
	rel, err := s.requireAccess(ctx, principal, ticketID)
	if err != nil {
		return err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return apperrors.ToDomainError(err)
	}
	if ticket.CurrentStatus == status {
		return nil
	}
	if err := s.validator.CanChangeField(principal.Actor, *rel, domain.ChangeFieldStatus, string(ticket.CurrentStatus), string(status)); err != nil {
		return err
	}
	return s.applyFieldChange(ctx, principal, rel, domain.ChangeFieldStatus, string(ticket.CurrentStatus), string(status), domain.EventStatusChanged)
}

// AddThread appends a message to an open ticket.
func (s *TicketService) AddThread(ctx context.Context, principal auth.Principal, ticketID, body string) (*domain.Thread, error) {
	if body == "" {
		return nil, apperrors.NewValidationError("body is required", nil)
	}
	rel, err := s.requireAccess(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.ToDomainError(err)
	}
	if ticket.Closed() {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticketID})
	}

	preferredTeam := ""
	if rel.AssignedTeamID != nil {
		preferredTeam = *rel.AssignedTeamID
	}
	authorEntityID, err := s.actorEntityID(ctx, principal, preferredTeam)
	if err != nil {
		return nil, err
	}

	thread := &domain.Thread{
		TicketID:       ticketID,
		Body:           body,
		AuthorEntityID: authorEntityID,
	}
	eventID, err := s.tickets.CreateThread(ctx, thread)
	if err != nil {
		return nil, err
	}
	s.enqueueInit(ctx, eventID)
	return thread, nil
}

// Threads lists a ticket's messages.
func (s *TicketService) Threads(ctx context.Context, principal auth.Principal, ticketID string) ([]domain.Thread, error) {
	if _, err := s.requireAccess(ctx, principal, ticketID); err != nil {
		return nil, err
	}
	return s.threads.ListByTicket(ctx, ticketID)
}

func (s *TicketService) applyFieldChange(ctx context.Context, principal auth.Principal, rel *access.TicketRelations, field domain.ChangeField, from, to string, eventType domain.NotificationEventType) error {
	preferredTeam := ""
	if rel.AssignedTeamID != nil {
		preferredTeam = *rel.AssignedTeamID
	}
	actorEntityID, err := s.actorEntityID(ctx, principal, preferredTeam)
	if err != nil {
		return err
	}
	return s.applyChange(ctx, repository.ChangeSet{
		TicketID:      rel.TicketID,
		Field:         field,
		FromValue:     &from,
		ToValue:       &to,
		ActorEntityID: actorEntityID,
		EventType:     eventType,
	})
}

func (s *TicketService) applyChange(ctx context.Context, cs repository.ChangeSet) error {
	eventID, err := s.tickets.ApplyChange(ctx, cs)
	if err != nil {
		return apperrors.ToDomainError(err)
	}
	s.metrics.RecordTicketChange(string(cs.Field))
	s.enqueueInit(ctx, eventID)
	return nil
}

// enqueueInit pushes the init job. The change is already committed when we
// get here, so a failed enqueue is logged rather than surfaced; the event
// row persists for reconciliation.
func (s *TicketService) enqueueInit(ctx context.Context, eventID int64) {
	if err := s.initQueue.Enqueue(ctx, notify.InitJob{EventID: eventID}); err != nil {
		s.logger.Error("enqueue init job failed", zap.Int64("event_id", eventID), zap.Error(err))
	}
}
