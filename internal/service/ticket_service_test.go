package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

type fakeTicketStore struct {
	tickets    map[string]*domain.Ticket
	relations  map[string]access.TicketRelations
	applied    []repository.ChangeSet
	threads    []*domain.Thread
	nextEvent  int64
	lastEvents []int64
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{
		tickets:   make(map[string]*domain.Ticket),
		relations: make(map[string]access.TicketRelations),
		nextEvent: 100,
	}
}

func (f *fakeTicketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	ticket.ID = "tk-new"
	f.tickets[ticket.ID] = ticket
	return nil
}

func (f *fakeTicketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeTicketStore) QueryByRules(_ context.Context, rules []access.AccessRule, matchAll bool) ([]access.TicketRelations, error) {
	var out []access.TicketRelations
	for _, rel := range f.relations {
		if matchAll {
			out = append(out, rel)
			continue
		}
		for _, rule := range rules {
			if rule.Matches(rel) {
				out = append(out, rel)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTicketStore) RelationsFor(_ context.Context, ticketID string) (*access.TicketRelations, error) {
	rel, ok := f.relations[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	r := rel
	return &r, nil
}

func (f *fakeTicketStore) ApplyChange(_ context.Context, cs repository.ChangeSet) (int64, error) {
	f.applied = append(f.applied, cs)
	f.nextEvent++
	f.lastEvents = append(f.lastEvents, f.nextEvent)
	return f.nextEvent, nil
}

func (f *fakeTicketStore) CreateThread(_ context.Context, thread *domain.Thread) (int64, error) {
	thread.ID = "th-new"
	f.threads = append(f.threads, thread)
	f.nextEvent++
	f.lastEvents = append(f.lastEvents, f.nextEvent)
	return f.nextEvent, nil
}

type fakeThreadRepo struct{}

func (fakeThreadRepo) GetByID(_ context.Context, _ string) (*domain.Thread, error) {
	return nil, pgx.ErrNoRows
}
func (fakeThreadRepo) ListByTicket(_ context.Context, _ string) ([]domain.Thread, error) {
	return nil, nil
}
func (fakeThreadRepo) IsFirstThread(_ context.Context, _ *domain.Thread) (bool, error) {
	return false, nil
}

type fakeChangeRepo struct{}

func (fakeChangeRepo) GetByID(_ context.Context, _ string) (*domain.TicketChange, error) {
	return nil, pgx.ErrNoRows
}
func (fakeChangeRepo) ListByTicket(_ context.Context, _ string) ([]domain.TicketChange, error) {
	return nil, nil
}

type fakeDirectory struct{}

func (fakeDirectory) ListActors(_ context.Context) ([]domain.Actor, error) { return nil, nil }
func (fakeDirectory) MembershipEntityIDs(_ context.Context, teamID, userTeamID string) ([]string, error) {
	return nil, nil
}

type fakeCategoryRepo struct {
	categories []domain.TicketCategory
	grants     map[string][]string
}

func (f *fakeCategoryRepo) ListAll(_ context.Context) ([]domain.TicketCategory, error) {
	return f.categories, nil
}

func (f *fakeCategoryRepo) GrantedCategoryIDs(_ context.Context, teamIDs []string) ([]string, error) {
	var out []string
	for _, id := range teamIDs {
		out = append(out, f.grants[id]...)
	}
	return out, nil
}

type fakePriorityRepo struct {
	priorities []domain.TicketPriority
}

func (f *fakePriorityRepo) ListAll(_ context.Context) ([]domain.TicketPriority, error) {
	return f.priorities, nil
}

func (f *fakePriorityRepo) GetByID(_ context.Context, id string) (*domain.TicketPriority, error) {
	for _, p := range f.priorities {
		if p.ID == id {
			pr := p
			return &pr, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeEntityRepo struct {
	byOwner map[string]string
	next    int
}

func newFakeEntityRepo() *fakeEntityRepo {
	return &fakeEntityRepo{byOwner: make(map[string]string)}
}

func (f *fakeEntityRepo) ListByOwner(_ context.Context, kind domain.EntityOwnerKind, ownerID string) ([]domain.Entity, error) {
	id, ok := f.byOwner[string(kind)+"/"+ownerID]
	if !ok {
		return nil, nil
	}
	e := domain.Entity{ID: id}
	switch kind {
	case domain.OwnerKindTeam:
		e.TeamID = &ownerID
	case domain.OwnerKindUserTeam:
		e.UserTeamID = &ownerID
	case domain.OwnerKindAPIKey:
		e.APIKeyID = &ownerID
	}
	return []domain.Entity{e}, nil
}

func (f *fakeEntityRepo) Create(_ context.Context, kind domain.EntityOwnerKind, ownerID string) (*domain.Entity, error) {
	f.next++
	id := "ent-" + ownerID
	f.byOwner[string(kind)+"/"+ownerID] = id
	e := &domain.Entity{ID: id}
	switch kind {
	case domain.OwnerKindTeam:
		e.TeamID = &ownerID
	case domain.OwnerKindUserTeam:
		e.UserTeamID = &ownerID
	case domain.OwnerKindAPIKey:
		e.APIKeyID = &ownerID
	}
	return e, nil
}

func (f *fakeEntityRepo) Delete(_ context.Context, id string) error { return nil }

type captureQueue struct {
	jobs []notify.InitJob
}

func (c *captureQueue) Enqueue(_ context.Context, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var job notify.InitJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return err
	}
	c.jobs = append(c.jobs, job)
	return nil
}

func ptr(s string) *string { return &s }

// fixture: team T1 with member u1 (membership ut1); ticket tk1 assigned to
// T1 unclaimed; ticket tk2 assigned to T2.
type ticketFixture struct {
	store   *fakeTicketStore
	queue   *captureQueue
	metrics *observability.Metrics
	svc     *TicketService
}

func newTicketFixture() *ticketFixture {
	store := newFakeTicketStore()
	store.tickets["tk1"] = &domain.Ticket{
		ID:                "tk1",
		Subject:           "printer on fire",
		CurrentStatus:     domain.TicketStatusOpen,
		CurrentPriorityID: "p1",
		CurrentCategoryID: "c1",
	}
	store.relations["tk1"] = access.TicketRelations{
		TicketID:          "tk1",
		AssignedEntityID:  ptr("ent-T1"),
		AssignedTeamID:    ptr("T1"),
		CreatedByEntityID: "ent-creator",
	}
	store.tickets["tk2"] = &domain.Ticket{
		ID:                "tk2",
		Subject:           "other team's problem",
		CurrentStatus:     domain.TicketStatusOpen,
		CurrentPriorityID: "p1",
		CurrentCategoryID: "c1",
	}
	store.relations["tk2"] = access.TicketRelations{
		TicketID:          "tk2",
		AssignedEntityID:  ptr("ent-T2"),
		AssignedTeamID:    ptr("T2"),
		CreatedByEntityID: "ent-creator",
	}

	queue := &captureQueue{}
	catRepo := &fakeCategoryRepo{
		categories: []domain.TicketCategory{{ID: "c1", Name: "hardware"}},
		grants:     map[string][]string{"T1": {"c1"}},
	}
	prioRepo := &fakePriorityRepo{priorities: []domain.TicketPriority{
		{ID: "p1", Name: "normal", Order: 1},
		{ID: "p2", Name: "urgent", Order: 2},
	}}
	metrics := observability.NewMetrics()
	svc := NewTicketService(TicketDependencies{
		TicketRepo:   store,
		ThreadRepo:   fakeThreadRepo{},
		ChangeRepo:   fakeChangeRepo{},
		PriorityRepo: prioRepo,
		Access:       access.NewResolver(store, fakeDirectory{}),
		Categories:   category.NewResolver(catRepo),
		Validator:    change.NewValidator(),
		Entities:     entity.NewResolver(newFakeEntityRepo(), zap.NewNop()),
		InitQueue:    queue,
		Logger:       zap.NewNop(),
		Metrics:      metrics,
	})
	return &ticketFixture{store: store, queue: queue, metrics: metrics, svc: svc}
}

func agentPrincipal(perms ...string) auth.Principal {
	return auth.Principal{Actor: domain.Actor{
		UserID: "u1",
		Teams: []domain.TeamMembership{{
			UserTeamID:            "ut1",
			TeamID:                "T1",
			MembershipPermissions: domain.ParsePermissions(perms),
		}},
	}}
}

func TestGetTicketVisible(t *testing.T) {
	fx := newTicketFixture()
	principal := agentPrincipal("ticket:read:assigned:team:any")

	ticket, err := fx.svc.GetTicket(context.Background(), principal, "tk1")
	require.NoError(t, err)
	assert.Equal(t, "printer on fire", ticket.Subject)
}

func TestGetTicketOutsideScopeDenied(t *testing.T) {
	fx := newTicketFixture()
	principal := agentPrincipal("ticket:read:assigned:team:any")

	_, err := fx.svc.GetTicket(context.Background(), principal, "tk2")
	require.Error(t, err)
	assert.True(t, apperrors.IsPermissionDenied(err))

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "forbidden", domainErr.Message)
}

func TestGetTicketMissingIsNotFound(t *testing.T) {
	fx := newTicketFixture()
	principal := agentPrincipal("ticket:read:assigned:team:any")

	_, err := fx.svc.GetTicket(context.Background(), principal, "nope")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestChangeStatusAppliesAndEnqueues(t *testing.T) {
	fx := newTicketFixture()
	principal := agentPrincipal("ticket:read:assigned:team:any", "ticket:action:status:team")

	err := fx.svc.ChangeStatus(context.Background(), principal, "tk1", domain.TicketStatusInProgress)
	require.NoError(t, err)

	require.Len(t, fx.store.applied, 1)
	cs := fx.store.applied[0]
	assert.Equal(t, domain.ChangeFieldStatus, cs.Field)
	assert.Equal(t, "OPEN", *cs.FromValue)
	assert.Equal(t, "IN_PROGRESS", *cs.ToValue)
	assert.Equal(t, "ent-ut1", cs.ActorEntityID)
	assert.Equal(t, domain.EventStatusChanged, cs.EventType)

	require.Len(t, fx.queue.jobs, 1)
	assert.Equal(t, fx.store.lastEvents[0], fx.queue.jobs[0].EventID)
	assert.Equal(t, int64(1), fx.metrics.TicketChangeCount("STATUS"))
}

func TestChangePriorityApplies(t *testing.T) {
	fx := newTicketFixture()
	principal := agentPrincipal("ticket:read:assigned:team:any", "ticket:action:priority:team")

	err := fx.svc.ChangePriority(context.Background(), principal, "tk1", "p2")
	require.NoError(t, err)

	require.Len(t, fx.store.applied, 1)
	cs := fx.store.applied[0]
	assert.Equal(t, domain.ChangeFieldPriority, cs.Field)
	assert.Equal(t, "p1", *cs.FromValue)
	assert.Equal(t, "p2", *cs.ToValue)
	assert.Equal(t, int64(1), fx.metrics.TicketChangeCount("PRIORITY"))
}

func TestChangePriorityUnknownRejected(t *testing.T) {
	fx := newTicketFixture()
	principal := agentPrincipal("ticket:read:assigned:team:any", "ticket:action:priority:team")

	err := fx.svc.ChangePriority(context.Background(), principal, "tk1", "p-nope")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
	assert.Empty(t, fx.store.applied)
	assert.Empty(t, fx.queue.jobs)
}

func TestChangeStatusWithoutPermissionDenied(t *testing.T) {
	fx := newTicketFixture()
	principal := agentPrincipal("ticket:read:assigned:team:any")

	err := fx.svc.ChangeStatus(context.Background(), principal, "tk1", domain.TicketStatusClosed)
	require.Error(t, err)
	assert.True(t, apperrors.IsPermissionDenied(err))
	assert.Empty(t, fx.store.applied)
	assert.Empty(t, fx.queue.jobs)
}

func TestClaimUnclaimedTicket(t *testing.T) {
	fx := newTicketFixture()
	principal := agentPrincipal("ticket:read:assigned:team:any", "ticket:claim:team:unclaimed")

	err := fx.svc.ChangeAssignment(context.Background(), principal, "tk1", AssignmentInput{
		TeamID:     ptr("T1"),
		UserTeamID: ptr("ut1"),
	})
	require.NoError(t, err)

	require.Len(t, fx.store.applied, 1)
	cs := fx.store.applied[0]
	assert.Equal(t, domain.ChangeFieldAssignment, cs.Field)
	require.NotNil(t, cs.NewAssignedEntityID)
	assert.Equal(t, "ent-ut1", *cs.NewAssignedEntityID)
	assert.Len(t, fx.queue.jobs, 1)
}

func TestAddThreadOnClosedTicketRejected(t *testing.T) {
	fx := newTicketFixture()
	fx.store.tickets["tk1"].CurrentStatus = domain.TicketStatusClosed
	principal := agentPrincipal("ticket:read:assigned:team:any")

	_, err := fx.svc.AddThread(context.Background(), principal, "tk1", "still broken")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
	assert.Empty(t, fx.queue.jobs)
}

func TestAddThreadEnqueuesInitJob(t *testing.T) {
	fx := newTicketFixture()
	principal := agentPrincipal("ticket:read:assigned:team:any")

	thread, err := fx.svc.AddThread(context.Background(), principal, "tk1", "any update?")
	require.NoError(t, err)
	assert.Equal(t, "ent-ut1", thread.AuthorEntityID)
	require.Len(t, fx.queue.jobs, 1)
}

func TestCreateTicketRequiresCategoryAccess(t *testing.T) {
	fx := newTicketFixture()
	principal := agentPrincipal("ticket:read:assigned:team:any")

	_, err := fx.svc.CreateTicket(context.Background(), principal, TicketCreateInput{
		Subject:    "vpn down",
		CategoryID: "c-unknown",
		PriorityID: "p1",
		Body:       "cannot connect",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsPermissionDenied(err))
}

func TestCreateTicketWithFirstThread(t *testing.T) {
	fx := newTicketFixture()
	principal := agentPrincipal("ticket:read:assigned:team:any")

	ticket, err := fx.svc.CreateTicket(context.Background(), principal, TicketCreateInput{
		Subject:    "vpn down",
		CategoryID: "c1",
		PriorityID: "p1",
		TeamID:     ptr("T1"),
		Body:       "cannot connect",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.CurrentStatus)
	require.NotNil(t, ticket.CurrentAssignedToID)
	assert.Equal(t, "ent-T1", *ticket.CurrentAssignedToID)

	require.Len(t, fx.store.threads, 1)
	assert.Equal(t, "cannot connect", fx.store.threads[0].Body)
	assert.Len(t, fx.queue.jobs, 1)
}
