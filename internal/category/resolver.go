// Package category expands explicit category grants into the full
// accessible closure over the parent/child forest.
package category

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Repository is the storage surface the resolver needs.
type Repository interface {
	ListAll(ctx context.Context) ([]domain.TicketCategory, error)
	GrantedCategoryIDs(ctx context.Context, teamIDs []string) ([]string, error)
}

// Resolver computes category closures and ancestor chains.
type Resolver struct {
	repo Repository
}

// NewResolver constructs the resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// AccessibleCategoryIDs returns every category id the actor can reach: all
// of them when the actor holds the view-any permission, otherwise the ids
// granted to the actor's teams plus every descendant of those nodes.
func (r *Resolver) AccessibleCategoryIDs(ctx context.Context, actor domain.Actor) (map[string]struct{}, error) {
	categories, err := r.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	accessible := make(map[string]struct{})

	if hasViewAny(actor) {
		for _, c := range categories {
			accessible[c.ID] = struct{}{}
		}
		return accessible, nil
	}

	granted, err := r.repo.GrantedCategoryIDs(ctx, actor.TeamIDs())
	if err != nil {
		return nil, err
	}

	children := childIndex(categories)

	// Iterative depth-first expansion from each granted node: descendants
	// are included, ancestors never are.
	stack := append([]string(nil), granted...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := accessible[id]; seen {
			continue
		}
		accessible[id] = struct{}{}
		stack = append(stack, children[id]...)
	}

	return accessible, nil
}

// CanAccess reports whether a single category is inside the actor's
// closure. Callers translate a false into forbidden, not not-found, so the
// existence of an ungranted category never leaks.
func (r *Resolver) CanAccess(ctx context.Context, actor domain.Actor, categoryID string) (bool, error) {
	accessible, err := r.AccessibleCategoryIDs(ctx, actor)
	if err != nil {
		return false, err
	}
	_, ok := accessible[categoryID]
	return ok, nil
}

// AncestorChain walks parent pointers from the category to its root,
// inclusive of the starting node. Used to match field definitions attached
// at any ancestor level.
func (r *Resolver) AncestorChain(ctx context.Context, categoryID string) (map[string]struct{}, error) {
	categories, err := r.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.TicketCategory, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	chain := make(map[string]struct{})
	id := categoryID
	for {
		node, ok := byID[id]
		if !ok {
			break
		}
		if _, seen := chain[id]; seen {
			// cycle guard; the forest invariant makes this unreachable
			break
		}
		chain[id] = struct{}{}
		if node.ParentID == nil {
			break
		}
		id = *node.ParentID
	}
	return chain, nil
}

func childIndex(categories []domain.TicketCategory) map[string][]string {
	children := make(map[string][]string, len(categories))
	for _, c := range categories {
		if c.ParentID == nil {
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c.ID)
	}
	return children
}

func hasViewAny(actor domain.Actor) bool {
	for _, p := range actor.AllPermissions() {
		if p.Domain == "category" && p.Action == domain.ActionView && p.Scope == domain.ScopeAny {
			return true
		}
	}
	return false
}
