// Package guard scopes summary reads and writes to the record owner.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meeting-summarizer/internal/domain"
)

// ErrNotFoundOrForbidden is reported when no record matches (id, owner). A
// missing id and a record owned by someone else are deliberately identical.
var ErrNotFoundOrForbidden = errors.New("guard: summary not found or not owned by caller")

// Store is the subset of record persistence the guard composes over.
type Store interface {
	FindByID(ctx context.Context, id string) (domain.Summary, bool, error)
	UpdateIfOwnerMatches(ctx context.Context, id, ownerID string, m domain.SummaryMutation) (domain.Summary, bool, error)
	DeleteIfOwnerMatches(ctx context.Context, id, ownerID string) (bool, error)
}

// Guard exposes owner-scoped point reads and mutations. Mutations are single
// conditional store operations, so there is no gap between the ownership
// check and the write.
type Guard struct {
	store Store
}

func New(store Store) (*Guard, error) {
	if store == nil {
		return nil, errors.New("guard: store must not be nil")
	}
	return &Guard{store: store}, nil
}

// Get returns the record only when it is owned by owner.
func (g *Guard) Get(ctx context.Context, owner, id string) (domain.Summary, error) {
	if err := checkScope(owner, id); err != nil {
		return domain.Summary{}, err
	}
	s, found, err := g.store.FindByID(ctx, id)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("guard: get: %w", err)
	}
	if !found || s.OwnerID != owner {
		return domain.Summary{}, ErrNotFoundOrForbidden
	}
	return s, nil
}

// Update applies m to the record scoped by (id, owner).
func (g *Guard) Update(ctx context.Context, owner, id string, m domain.SummaryMutation) (domain.Summary, error) {
	if err := checkScope(owner, id); err != nil {
		return domain.Summary{}, err
	}
	s, found, err := g.store.UpdateIfOwnerMatches(ctx, id, owner, m)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("guard: update: %w", err)
	}
	if !found {
		return domain.Summary{}, ErrNotFoundOrForbidden
	}
	return s, nil
}

// Delete removes the record scoped by (id, owner).
func (g *Guard) Delete(ctx context.Context, owner, id string) error {
	if err := checkScope(owner, id); err != nil {
		return err
	}
	deleted, err := g.store.DeleteIfOwnerMatches(ctx, id, owner)
	if err != nil {
		return fmt.Errorf("guard: delete: %w", err)
	}
	if !deleted {
		return ErrNotFoundOrForbidden
	}
	return nil
}

// An empty owner would match records with no owner attribute; refuse it
// before the store sees it.
func checkScope(owner, id string) error {
	if strings.TrimSpace(owner) == "" {
		return errors.New("guard: owner must not be empty")
	}
	if strings.TrimSpace(id) == "" {
		return ErrNotFoundOrForbidden
	}
	return nil
}
