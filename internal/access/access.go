// Package access answers whether a user may see or change a project.
// Ownership grants everything; contributors must have accepted the invite.
package access

import (
	"context"
	"database/sql"
	"errors"

	"omnihub/api/internal/store"
)

var ErrForbidden = errors.New("not a member of this project")

type projectReader interface {
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	GetContributor(ctx context.Context, projectID, userID string) (store.Contributor, error)
}

type Checker struct {
	store projectReader
}

func NewChecker(s projectReader) *Checker {
	return &Checker{store: s}
}

// RequireMember returns the project when userID owns it or is an accepted
// contributor. A missing project surfaces as sql.ErrNoRows for the caller's
// not-found mapping; a non-member gets ErrForbidden.
func (c *Checker) RequireMember(ctx context.Context, projectID, userID string) (store.Project, error) {
	project, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Project{}, err
	}
	if project.OwnerID == userID {
		return project, nil
	}
	contributor, err := c.store.GetContributor(ctx, projectID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Project{}, ErrForbidden
	}
	if err != nil {
		return store.Project{}, err
	}
	if contributor.Status != store.InviteAccepted {
		return store.Project{}, ErrForbidden
	}
	return project, nil
}

// RequireOwner is the stricter check for destructive project operations.
func (c *Checker) RequireOwner(ctx context.Context, projectID, userID string) (store.Project, error) {
	project, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Project{}, err
	}
	if project.OwnerID != userID {
		return store.Project{}, ErrForbidden
	}
	return project, nil
}
