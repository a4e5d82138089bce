package access

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"omnihub/api/internal/store"
)

type fakeReader struct {
	project     store.Project
	projectErr  error
	contributor store.Contributor
	contribErr  error
}

func (f *fakeReader) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	return f.project, f.projectErr
}

func (f *fakeReader) GetContributor(ctx context.Context, projectID, userID string) (store.Contributor, error) {
	return f.contributor, f.contribErr
}

func TestRequireMemberOwner(t *testing.T) {
	checker := NewChecker(&fakeReader{
		project:    store.Project{ID: "prj_1", OwnerID: "usr_owner"},
		contribErr: sql.ErrNoRows,
	})
	project, err := checker.RequireMember(context.Background(), "prj_1", "usr_owner")
	if err != nil {
		t.Fatalf("RequireMember: %v", err)
	}
	if project.ID != "prj_1" {
		t.Fatalf("project = %q, want prj_1", project.ID)
	}
}

func TestRequireMemberAcceptedContributor(t *testing.T) {
	checker := NewChecker(&fakeReader{
		project:     store.Project{ID: "prj_1", OwnerID: "usr_owner"},
		contributor: store.Contributor{UserID: "usr_member", Status: store.InviteAccepted},
	})
	if _, err := checker.RequireMember(context.Background(), "prj_1", "usr_member"); err != nil {
		t.Fatalf("RequireMember: %v", err)
	}
}

func TestRequireMemberPendingInviteForbidden(t *testing.T) {
	checker := NewChecker(&fakeReader{
		project:     store.Project{ID: "prj_1", OwnerID: "usr_owner"},
		contributor: store.Contributor{UserID: "usr_invited", Status: store.InvitePending},
	})
	if _, err := checker.RequireMember(context.Background(), "prj_1", "usr_invited"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestRequireMemberStranger(t *testing.T) {
	checker := NewChecker(&fakeReader{
		project:    store.Project{ID: "prj_1", OwnerID: "usr_owner"},
		contribErr: sql.ErrNoRows,
	})
	if _, err := checker.RequireMember(context.Background(), "prj_1", "usr_stranger"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestRequireMemberMissingProject(t *testing.T) {
	checker := NewChecker(&fakeReader{projectErr: sql.ErrNoRows})
	if _, err := checker.RequireMember(context.Background(), "prj_gone", "usr_owner"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestRequireOwnerRejectsContributor(t *testing.T) {
	checker := NewChecker(&fakeReader{
		project:     store.Project{ID: "prj_1", OwnerID: "usr_owner"},
		contributor: store.Contributor{UserID: "usr_member", Status: store.InviteAccepted},
	})
	if _, err := checker.RequireOwner(context.Background(), "prj_1", "usr_member"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}
