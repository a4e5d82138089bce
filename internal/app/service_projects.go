package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"omnihub/api/internal/progress"
	"omnihub/api/internal/realtime"
	"omnihub/api/internal/search"
	"omnihub/api/internal/store"
	"omnihub/api/internal/util"
)

type ProjectView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Color       string          `json:"color,omitempty"`
	OwnerID     string          `json:"ownerId"`
	CreatedAt   time.Time       `json:"createdAt"`
	Progress    *progress.Stats `json:"progress,omitempty"`
}

type ContributorView struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Status      string `json:"status"`
}

func projectView(p store.Project) ProjectView {
	return ProjectView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Color:       p.Color,
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt,
	}
}

type CreateProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func (s *Service) CreateProject(ctx context.Context, userID string, input CreateProjectInput) (ProjectView, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ProjectView{}, validationError("project name is required", nil)
	}

	project := store.Project{
		ID:          util.NewID("prj"),
		Name:        name,
		Description: input.Description,
		Color:       input.Color,
		OwnerID:     userID,
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return ProjectView{}, err
	}

	if s.search != nil {
		s.search.IndexProject(search.ProjectRecord{ID: project.ID, Name: project.Name, Description: project.Description, ProjectID: project.ID})
	}
	return projectView(project), nil
}

// ListProjects returns the user's projects, each with a freshly computed
// progress summary.
func (s *Service) ListProjects(ctx context.Context, userID string) ([]ProjectView, error) {
	projects, err := s.store.ListProjectsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]ProjectView, 0, len(projects))
	for _, project := range projects {
		view := projectView(project)
		stats, err := s.computeProgress(ctx, project.ID)
		if err != nil {
			log.Printf(`{"level":"warn","msg":"compute progress","project":%q,"error":%q}`, project.ID, err.Error())
		} else {
			view.Progress = &stats
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) GetProject(ctx context.Context, projectID, userID string) (ProjectView, error) {
	project, err := s.checker.RequireMember(ctx, projectID, userID)
	if err != nil {
		return ProjectView{}, err
	}
	view := projectView(project)
	if stats, err := s.computeProgress(ctx, projectID); err == nil {
		view.Progress = &stats
	}
	return view, nil
}

func (s *Service) UpdateProject(ctx context.Context, projectID, userID string, input CreateProjectInput) (ProjectView, error) {
	project, err := s.checker.RequireOwner(ctx, projectID, userID)
	if err != nil {
		return ProjectView{}, err
	}

	if name := strings.TrimSpace(input.Name); name != "" {
		project.Name = name
	}
	if input.Description != "" {
		project.Description = input.Description
	}
	if input.Color != "" {
		project.Color = input.Color
	}
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return ProjectView{}, err
	}

	if s.search != nil {
		s.search.IndexProject(search.ProjectRecord{ID: project.ID, Name: project.Name, Description: project.Description, ProjectID: project.ID})
	}
	s.emit(realtime.ProjectRoom(project.ID), "project_updated", projectView(project))
	return projectView(project), nil
}

func (s *Service) DeleteProject(ctx context.Context, projectID, userID string) error {
	if _, err := s.checker.RequireOwner(ctx, projectID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteProject(projectID)
	}
	s.emit(realtime.ProjectRoom(projectID), "project_deleted", map[string]any{"projectId": projectID})
	return nil
}

// computeProgress loads the board and tasks and runs the calculator. Nothing
// is cached; every caller sees current state.
func (s *Service) computeProgress(ctx context.Context, projectID string) (progress.Stats, error) {
	columns, err := s.store.ListColumns(ctx, projectID)
	if err != nil {
		return progress.Stats{}, err
	}
	tasks, err := s.store.ListTasks(ctx, projectID)
	if err != nil {
		return progress.Stats{}, err
	}
	tickets, err := s.store.ListBoardTickets(ctx, projectID)
	if err != nil {
		return progress.Stats{}, err
	}

	pcolumns := make([]progress.Column, 0, len(columns))
	for _, c := range columns {
		pcolumns = append(pcolumns, progress.Column{ID: c.ID, Order: c.Order})
	}
	ptasks := make([]progress.Task, 0, len(tasks))
	for _, t := range tasks {
		ptasks = append(ptasks, progress.Task{ID: t.ID, Type: t.Type, Status: t.Status, IsTicket: t.IsTicket, ParentID: t.ParentTaskID})
	}
	ptickets := make([]progress.Ticket, 0, len(tickets))
	for _, t := range tickets {
		ptickets = append(ptickets, progress.Ticket{TaskID: t.TaskID, ColumnID: t.ColumnID})
	}

	return progress.Calculate(pcolumns, ptasks, ptickets), nil
}

// ProjectProgress is the standalone progress endpoint.
func (s *Service) ProjectProgress(ctx context.Context, projectID, userID string) (progress.Stats, error) {
	if _, err := s.checker.RequireMember(ctx, projectID, userID); err != nil {
		return progress.Stats{}, err
	}
	return s.computeProgress(ctx, projectID)
}

func (s *Service) ListContributors(ctx context.Context, projectID, userID string) ([]ContributorView, error) {
	if _, err := s.checker.RequireMember(ctx, projectID, userID); err != nil {
		return nil, err
	}
	contributors, err := s.store.ListContributors(ctx, projectID)
	if err != nil {
		return nil, err
	}
	views := make([]ContributorView, 0, len(contributors))
	for _, c := range contributors {
		views = append(views, ContributorView{UserID: c.UserID, DisplayName: c.DisplayName, Status: c.Status})
	}
	return views, nil
}

// InviteContributor invites a user by email. The invite lands as a pending
// contributor row, an in-app notification, and (best effort) an email.
func (s *Service) InviteContributor(ctx context.Context, projectID, ownerID, inviteeEmail string) (ContributorView, error) {
	project, err := s.checker.RequireOwner(ctx, projectID, ownerID)
	if err != nil {
		return ContributorView{}, err
	}

	invitee, err := s.store.GetUserByEmail(ctx, inviteeEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ContributorView{}, domainError(http.StatusNotFound, "NOT_FOUND", "no account with that email", nil)
		}
		return ContributorView{}, err
	}
	if invitee.ID == project.OwnerID {
		return ContributorView{}, domainError(http.StatusConflict, "ALREADY_MEMBER", "owner cannot be invited", nil)
	}
	if existing, err := s.store.GetContributor(ctx, projectID, invitee.ID); err == nil && existing.Status == store.InviteAccepted {
		return ContributorView{}, domainError(http.StatusConflict, "ALREADY_MEMBER", "user is already a contributor", nil)
	}

	if err := s.store.UpsertContributor(ctx, store.Contributor{
		ProjectID: projectID,
		UserID:    invitee.ID,
		Status:    store.InvitePending,
	}); err != nil {
		return ContributorView{}, err
	}

	owner, err := s.store.GetUserByID(ctx, ownerID)
	if err != nil {
		return ContributorView{}, err
	}

	s.notify(ctx, store.Notification{
		UserID:    invitee.ID,
		Kind:      "project_invite",
		ActorID:   ownerID,
		SubjectID: projectID,
		Body:      owner.DisplayName + " invited you to " + project.Name,
	})

	if s.SMTPConfigured() {
		go func() {
			if err := s.mail.SendProjectInviteEmail(invitee.Email, invitee.DisplayName, owner.DisplayName, project.Name, s.cfg.AppURL+"/invites"); err != nil {
				log.Printf(`{"level":"warn","msg":"send invite email","project":%q,"error":%q}`, projectID, err.Error())
			}
		}()
	}

	return ContributorView{UserID: invitee.ID, DisplayName: invitee.DisplayName, Status: store.InvitePending}, nil
}

// RespondToInvite lets the invited user accept or ignore a pending invite.
func (s *Service) RespondToInvite(ctx context.Context, projectID, userID string, accept bool) error {
	contributor, err := s.store.GetContributor(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if contributor.Status != store.InvitePending {
		return domainError(http.StatusConflict, "INVITE_NOT_PENDING", "invite was already answered", nil)
	}

	status := store.InviteIgnored
	if accept {
		status = store.InviteAccepted
	}
	if err := s.store.UpsertContributor(ctx, store.Contributor{
		ProjectID: projectID,
		UserID:    userID,
		Status:    status,
	}); err != nil {
		return err
	}

	if accept {
		project, err := s.store.GetProject(ctx, projectID)
		if err == nil {
			s.notify(ctx, store.Notification{
				UserID:    project.OwnerID,
				Kind:      "invite_accepted",
				ActorID:   userID,
				SubjectID: projectID,
				Body:      contributor.DisplayName + " joined " + project.Name,
			})
		}
		s.emit(realtime.ProjectRoom(projectID), "contributor_joined", map[string]any{
			"projectId": projectID,
			"userId":    userID,
		})
	}
	return nil
}

func (s *Service) ListPendingInvites(ctx context.Context, userID string) ([]ProjectView, error) {
	projects, err := s.store.ListPendingInvites(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]ProjectView, 0, len(projects))
	for _, project := range projects {
		views = append(views, projectView(project))
	}
	return views, nil
}

func (s *Service) RemoveContributor(ctx context.Context, projectID, ownerID, userID string) error {
	if _, err := s.checker.RequireOwner(ctx, projectID, ownerID); err != nil {
		return err
	}
	if err := s.store.RemoveContributor(ctx, projectID, userID); err != nil {
		return err
	}
	s.emit(realtime.ProjectRoom(projectID), "contributor_removed", map[string]any{
		"projectId": projectID,
		"userId":    userID,
	})
	return nil
}
