package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) CreateProject(ctx context.Context, project Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, color, owner_id)
		VALUES ($1, $2, $3, $4, $5)
	`, project.ID, project.Name, project.Description, project.Color, project.OwnerID)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, color, owner_id, created_at, updated_at
		FROM projects
		WHERE id=$1
	`, projectID).Scan(&item.ID, &item.Name, &item.Description, &item.Color, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

// ListProjectsForUser returns projects the user owns plus projects where the
// user is an accepted contributor, newest first.
func (s *PostgresStore) ListProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT p.id, p.name, p.description, p.color, p.owner_id, p.created_at, p.updated_at
		FROM projects p
		LEFT JOIN project_contributors c ON c.project_id = p.id
		WHERE p.owner_id=$1 OR (c.user_id=$1 AND c.status=$2)
		ORDER BY p.created_at DESC
	`, userID, InviteAccepted)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Color, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, project Project) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name=$2, description=$3, color=$4, updated_at=NOW()
		WHERE id=$1
	`, project.ID, project.Name, project.Description, project.Color)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, projectID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, projectID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpsertContributor(ctx context.Context, c Contributor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_contributors (project_id, user_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, user_id) DO UPDATE SET status=EXCLUDED.status
	`, c.ProjectID, c.UserID, c.Status)
	if err != nil {
		return fmt.Errorf("upsert contributor: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetContributor(ctx context.Context, projectID, userID string) (Contributor, error) {
	var item Contributor
	err := s.db.QueryRowContext(ctx, `
		SELECT c.project_id, c.user_id, u.display_name, c.status, c.invited_at
		FROM project_contributors c
		JOIN users u ON u.id = c.user_id
		WHERE c.project_id=$1 AND c.user_id=$2
	`, projectID, userID).Scan(&item.ProjectID, &item.UserID, &item.DisplayName, &item.Status, &item.InvitedAt)
	if err != nil {
		return Contributor{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListContributors(ctx context.Context, projectID string) ([]Contributor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.project_id, c.user_id, u.display_name, c.status, c.invited_at
		FROM project_contributors c
		JOIN users u ON u.id = c.user_id
		WHERE c.project_id=$1
		ORDER BY c.invited_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list contributors: %w", err)
	}
	defer rows.Close()

	items := make([]Contributor, 0)
	for rows.Next() {
		var item Contributor
		if err := rows.Scan(&item.ProjectID, &item.UserID, &item.DisplayName, &item.Status, &item.InvitedAt); err != nil {
			return nil, fmt.Errorf("scan contributor: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contributors: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) RemoveContributor(ctx context.Context, projectID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM project_contributors WHERE project_id=$1 AND user_id=$2
	`, projectID, userID)
	if err != nil {
		return fmt.Errorf("remove contributor: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove contributor: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPendingInvites returns projects the user has been invited to and has
// not yet answered.
func (s *PostgresStore) ListPendingInvites(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.color, p.owner_id, p.created_at, p.updated_at
		FROM project_contributors c
		JOIN projects p ON p.id = c.project_id
		WHERE c.user_id=$1 AND c.status=$2
		ORDER BY c.invited_at DESC
	`, userID, InvitePending)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Color, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invites: %w", err)
	}
	return items, nil
}
