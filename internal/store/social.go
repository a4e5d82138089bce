package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) CreateNotification(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, kind, actor_id, subject_id, body)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.ID, n.UserID, n.Kind, nullIfBlank(n.ActorID), nullIfBlank(n.SubjectID), n.Body)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, actor_id, subject_id, body, read_at, created_at
		FROM notifications
		WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		var actor, subject sql.NullString
		if err := rows.Scan(&item.ID, &item.UserID, &item.Kind, &actor, &subject, &item.Body, &item.ReadAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		item.ActorID = actor.String
		item.SubjectID = subject.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MarkNotificationsRead(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		_, err := s.db.ExecContext(ctx, `
			UPDATE notifications SET read_at=NOW() WHERE user_id=$1 AND read_at IS NULL
		`, userID)
		if err != nil {
			return fmt.Errorf("mark notifications read: %w", err)
		}
		return nil
	}
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE notifications SET read_at=NOW() WHERE user_id=$1 AND id=$2 AND read_at IS NULL
		`, userID, id); err != nil {
			return fmt.Errorf("mark notification read: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Follow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, followee_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("insert follow: %w", err)
	}
	return nil
}

func (s *PostgresStore) Unfollow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id=$1 AND followee_id=$2
	`, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFollowing(ctx context.Context, userID string) ([]User, error) {
	return s.queryFollowUsers(ctx, `
		SELECT u.id, u.display_name, u.email, u.avatar_url
		FROM follows f
		JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id=$1
		ORDER BY f.created_at DESC
	`, userID)
}

func (s *PostgresStore) ListFollowers(ctx context.Context, userID string) ([]User, error) {
	return s.queryFollowUsers(ctx, `
		SELECT u.id, u.display_name, u.email, u.avatar_url
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id=$1
		ORDER BY f.created_at DESC
	`, userID)
}

func (s *PostgresStore) queryFollowUsers(ctx context.Context, query, userID string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list follow users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var item User
		if err := rows.Scan(&item.ID, &item.DisplayName, &item.Email, &item.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan follow user: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follow users: %w", err)
	}
	return items, nil
}

// DashboardStatsForUser aggregates the landing page counters across every
// project the user owns or contributes to.
func (s *PostgresStore) DashboardStatsForUser(ctx context.Context, userID string) (DashboardStats, error) {
	const memberProjects = `
		SELECT p.id FROM projects p
		LEFT JOIN project_contributors c ON c.project_id = p.id
		WHERE p.owner_id=$1 OR (c.user_id=$1 AND c.status='Accepted')`

	var stats DashboardStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(DISTINCT id) FROM (`+memberProjects+`) m),
			(SELECT COUNT(*) FROM tasks WHERE project_id IN (`+memberProjects+`) AND status <> 'Done'),
			(SELECT COUNT(*) FROM tasks WHERE project_id IN (`+memberProjects+`) AND status = 'Done'),
			(SELECT COUNT(*) FROM documents WHERE project_id IN (`+memberProjects+`))
	`, userID).Scan(&stats.ActiveProjects, &stats.PendingTasks, &stats.CompletedTasks, &stats.DocumentCount)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}
