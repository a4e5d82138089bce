package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) AppendAssistMessage(ctx context.Context, m AssistMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assist_messages (user_id, project_id, role, content)
		VALUES ($1, $2, $3, $4)
	`, m.UserID, nullIfBlank(m.ProjectID), m.Role, m.Content)
	if err != nil {
		return fmt.Errorf("insert assist message: %w", err)
	}
	return nil
}

// ListAssistMessages returns the most recent messages for the user's
// conversation in chronological order, bounded by limit.
func (s *PostgresStore) ListAssistMessages(ctx context.Context, userID, projectID string, limit int) ([]AssistMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(project_id, ''), role, content, created_at
		FROM (
			SELECT id, user_id, project_id, role, content, created_at
			FROM assist_messages
			WHERE user_id=$1 AND project_id IS NOT DISTINCT FROM $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at
	`, userID, nullIfBlank(projectID), limit)
	if err != nil {
		return nil, fmt.Errorf("list assist messages: %w", err)
	}
	defer rows.Close()

	items := make([]AssistMessage, 0)
	for rows.Next() {
		var item AssistMessage
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProjectID, &item.Role, &item.Content, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assist message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assist messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ClearAssistMessages(ctx context.Context, userID, projectID string) error {
	var err error
	if projectID == "" {
		_, err = s.db.ExecContext(ctx, `
			DELETE FROM assist_messages WHERE user_id=$1 AND project_id IS NULL
		`, userID)
	} else {
		_, err = s.db.ExecContext(ctx, `
			DELETE FROM assist_messages WHERE user_id=$1 AND project_id=$2
		`, userID, projectID)
	}
	if err != nil {
		return fmt.Errorf("clear assist messages: %w", err)
	}
	return nil
}
