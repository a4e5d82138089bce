package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) CreateTask(ctx context.Context, task Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, priority, status, deadline, assigned_to, parent_task_id, task_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, task.ID, task.ProjectID, task.Title, task.Description, task.Priority, task.Status,
		task.Deadline, nullIfBlank(task.AssignedTo), nullIfBlank(task.ParentTaskID), task.Type)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	var item Task
	var assigned, parent, ticketID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, priority, status, deadline,
		       assigned_to, parent_task_id, task_type, is_ticket, ticket_id, created_at, updated_at
		FROM tasks
		WHERE id=$1
	`, taskID).Scan(&item.ID, &item.ProjectID, &item.Title, &item.Description, &item.Priority, &item.Status,
		&item.Deadline, &assigned, &parent, &item.Type, &item.IsTicket, &ticketID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	item.AssignedTo = assigned.String
	item.ParentTaskID = parent.String
	item.TicketID = ticketID.String
	return item, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, description, priority, status, deadline,
		       assigned_to, parent_task_id, task_type, is_ticket, ticket_id, created_at, updated_at
		FROM tasks
		WHERE project_id=$1
		ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		var item Task
		var assigned, parent, ticketID sql.NullString
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Title, &item.Description, &item.Priority, &item.Status,
			&item.Deadline, &assigned, &parent, &item.Type, &item.IsTicket, &ticketID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		item.AssignedTo = assigned.String
		item.ParentTaskID = parent.String
		item.TicketID = ticketID.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

// CountChildren reports how many tasks name the given task as parent. The
// progress calculator uses this to decide whether a heading counts itself.
func (s *PostgresStore) CountChildren(ctx context.Context, taskID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE parent_task_id=$1`, taskID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, task Task) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title=$2, description=$3, priority=$4, status=$5, deadline=$6,
		    assigned_to=$7, parent_task_id=$8, task_type=$9, updated_at=NOW()
		WHERE id=$1
	`, task.ID, task.Title, task.Description, task.Priority, task.Status, task.Deadline,
		nullIfBlank(task.AssignedTo), nullIfBlank(task.ParentTaskID), task.Type)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, taskID, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status=$2, updated_at=NOW() WHERE id=$1
	`, taskID, status)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteTask removes the task, its subtasks, and every ticket promoted from
// any of them. Tickets are deleted explicitly so callers learn which board
// cards disappeared; the task_id cascade in the schema is only a backstop.
func (s *PostgresStore) DeleteTask(ctx context.Context, taskID string) ([]string, error) {
	var ticketIDs []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			DELETE FROM tickets
			WHERE task_id=$1 OR task_id IN (SELECT id FROM tasks WHERE parent_task_id=$1)
			RETURNING id
		`, taskID)
		if err != nil {
			return fmt.Errorf("delete tickets: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan ticket id: %w", err)
			}
			ticketIDs = append(ticketIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate ticket ids: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE parent_task_id=$1`, taskID); err != nil {
			return fmt.Errorf("delete subtasks: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, taskID)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticketIDs, nil
}
