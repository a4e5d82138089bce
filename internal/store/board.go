package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"omnihub/api/internal/board"
	"omnihub/api/internal/util"
)

// ErrOrderConflict reports that a board move lost a race with a concurrent
// reorder: the deferred unique constraint rejected the commit. Callers
// re-read current positions and replan.
var ErrOrderConflict = errors.New("concurrent board reorder")

// Default columns seeded on first board access.
var defaultColumns = []struct {
	Name      string
	Order     int
	IsDefault bool
}{
	{Name: "Start", Order: 0, IsDefault: true},
	{Name: "In Progress", Order: 1, IsDefault: false},
	{Name: "Closed", Order: 2, IsDefault: true},
}

func (s *PostgresStore) ListColumns(ctx context.Context, projectID string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, ord, is_default, created_at
		FROM board_columns
		WHERE project_id=$1
		ORDER BY ord
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	items := make([]Column, 0)
	for rows.Next() {
		var item Column
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Name, &item.Order, &item.IsDefault, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return items, nil
}

// SeedDefaultColumns creates the three default columns if the project has
// none. The insert is guarded by a NOT EXISTS subquery and the deferred
// unique (project_id, ord) constraint; when two first loads race, the loser's
// commit fails the constraint and we simply re-read the winner's columns.
func (s *PostgresStore) SeedDefaultColumns(ctx context.Context, projectID string) ([]Column, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, seed := range defaultColumns {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO board_columns (id, project_id, name, ord, is_default)
				SELECT $1, $2, $3, $4, $5
				WHERE NOT EXISTS (SELECT 1 FROM board_columns WHERE project_id=$2 AND ord=$4)
			`, util.NewID("col"), projectID, seed.Name, seed.Order, seed.IsDefault)
			if err != nil {
				return fmt.Errorf("seed column %q: %w", seed.Name, err)
			}
		}
		return nil
	})
	if err != nil && !isUniqueViolation(err) {
		return nil, err
	}
	return s.ListColumns(ctx, projectID)
}

func (s *PostgresStore) GetColumn(ctx context.Context, columnID string) (Column, error) {
	var item Column
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, ord, is_default, created_at
		FROM board_columns
		WHERE id=$1
	`, columnID).Scan(&item.ID, &item.ProjectID, &item.Name, &item.Order, &item.IsDefault, &item.CreatedAt)
	if err != nil {
		return Column{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertColumn(ctx context.Context, column Column) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO board_columns (id, project_id, name, ord, is_default)
		VALUES ($1, $2, $3, $4, $5)
	`, column.ID, column.ProjectID, column.Name, column.Order, column.IsDefault)
	if err != nil {
		return fmt.Errorf("insert column: %w", err)
	}
	return nil
}

func (s *PostgresStore) MaxColumnOrder(ctx context.Context, projectID string) (int, bool, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(ord) FROM board_columns WHERE project_id=$1`, projectID).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("max column order: %w", err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return int(max.Int64), true, nil
}

func (s *PostgresStore) CountColumns(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM board_columns WHERE project_id=$1`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count columns: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountTicketsInColumn(ctx context.Context, columnID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE column_id=$1`, columnID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) GetTicket(ctx context.Context, ticketID string) (Ticket, error) {
	var item Ticket
	var assignee sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, project_id, column_id, assignee_id, deadline, priority, label, ord, created_at
		FROM tickets
		WHERE id=$1
	`, ticketID).Scan(&item.ID, &item.TaskID, &item.ProjectID, &item.ColumnID, &assignee, &item.Deadline, &item.Priority, &item.Label, &item.Order, &item.CreatedAt)
	if err != nil {
		return Ticket{}, err
	}
	item.AssigneeID = assignee.String
	return item, nil
}

func (s *PostgresStore) GetBoardTicket(ctx context.Context, ticketID string) (BoardTicket, error) {
	items, err := s.queryBoardTickets(ctx, `t.id=$1`, ticketID)
	if err != nil {
		return BoardTicket{}, err
	}
	if len(items) == 0 {
		return BoardTicket{}, sql.ErrNoRows
	}
	return items[0], nil
}

func (s *PostgresStore) ListBoardTickets(ctx context.Context, projectID string) ([]BoardTicket, error) {
	return s.queryBoardTickets(ctx, `t.project_id=$1`, projectID)
}

func (s *PostgresStore) queryBoardTickets(ctx context.Context, where string, arg any) ([]BoardTicket, error) {
	query := `
		SELECT t.id, t.task_id, t.project_id, t.column_id, t.assignee_id, t.deadline,
		       t.priority, t.label, t.ord, t.created_at,
		       k.title, k.description, k.status,
		       COALESCE(u.display_name, ''), COALESCE(u.avatar_url, '')
		FROM tickets t
		JOIN tasks k ON k.id = t.task_id
		LEFT JOIN users u ON u.id = t.assignee_id
		WHERE ` + where + `
		ORDER BY t.ord`
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list board tickets: %w", err)
	}
	defer rows.Close()

	items := make([]BoardTicket, 0)
	for rows.Next() {
		var item BoardTicket
		var assignee sql.NullString
		if err := rows.Scan(
			&item.ID, &item.TaskID, &item.ProjectID, &item.ColumnID, &assignee, &item.Deadline,
			&item.Priority, &item.Label, &item.Order, &item.CreatedAt,
			&item.TaskTitle, &item.TaskDescription, &item.TaskStatus,
			&item.AssigneeName, &item.AssigneeAvatar,
		); err != nil {
			return nil, fmt.Errorf("scan board ticket: %w", err)
		}
		item.AssigneeID = assignee.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board tickets: %w", err)
	}
	return items, nil
}

var ErrTaskAlreadyTicket = errors.New("task is already a ticket")

// CreateTicketFromTask inserts the ticket and flips the task's ticket linkage
// in one transaction. Label collisions (global 6-digit labels) retry with a
// fresh label a few times before giving up.
func (s *PostgresStore) CreateTicketFromTask(ctx context.Context, ticket Ticket) (Ticket, error) {
	for attempt := 0; attempt < 3; attempt++ {
		ticket.Label = util.TicketLabel()
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO tickets (id, task_id, project_id, column_id, assignee_id, deadline, priority, label, ord)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, ticket.ID, ticket.TaskID, ticket.ProjectID, ticket.ColumnID, nullIfBlank(ticket.AssigneeID), ticket.Deadline, ticket.Priority, ticket.Label, ticket.Order)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE tasks SET is_ticket=TRUE, ticket_id=$2, updated_at=NOW() WHERE id=$1
			`, ticket.TaskID, ticket.ID)
			if err != nil {
				return fmt.Errorf("link task to ticket: %w", err)
			}
			return nil
		})
		if err == nil {
			return ticket, nil
		}
		if isUniqueViolation(err) {
			// Could be the label or the task_id unique index; retrying with a
			// fresh label resolves the former, and the latter fails again.
			if attempt < 2 {
				continue
			}
			return Ticket{}, ErrTaskAlreadyTicket
		}
		return Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	return Ticket{}, ErrTaskAlreadyTicket
}

// shiftOrders applies one planned sibling shift. table and containerColumn
// are fixed identifiers chosen by the callers below, never user input.
func shiftOrders(ctx context.Context, tx *sql.Tx, table, containerColumn, excludeID string, shift board.Shift) error {
	var err error
	if shift.Upper < 0 {
		query := fmt.Sprintf(`UPDATE %s SET ord = ord + $1 WHERE %s = $2 AND ord >= $3 AND id <> $4`, table, containerColumn)
		_, err = tx.ExecContext(ctx, query, shift.Delta, shift.ContainerID, shift.Lower, excludeID)
	} else {
		query := fmt.Sprintf(`UPDATE %s SET ord = ord + $1 WHERE %s = $2 AND ord >= $3 AND ord <= $4 AND id <> $5`, table, containerColumn)
		_, err = tx.ExecContext(ctx, query, shift.Delta, shift.ContainerID, shift.Lower, shift.Upper, excludeID)
	}
	if err != nil {
		return fmt.Errorf("shift %s orders: %w", table, err)
	}
	return nil
}

// ApplyTicketMove commits a move plan: sibling shifts plus the ticket's own
// placement, all-or-nothing. The deferred unique (column_id, ord) constraint
// verifies at commit that no two tickets landed on the same slot; a failed
// verification surfaces as ErrOrderConflict.
func (s *PostgresStore) ApplyTicketMove(ctx context.Context, ticketID string, plan board.Plan) error {
	if plan.NoOp {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, shift := range plan.Shifts {
			if err := shiftOrders(ctx, tx, "tickets", "column_id", ticketID, shift); err != nil {
				return err
			}
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE tickets SET column_id=$2, ord=$3 WHERE id=$1
		`, ticketID, plan.ContainerID, plan.Order)
		if err != nil {
			return fmt.Errorf("place ticket: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("place ticket: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if isUniqueViolation(err) {
		return ErrOrderConflict
	}
	return err
}

// ApplyColumnMove is the single-container variant over a project's columns.
func (s *PostgresStore) ApplyColumnMove(ctx context.Context, columnID string, plan board.Plan) error {
	if plan.NoOp {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, shift := range plan.Shifts {
			if err := shiftOrders(ctx, tx, "board_columns", "project_id", columnID, shift); err != nil {
				return err
			}
		}
		result, err := tx.ExecContext(ctx, `UPDATE board_columns SET ord=$2 WHERE id=$1`, columnID, plan.Order)
		if err != nil {
			return fmt.Errorf("place column: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("place column: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if isUniqueViolation(err) {
		return ErrOrderConflict
	}
	return err
}

// DeleteTicket removes the ticket and reverts the task's linkage. Sibling
// orders are left untouched; readers sort by ord so gaps render fine.
func (s *PostgresStore) DeleteTicket(ctx context.Context, ticketID string) (Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return Ticket{}, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE id=$1`, ticketID); err != nil {
			return fmt.Errorf("delete ticket: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE tasks SET is_ticket=FALSE, ticket_id=NULL, updated_at=NOW() WHERE id=$1
		`, ticket.TaskID); err != nil {
			return fmt.Errorf("unlink task: %w", err)
		}
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	return ticket, nil
}

// DeleteColumn removes the column, cascades its tickets, and reverts their
// tasks' linkage. Returns the removed column and the ticket cascade count.
func (s *PostgresStore) DeleteColumn(ctx context.Context, columnID string) (Column, int, error) {
	column, err := s.GetColumn(ctx, columnID)
	if err != nil {
		return Column{}, 0, err
	}
	var removed int
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE tasks SET is_ticket=FALSE, ticket_id=NULL, updated_at=NOW()
			WHERE id IN (SELECT task_id FROM tickets WHERE column_id=$1)
		`, columnID); err != nil {
			return fmt.Errorf("unlink column tasks: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE column_id=$1`, columnID)
		if err != nil {
			return fmt.Errorf("delete column tickets: %w", err)
		}
		count, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete column tickets: %w", err)
		}
		removed = int(count)
		if _, err := tx.ExecContext(ctx, `DELETE FROM board_columns WHERE id=$1`, columnID); err != nil {
			return fmt.Errorf("delete column: %w", err)
		}
		return nil
	})
	if err != nil {
		return Column{}, 0, err
	}
	return column, removed, nil
}
