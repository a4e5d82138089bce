package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"omnihub/api/internal/board"
	"omnihub/api/internal/realtime"
	"omnihub/api/internal/store"
	"omnihub/api/internal/util"
)

// moveAttempts bounds how many times a move is replanned after losing a
// commit race to a concurrent reorder.
const moveAttempts = 3

// BoardView is the payload behind GET /api/board/:projectId.
type BoardView struct {
	ProjectID string            `json:"projectId"`
	Columns   []ColumnView      `json:"columns"`
	Tickets   []BoardTicketView `json:"tickets"`
}

type ColumnView struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
	IsDefault bool   `json:"isDefault"`
}

type BoardTicketView struct {
	ID          string        `json:"id"`
	TaskID      string        `json:"taskId"`
	ProjectID   string        `json:"projectId"`
	ColumnID    string        `json:"columnId"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      string        `json:"status"`
	Priority    string        `json:"priority"`
	Label       string        `json:"label"`
	Order       int           `json:"order"`
	Deadline    string        `json:"deadline,omitempty"`
	Assignee    *AssigneeView `json:"assignee,omitempty"`
}

type AssigneeView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

func columnView(c store.Column) ColumnView {
	return ColumnView{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		Name:      c.Name,
		Order:     c.Order,
		IsDefault: c.IsDefault,
	}
}

func boardTicketView(t store.BoardTicket) BoardTicketView {
	view := BoardTicketView{
		ID:          t.ID,
		TaskID:      t.TaskID,
		ProjectID:   t.ProjectID,
		ColumnID:    t.ColumnID,
		Title:       t.TaskTitle,
		Description: t.TaskDescription,
		Status:      t.TaskStatus,
		Priority:    t.Priority,
		Label:       t.Label,
		Order:       t.Order,
	}
	if t.Deadline != nil {
		view.Deadline = t.Deadline.UTC().Format(time.RFC3339)
	}
	if t.AssigneeID != "" {
		view.Assignee = &AssigneeView{ID: t.AssigneeID, Name: t.AssigneeName, Avatar: t.AssigneeAvatar}
	}
	return view
}

// GetBoard returns the project's columns and tickets, seeding the default
// columns on first access.
func (s *Service) GetBoard(ctx context.Context, projectID, userID string) (BoardView, error) {
	if _, err := s.checker.RequireMember(ctx, projectID, userID); err != nil {
		return BoardView{}, err
	}

	columns, err := s.store.ListColumns(ctx, projectID)
	if err != nil {
		return BoardView{}, err
	}
	if len(columns) == 0 {
		columns, err = s.store.SeedDefaultColumns(ctx, projectID)
		if err != nil {
			return BoardView{}, err
		}
	}

	tickets, err := s.store.ListBoardTickets(ctx, projectID)
	if err != nil {
		return BoardView{}, err
	}

	view := BoardView{ProjectID: projectID, Columns: make([]ColumnView, 0, len(columns)), Tickets: make([]BoardTicketView, 0, len(tickets))}
	for _, column := range columns {
		view.Columns = append(view.Columns, columnView(column))
	}
	for _, ticket := range tickets {
		view.Tickets = append(view.Tickets, boardTicketView(ticket))
	}
	return view, nil
}

// CreateColumn appends a column to the project's board.
func (s *Service) CreateColumn(ctx context.Context, projectID, userID, name string) (ColumnView, error) {
	if _, err := s.checker.RequireMember(ctx, projectID, userID); err != nil {
		return ColumnView{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ColumnView{}, validationError("column name is required", nil)
	}

	order := 0
	if max, found, err := s.store.MaxColumnOrder(ctx, projectID); err != nil {
		return ColumnView{}, err
	} else if found {
		order = max + 1
	}

	column := store.Column{
		ID:        util.NewID("col"),
		ProjectID: projectID,
		Name:      name,
		Order:     order,
	}
	if err := s.store.InsertColumn(ctx, column); err != nil {
		return ColumnView{}, err
	}

	view := columnView(column)
	s.emit(realtime.ProjectRoom(projectID), "column_created", view)
	return view, nil
}

// CreateTicket promotes a task onto the board. The ticket inherits the
// task's assignee, deadline, and priority; omitting columnID lands it in the
// lowest-order column, seeding defaults if the board is empty.
func (s *Service) CreateTicket(ctx context.Context, projectID, taskID, columnID, userID string) (BoardTicketView, error) {
	if _, err := s.checker.RequireMember(ctx, projectID, userID); err != nil {
		return BoardTicketView{}, err
	}

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return BoardTicketView{}, err
	}
	if task.ProjectID != projectID {
		return BoardTicketView{}, domainError(http.StatusNotFound, "NOT_FOUND", "task does not belong to this project", nil)
	}
	if task.IsTicket {
		return BoardTicketView{}, domainError(http.StatusConflict, "ALREADY_TICKET", "task is already on the board", nil)
	}

	if columnID == "" {
		columns, err := s.store.ListColumns(ctx, projectID)
		if err != nil {
			return BoardTicketView{}, err
		}
		if len(columns) == 0 {
			columns, err = s.store.SeedDefaultColumns(ctx, projectID)
			if err != nil {
				return BoardTicketView{}, err
			}
		}
		columnID = columns[0].ID
	} else {
		column, err := s.store.GetColumn(ctx, columnID)
		if err != nil {
			return BoardTicketView{}, err
		}
		if column.ProjectID != projectID {
			return BoardTicketView{}, domainError(http.StatusNotFound, "NOT_FOUND", "column does not belong to this project", nil)
		}
	}

	count, err := s.store.CountTicketsInColumn(ctx, columnID)
	if err != nil {
		return BoardTicketView{}, err
	}

	ticket := store.Ticket{
		ID:         util.NewID("tck"),
		TaskID:     task.ID,
		ProjectID:  projectID,
		ColumnID:   columnID,
		AssigneeID: task.AssignedTo,
		Deadline:   task.Deadline,
		Priority:   task.Priority,
		Order:      board.AppendOrder(count),
	}
	ticket, err = s.store.CreateTicketFromTask(ctx, ticket)
	if err != nil {
		if errors.Is(err, store.ErrTaskAlreadyTicket) {
			return BoardTicketView{}, domainError(http.StatusConflict, "ALREADY_TICKET", "task is already on the board", nil)
		}
		return BoardTicketView{}, err
	}

	populated, err := s.store.GetBoardTicket(ctx, ticket.ID)
	if err != nil {
		return BoardTicketView{}, err
	}
	view := boardTicketView(populated)

	room := realtime.ProjectRoom(projectID)
	s.emit(room, "ticket_created", view)
	s.emit(room, "task_updated", map[string]any{"taskId": task.ID, "isTicket": true, "ticketId": ticket.ID})
	return view, nil
}

// MoveTicket repositions a ticket, shifting displaced siblings so every
// column keeps a dense 0..n-1 order sequence.
func (s *Service) MoveTicket(ctx context.Context, ticketID, newColumnID string, newOrder int, userID string) (BoardTicketView, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return BoardTicketView{}, err
	}
	if _, err := s.checker.RequireMember(ctx, ticket.ProjectID, userID); err != nil {
		return BoardTicketView{}, err
	}

	if newColumnID == "" {
		newColumnID = ticket.ColumnID
	}
	if newColumnID != ticket.ColumnID {
		column, err := s.store.GetColumn(ctx, newColumnID)
		if err != nil {
			return BoardTicketView{}, err
		}
		if column.ProjectID != ticket.ProjectID {
			return BoardTicketView{}, domainError(http.StatusNotFound, "NOT_FOUND", "column does not belong to this project", nil)
		}
	}

	// Positions and counts are read outside the move transaction, so a
	// concurrent reorder can invalidate the plan. The deferred constraint
	// catches that at commit; replan from fresh state and try again.
	var plan board.Plan
	for attempt := 0; ; attempt++ {
		fromCount, err := s.store.CountTicketsInColumn(ctx, ticket.ColumnID)
		if err != nil {
			return BoardTicketView{}, err
		}
		toCount := fromCount
		if newColumnID != ticket.ColumnID {
			toCount, err = s.store.CountTicketsInColumn(ctx, newColumnID)
			if err != nil {
				return BoardTicketView{}, err
			}
		}

		plan, err = board.PlanMove(board.Move{
			FromContainer: ticket.ColumnID,
			FromOrder:     ticket.Order,
			ToContainer:   newColumnID,
			ToOrder:       newOrder,
			FromCount:     fromCount,
			ToCount:       toCount,
		})
		if err != nil {
			if errors.Is(err, board.ErrIndexOutOfRange) {
				return BoardTicketView{}, validationError(err.Error(), nil)
			}
			return BoardTicketView{}, err
		}

		err = s.store.ApplyTicketMove(ctx, ticketID, plan)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrOrderConflict) || attempt+1 >= moveAttempts {
			if errors.Is(err, store.ErrOrderConflict) {
				return BoardTicketView{}, domainError(http.StatusConflict, "ORDER_CONFLICT", "board changed concurrently, retry the move", nil)
			}
			return BoardTicketView{}, err
		}
		ticket, err = s.store.GetTicket(ctx, ticketID)
		if err != nil {
			return BoardTicketView{}, err
		}
	}

	populated, err := s.store.GetBoardTicket(ctx, ticketID)
	if err != nil {
		return BoardTicketView{}, err
	}
	view := boardTicketView(populated)

	if !plan.NoOp {
		room := realtime.ProjectRoom(ticket.ProjectID)
		s.emit(room, "ticket_updated", view)
		// Sibling orders changed server-side; a coarse refetch beats
		// enumerating every displaced ticket.
		s.emit(room, "board_refetch_needed", map[string]any{"projectId": ticket.ProjectID})
	}
	return view, nil
}

// MoveColumn repositions a column within its project's board.
func (s *Service) MoveColumn(ctx context.Context, columnID string, newOrder int, userID string) ([]ColumnView, error) {
	column, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return nil, err
	}
	if _, err := s.checker.RequireMember(ctx, column.ProjectID, userID); err != nil {
		return nil, err
	}

	var plan board.Plan
	for attempt := 0; ; attempt++ {
		count, err := s.store.CountColumns(ctx, column.ProjectID)
		if err != nil {
			return nil, err
		}

		plan, err = board.PlanMove(board.Move{
			FromContainer: column.ProjectID,
			FromOrder:     column.Order,
			ToContainer:   column.ProjectID,
			ToOrder:       newOrder,
			FromCount:     count,
		})
		if err != nil {
			if errors.Is(err, board.ErrIndexOutOfRange) {
				return nil, validationError(err.Error(), nil)
			}
			return nil, err
		}

		err = s.store.ApplyColumnMove(ctx, columnID, plan)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrOrderConflict) || attempt+1 >= moveAttempts {
			if errors.Is(err, store.ErrOrderConflict) {
				return nil, domainError(http.StatusConflict, "ORDER_CONFLICT", "board changed concurrently, retry the move", nil)
			}
			return nil, err
		}
		column, err = s.store.GetColumn(ctx, columnID)
		if err != nil {
			return nil, err
		}
	}

	columns, err := s.store.ListColumns(ctx, column.ProjectID)
	if err != nil {
		return nil, err
	}
	views := make([]ColumnView, 0, len(columns))
	for _, c := range columns {
		views = append(views, columnView(c))
	}

	if !plan.NoOp {
		s.emit(realtime.ProjectRoom(column.ProjectID), "columns_reordered", map[string]any{
			"projectId": column.ProjectID,
			"columns":   views,
		})
	}
	return views, nil
}

// DeleteTicket takes a ticket off the board and reverts its task.
func (s *Service) DeleteTicket(ctx context.Context, ticketID, userID string) error {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if _, err := s.checker.RequireMember(ctx, ticket.ProjectID, userID); err != nil {
		return err
	}

	removed, err := s.store.DeleteTicket(ctx, ticketID)
	if err != nil {
		return err
	}

	room := realtime.ProjectRoom(removed.ProjectID)
	s.emit(room, "ticket_deleted", map[string]any{"ticketId": removed.ID, "projectId": removed.ProjectID})
	s.emit(room, "task_updated", map[string]any{"taskId": removed.TaskID, "isTicket": false})
	return nil
}

// DeleteColumn removes a column and everything on it. Returns how many
// tickets went with it.
func (s *Service) DeleteColumn(ctx context.Context, columnID, userID string) (int, error) {
	column, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return 0, err
	}
	if _, err := s.checker.RequireMember(ctx, column.ProjectID, userID); err != nil {
		return 0, err
	}

	removed, ticketCount, err := s.store.DeleteColumn(ctx, columnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		log.Printf(`{"level":"error","msg":"delete column","column":%q,"error":%q}`, columnID, err.Error())
		return 0, err
	}

	s.emit(realtime.ProjectRoom(removed.ProjectID), "column_deleted", map[string]any{
		"columnId":       removed.ID,
		"projectId":      removed.ProjectID,
		"ticketsRemoved": ticketCount,
	})
	return ticketCount, nil
}
