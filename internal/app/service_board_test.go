package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"omnihub/api/internal/access"
	"omnihub/api/internal/board"
	"omnihub/api/internal/config"
	"omnihub/api/internal/session"
	"omnihub/api/internal/store"
)

type fakeStore struct {
	getProjectFn           func(context.Context, string) (store.Project, error)
	getContributorFn       func(context.Context, string, string) (store.Contributor, error)
	listColumnsFn          func(context.Context, string) ([]store.Column, error)
	seedDefaultColumnsFn   func(context.Context, string) ([]store.Column, error)
	getColumnFn            func(context.Context, string) (store.Column, error)
	maxColumnOrderFn       func(context.Context, string) (int, bool, error)
	countColumnsFn         func(context.Context, string) (int, error)
	countTicketsInColumnFn func(context.Context, string) (int, error)
	getTaskFn              func(context.Context, string) (store.Task, error)
	getTicketFn            func(context.Context, string) (store.Ticket, error)
	getBoardTicketFn       func(context.Context, string) (store.BoardTicket, error)
	listBoardTicketsFn     func(context.Context, string) ([]store.BoardTicket, error)
	createTicketFromTaskFn func(context.Context, store.Ticket) (store.Ticket, error)
	applyTicketMoveFn      func(context.Context, string, board.Plan) error
	applyColumnMoveFn      func(context.Context, string, board.Plan) error
	deleteTicketFn         func(context.Context, string) (store.Ticket, error)
	deleteColumnFn         func(context.Context, string) (store.Column, int, error)
	deleteTaskFn           func(context.Context, string) ([]string, error)
	countChildrenFn        func(context.Context, string) (int, error)
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) GetUserByID(context.Context, string) (store.User, error) {
	return store.User{}, nil
}
func (f *fakeStore) GetUserByEmail(context.Context, string) (store.User, error) {
	return store.User{}, nil
}
func (f *fakeStore) RevokeAccessToken(context.Context, string, time.Time) error { return nil }
func (f *fakeStore) IsAccessTokenRevoked(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeStore) CreateProject(context.Context, store.Project) error { return nil }
func (f *fakeStore) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, projectID)
	}
	return store.Project{}, sql.ErrNoRows
}
func (f *fakeStore) ListProjectsForUser(context.Context, string) ([]store.Project, error) {
	return nil, nil
}
func (f *fakeStore) UpdateProject(context.Context, store.Project) error         { return nil }
func (f *fakeStore) DeleteProject(context.Context, string) error                { return nil }
func (f *fakeStore) UpsertContributor(context.Context, store.Contributor) error { return nil }
func (f *fakeStore) GetContributor(ctx context.Context, projectID, userID string) (store.Contributor, error) {
	if f.getContributorFn != nil {
		return f.getContributorFn(ctx, projectID, userID)
	}
	return store.Contributor{}, sql.ErrNoRows
}
func (f *fakeStore) ListContributors(context.Context, string) ([]store.Contributor, error) {
	return nil, nil
}
func (f *fakeStore) RemoveContributor(context.Context, string, string) error { return nil }
func (f *fakeStore) ListPendingInvites(context.Context, string) ([]store.Project, error) {
	return nil, nil
}

func (f *fakeStore) CreateTask(context.Context, store.Task) error { return nil }
func (f *fakeStore) GetTask(ctx context.Context, taskID string) (store.Task, error) {
	if f.getTaskFn != nil {
		return f.getTaskFn(ctx, taskID)
	}
	return store.Task{}, sql.ErrNoRows
}
func (f *fakeStore) ListTasks(context.Context, string) ([]store.Task, error) { return nil, nil }
func (f *fakeStore) UpdateTask(context.Context, store.Task) error            { return nil }
func (f *fakeStore) UpdateTaskStatus(context.Context, string, string) error  { return nil }
func (f *fakeStore) CountChildren(ctx context.Context, taskID string) (int, error) {
	if f.countChildrenFn != nil {
		return f.countChildrenFn(ctx, taskID)
	}
	return 0, nil
}
func (f *fakeStore) DeleteTask(ctx context.Context, taskID string) ([]string, error) {
	if f.deleteTaskFn != nil {
		return f.deleteTaskFn(ctx, taskID)
	}
	return nil, nil
}

func (f *fakeStore) ListColumns(ctx context.Context, projectID string) ([]store.Column, error) {
	if f.listColumnsFn != nil {
		return f.listColumnsFn(ctx, projectID)
	}
	return nil, nil
}
func (f *fakeStore) SeedDefaultColumns(ctx context.Context, projectID string) ([]store.Column, error) {
	if f.seedDefaultColumnsFn != nil {
		return f.seedDefaultColumnsFn(ctx, projectID)
	}
	return nil, nil
}
func (f *fakeStore) GetColumn(ctx context.Context, columnID string) (store.Column, error) {
	if f.getColumnFn != nil {
		return f.getColumnFn(ctx, columnID)
	}
	return store.Column{}, sql.ErrNoRows
}
func (f *fakeStore) InsertColumn(context.Context, store.Column) error { return nil }
func (f *fakeStore) MaxColumnOrder(ctx context.Context, projectID string) (int, bool, error) {
	if f.maxColumnOrderFn != nil {
		return f.maxColumnOrderFn(ctx, projectID)
	}
	return 0, false, nil
}
func (f *fakeStore) CountColumns(ctx context.Context, projectID string) (int, error) {
	if f.countColumnsFn != nil {
		return f.countColumnsFn(ctx, projectID)
	}
	return 0, nil
}
func (f *fakeStore) CountTicketsInColumn(ctx context.Context, columnID string) (int, error) {
	if f.countTicketsInColumnFn != nil {
		return f.countTicketsInColumnFn(ctx, columnID)
	}
	return 0, nil
}
func (f *fakeStore) GetTicket(ctx context.Context, ticketID string) (store.Ticket, error) {
	if f.getTicketFn != nil {
		return f.getTicketFn(ctx, ticketID)
	}
	return store.Ticket{}, sql.ErrNoRows
}
func (f *fakeStore) GetBoardTicket(ctx context.Context, ticketID string) (store.BoardTicket, error) {
	if f.getBoardTicketFn != nil {
		return f.getBoardTicketFn(ctx, ticketID)
	}
	return store.BoardTicket{}, sql.ErrNoRows
}
func (f *fakeStore) ListBoardTickets(ctx context.Context, projectID string) ([]store.BoardTicket, error) {
	if f.listBoardTicketsFn != nil {
		return f.listBoardTicketsFn(ctx, projectID)
	}
	return nil, nil
}
func (f *fakeStore) CreateTicketFromTask(ctx context.Context, ticket store.Ticket) (store.Ticket, error) {
	if f.createTicketFromTaskFn != nil {
		return f.createTicketFromTaskFn(ctx, ticket)
	}
	return ticket, nil
}
func (f *fakeStore) ApplyTicketMove(ctx context.Context, ticketID string, plan board.Plan) error {
	if f.applyTicketMoveFn != nil {
		return f.applyTicketMoveFn(ctx, ticketID, plan)
	}
	return nil
}
func (f *fakeStore) ApplyColumnMove(ctx context.Context, columnID string, plan board.Plan) error {
	if f.applyColumnMoveFn != nil {
		return f.applyColumnMoveFn(ctx, columnID, plan)
	}
	return nil
}
func (f *fakeStore) DeleteTicket(ctx context.Context, ticketID string) (store.Ticket, error) {
	if f.deleteTicketFn != nil {
		return f.deleteTicketFn(ctx, ticketID)
	}
	return store.Ticket{}, sql.ErrNoRows
}
func (f *fakeStore) DeleteColumn(ctx context.Context, columnID string) (store.Column, int, error) {
	if f.deleteColumnFn != nil {
		return f.deleteColumnFn(ctx, columnID)
	}
	return store.Column{}, 0, sql.ErrNoRows
}

func (f *fakeStore) CreateDocument(context.Context, store.Document) error { return nil }
func (f *fakeStore) GetDocument(context.Context, string) (store.Document, error) {
	return store.Document{}, sql.ErrNoRows
}
func (f *fakeStore) ListDocuments(context.Context, string) ([]store.Document, error) {
	return nil, nil
}
func (f *fakeStore) DeleteDocument(context.Context, string) error { return nil }

func (f *fakeStore) CreateNotification(context.Context, store.Notification) error { return nil }
func (f *fakeStore) ListNotifications(context.Context, string, int) ([]store.Notification, error) {
	return nil, nil
}
func (f *fakeStore) MarkNotificationsRead(context.Context, string, []string) error { return nil }
func (f *fakeStore) Follow(context.Context, string, string) error                  { return nil }
func (f *fakeStore) Unfollow(context.Context, string, string) error                { return nil }
func (f *fakeStore) ListFollowing(context.Context, string) ([]store.User, error)   { return nil, nil }
func (f *fakeStore) ListFollowers(context.Context, string) ([]store.User, error)   { return nil, nil }
func (f *fakeStore) DashboardStatsForUser(context.Context, string) (store.DashboardStats, error) {
	return store.DashboardStats{}, nil
}

func (f *fakeStore) AppendAssistMessage(context.Context, store.AssistMessage) error { return nil }
func (f *fakeStore) ListAssistMessages(context.Context, string, string, int) ([]store.AssistMessage, error) {
	return nil, nil
}
func (f *fakeStore) ClearAssistMessages(context.Context, string, string) error { return nil }

type fakeSessions struct{}

func (fakeSessions) SaveRefreshSession(context.Context, string, string, string, time.Time) error {
	return nil
}
func (fakeSessions) LookupRefreshSession(context.Context, string) (session.TokenData, error) {
	return session.TokenData{}, session.ErrNotFound
}
func (fakeSessions) RevokeRefreshSession(context.Context, string) error { return nil }

type recordedEvent struct {
	room  string
	event string
}

type fakeBroadcaster struct {
	events []recordedEvent
}

func (f *fakeBroadcaster) EmitToRoom(room, event string, payload any) {
	f.events = append(f.events, recordedEvent{room: room, event: event})
}

func (f *fakeBroadcaster) eventNames() []string {
	names := make([]string, 0, len(f.events))
	for _, e := range f.events {
		names = append(names, e.event)
	}
	return names
}

func memberStore() *fakeStore {
	return &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Name: "Test Project", OwnerID: "usr_owner"}, nil
		},
	}
}

func newTestService(fs *fakeStore, fb *fakeBroadcaster) *Service {
	svc := &Service{
		cfg:      config.Config{TokenSecret: "test-secret", AccessTTL: 15 * time.Minute, RefreshTTL: time.Hour},
		store:    fs,
		sessions: fakeSessions{},
		checker:  access.NewChecker(fs),
	}
	if fb != nil {
		svc.broadcaster = fb
	}
	return svc
}

func TestGetBoardSeedsDefaultColumns(t *testing.T) {
	fs := memberStore()
	seeded := false
	fs.listColumnsFn = func(context.Context, string) ([]store.Column, error) {
		if !seeded {
			return nil, nil
		}
		return []store.Column{
			{ID: "col_1", ProjectID: "prj_1", Name: "Start", Order: 0, IsDefault: true},
			{ID: "col_2", ProjectID: "prj_1", Name: "In Progress", Order: 1},
			{ID: "col_3", ProjectID: "prj_1", Name: "Closed", Order: 2, IsDefault: true},
		}, nil
	}
	fs.seedDefaultColumnsFn = func(ctx context.Context, projectID string) ([]store.Column, error) {
		seeded = true
		return fs.listColumnsFn(ctx, projectID)
	}

	svc := newTestService(fs, nil)
	view, err := svc.GetBoard(context.Background(), "prj_1", "usr_owner")
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	if !seeded {
		t.Fatal("expected default columns to be seeded for an empty board")
	}
	if len(view.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(view.Columns))
	}
	if view.Columns[0].Name != "Start" || view.Columns[2].Name != "Closed" {
		t.Errorf("unexpected column order: %+v", view.Columns)
	}
	if view.Tickets == nil {
		t.Error("tickets should be an empty slice, not nil")
	}
}

func TestGetBoardRejectsNonMembers(t *testing.T) {
	fs := memberStore()
	svc := newTestService(fs, nil)

	_, err := svc.GetBoard(context.Background(), "prj_1", "usr_stranger")
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestMoveTicketEmitsUpdateAndRefetch(t *testing.T) {
	fs := memberStore()
	fs.getTicketFn = func(context.Context, string) (store.Ticket, error) {
		return store.Ticket{ID: "tkt_1", ProjectID: "prj_1", ColumnID: "col_1", Order: 0}, nil
	}
	fs.getColumnFn = func(_ context.Context, columnID string) (store.Column, error) {
		return store.Column{ID: columnID, ProjectID: "prj_1"}, nil
	}
	fs.countTicketsInColumnFn = func(context.Context, string) (int, error) { return 3, nil }
	fs.getBoardTicketFn = func(context.Context, string) (store.BoardTicket, error) {
		return store.BoardTicket{Ticket: store.Ticket{ID: "tkt_1", ProjectID: "prj_1", ColumnID: "col_1", Order: 2}}, nil
	}

	var applied board.Plan
	fs.applyTicketMoveFn = func(_ context.Context, _ string, plan board.Plan) error {
		applied = plan
		return nil
	}

	fb := &fakeBroadcaster{}
	svc := newTestService(fs, fb)

	view, err := svc.MoveTicket(context.Background(), "tkt_1", "", 2, "usr_owner")
	if err != nil {
		t.Fatalf("MoveTicket: %v", err)
	}
	if view.Order != 2 {
		t.Errorf("expected order 2, got %d", view.Order)
	}
	if applied.NoOp {
		t.Fatal("expected a real move plan")
	}
	if applied.Order != 2 {
		t.Errorf("plan order = %d, want 2", applied.Order)
	}

	names := fb.eventNames()
	if len(names) != 2 || names[0] != "ticket_updated" || names[1] != "board_refetch_needed" {
		t.Fatalf("expected [ticket_updated board_refetch_needed], got %v", names)
	}
	for _, e := range fb.events {
		if e.room != "project:prj_1" {
			t.Errorf("event %s went to room %s", e.event, e.room)
		}
	}
}

func TestMoveTicketNoOpStaysSilent(t *testing.T) {
	fs := memberStore()
	fs.getTicketFn = func(context.Context, string) (store.Ticket, error) {
		return store.Ticket{ID: "tkt_1", ProjectID: "prj_1", ColumnID: "col_1", Order: 1}, nil
	}
	fs.getColumnFn = func(_ context.Context, columnID string) (store.Column, error) {
		return store.Column{ID: columnID, ProjectID: "prj_1"}, nil
	}
	fs.countTicketsInColumnFn = func(context.Context, string) (int, error) { return 3, nil }
	fs.getBoardTicketFn = func(context.Context, string) (store.BoardTicket, error) {
		return store.BoardTicket{Ticket: store.Ticket{ID: "tkt_1", ProjectID: "prj_1", ColumnID: "col_1", Order: 1}}, nil
	}

	fb := &fakeBroadcaster{}
	svc := newTestService(fs, fb)

	if _, err := svc.MoveTicket(context.Background(), "tkt_1", "", 1, "usr_owner"); err != nil {
		t.Fatalf("MoveTicket: %v", err)
	}
	if len(fb.events) != 0 {
		t.Fatalf("no-op move should emit nothing, got %v", fb.eventNames())
	}
}

func TestMoveTicketOrderOutOfRange(t *testing.T) {
	fs := memberStore()
	fs.getTicketFn = func(context.Context, string) (store.Ticket, error) {
		return store.Ticket{ID: "tkt_1", ProjectID: "prj_1", ColumnID: "col_1", Order: 0}, nil
	}
	fs.getColumnFn = func(_ context.Context, columnID string) (store.Column, error) {
		return store.Column{ID: columnID, ProjectID: "prj_1"}, nil
	}
	fs.countTicketsInColumnFn = func(context.Context, string) (int, error) { return 2, nil }

	svc := newTestService(fs, nil)

	_, err := svc.MoveTicket(context.Background(), "tkt_1", "", 5, "usr_owner")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != 422 || domainErr.Code != "VALIDATION_ERROR" {
		t.Errorf("got %d %s, want 422 VALIDATION_ERROR", domainErr.Status, domainErr.Code)
	}
}

func TestCreateTicketRejectsAlreadyPromotedTask(t *testing.T) {
	fs := memberStore()
	fs.getTaskFn = func(context.Context, string) (store.Task, error) {
		return store.Task{ID: "tsk_1", ProjectID: "prj_1", Title: "Promoted", IsTicket: true}, nil
	}

	svc := newTestService(fs, nil)

	_, err := svc.CreateTicket(context.Background(), "prj_1", "tsk_1", "", "usr_owner")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "ALREADY_TICKET" {
		t.Errorf("got code %s, want ALREADY_TICKET", domainErr.Code)
	}
}

func TestMoveColumnBroadcastsNewOrder(t *testing.T) {
	fs := memberStore()
	fs.getColumnFn = func(context.Context, string) (store.Column, error) {
		return store.Column{ID: "col_2", ProjectID: "prj_1", Order: 1}, nil
	}
	fs.countColumnsFn = func(context.Context, string) (int, error) { return 3, nil }
	fs.listColumnsFn = func(context.Context, string) ([]store.Column, error) {
		return []store.Column{
			{ID: "col_2", ProjectID: "prj_1", Order: 0},
			{ID: "col_1", ProjectID: "prj_1", Order: 1},
			{ID: "col_3", ProjectID: "prj_1", Order: 2},
		}, nil
	}

	fb := &fakeBroadcaster{}
	svc := newTestService(fs, fb)

	columns, err := svc.MoveColumn(context.Background(), "col_2", 0, "usr_owner")
	if err != nil {
		t.Fatalf("MoveColumn: %v", err)
	}
	if len(columns) != 3 || columns[0].ID != "col_2" {
		t.Fatalf("unexpected column order: %+v", columns)
	}

	names := fb.eventNames()
	if len(names) != 1 || names[0] != "columns_reordered" {
		t.Fatalf("expected [columns_reordered], got %v", names)
	}
}

func TestDeleteColumnReportsCascade(t *testing.T) {
	fs := memberStore()
	fs.getColumnFn = func(context.Context, string) (store.Column, error) {
		return store.Column{ID: "col_2", ProjectID: "prj_1", Order: 1}, nil
	}
	fs.deleteColumnFn = func(context.Context, string) (store.Column, int, error) {
		return store.Column{ID: "col_2", ProjectID: "prj_1"}, 4, nil
	}

	fb := &fakeBroadcaster{}
	svc := newTestService(fs, fb)

	removed, err := svc.DeleteColumn(context.Background(), "col_2", "usr_owner")
	if err != nil {
		t.Fatalf("DeleteColumn: %v", err)
	}
	if removed != 4 {
		t.Errorf("expected 4 tickets removed, got %d", removed)
	}

	names := fb.eventNames()
	if len(names) != 1 || names[0] != "column_deleted" {
		t.Fatalf("expected [column_deleted], got %v", names)
	}
}

func TestDeleteTicketEmitsBothEvents(t *testing.T) {
	fs := memberStore()
	fs.getTicketFn = func(context.Context, string) (store.Ticket, error) {
		return store.Ticket{ID: "tkt_1", ProjectID: "prj_1", TaskID: "tsk_1", ColumnID: "col_1"}, nil
	}
	fs.deleteTicketFn = func(context.Context, string) (store.Ticket, error) {
		return store.Ticket{ID: "tkt_1", ProjectID: "prj_1", TaskID: "tsk_1"}, nil
	}

	fb := &fakeBroadcaster{}
	svc := newTestService(fs, fb)

	if err := svc.DeleteTicket(context.Background(), "tkt_1", "usr_owner"); err != nil {
		t.Fatalf("DeleteTicket: %v", err)
	}

	names := fb.eventNames()
	if len(names) != 2 || names[0] != "ticket_deleted" || names[1] != "task_updated" {
		t.Fatalf("expected [ticket_deleted task_updated], got %v", names)
	}
}

func TestMoveTicketRetriesAfterOrderConflict(t *testing.T) {
	fs := memberStore()
	ticketReads := 0
	fs.getTicketFn = func(context.Context, string) (store.Ticket, error) {
		ticketReads++
		// A concurrent move bumped the ticket down a slot between attempts.
		order := 0
		if ticketReads > 1 {
			order = 1
		}
		return store.Ticket{ID: "tkt_1", ProjectID: "prj_1", ColumnID: "col_1", Order: order}, nil
	}
	fs.countTicketsInColumnFn = func(context.Context, string) (int, error) { return 4, nil }
	fs.getBoardTicketFn = func(context.Context, string) (store.BoardTicket, error) {
		return store.BoardTicket{Ticket: store.Ticket{ID: "tkt_1", ProjectID: "prj_1", ColumnID: "col_1", Order: 3}}, nil
	}

	applyCalls := 0
	fs.applyTicketMoveFn = func(_ context.Context, _ string, plan board.Plan) error {
		applyCalls++
		if applyCalls == 1 {
			return store.ErrOrderConflict
		}
		return nil
	}

	fb := &fakeBroadcaster{}
	svc := newTestService(fs, fb)

	view, err := svc.MoveTicket(context.Background(), "tkt_1", "", 3, "usr_owner")
	if err != nil {
		t.Fatalf("MoveTicket: %v", err)
	}
	if applyCalls != 2 {
		t.Errorf("apply calls = %d, want 2", applyCalls)
	}
	if ticketReads != 2 {
		t.Errorf("ticket reads = %d, want a re-read before the replan", ticketReads)
	}
	if view.Order != 3 {
		t.Errorf("expected order 3, got %d", view.Order)
	}
	names := fb.eventNames()
	if len(names) != 2 || names[0] != "ticket_updated" || names[1] != "board_refetch_needed" {
		t.Fatalf("expected a single [ticket_updated board_refetch_needed], got %v", names)
	}
}

func TestMoveTicketConflictExhaustionMapsTo409(t *testing.T) {
	fs := memberStore()
	fs.getTicketFn = func(context.Context, string) (store.Ticket, error) {
		return store.Ticket{ID: "tkt_1", ProjectID: "prj_1", ColumnID: "col_1", Order: 0}, nil
	}
	fs.countTicketsInColumnFn = func(context.Context, string) (int, error) { return 3, nil }

	applyCalls := 0
	fs.applyTicketMoveFn = func(context.Context, string, board.Plan) error {
		applyCalls++
		return store.ErrOrderConflict
	}

	svc := newTestService(fs, &fakeBroadcaster{})

	_, err := svc.MoveTicket(context.Background(), "tkt_1", "", 2, "usr_owner")
	var derr *DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if derr.Status != http.StatusConflict || derr.Code != "ORDER_CONFLICT" {
		t.Errorf("got %d %s, want 409 ORDER_CONFLICT", derr.Status, derr.Code)
	}
	if applyCalls != 3 {
		t.Errorf("apply calls = %d, want 3", applyCalls)
	}
}

func TestMoveColumnRetriesAfterOrderConflict(t *testing.T) {
	fs := memberStore()
	fs.getColumnFn = func(context.Context, string) (store.Column, error) {
		return store.Column{ID: "col_2", ProjectID: "prj_1", Order: 1}, nil
	}
	fs.countColumnsFn = func(context.Context, string) (int, error) { return 3, nil }
	fs.listColumnsFn = func(context.Context, string) ([]store.Column, error) {
		return []store.Column{
			{ID: "col_1", ProjectID: "prj_1", Order: 0},
			{ID: "col_3", ProjectID: "prj_1", Order: 1},
			{ID: "col_2", ProjectID: "prj_1", Order: 2},
		}, nil
	}

	applyCalls := 0
	fs.applyColumnMoveFn = func(context.Context, string, board.Plan) error {
		applyCalls++
		if applyCalls == 1 {
			return store.ErrOrderConflict
		}
		return nil
	}

	fb := &fakeBroadcaster{}
	svc := newTestService(fs, fb)

	columns, err := svc.MoveColumn(context.Background(), "col_2", 2, "usr_owner")
	if err != nil {
		t.Fatalf("MoveColumn: %v", err)
	}
	if applyCalls != 2 {
		t.Errorf("apply calls = %d, want 2", applyCalls)
	}
	if len(columns) != 3 || columns[2].ID != "col_2" {
		t.Fatalf("unexpected column order: %+v", columns)
	}
	names := fb.eventNames()
	if len(names) != 1 || names[0] != "columns_reordered" {
		t.Fatalf("expected a single [columns_reordered], got %v", names)
	}
}
