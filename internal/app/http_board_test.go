package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"omnihub/api/internal/auth"
	"omnihub/api/internal/store"
)

// fakeStoreForHTTP resolves the session user so authenticated requests work.
type fakeStoreForHTTP struct {
	fakeStore
}

func (f *fakeStoreForHTTP) GetUserByID(_ context.Context, userID string) (store.User, error) {
	return store.User{ID: userID, DisplayName: "Owner", Email: "owner@example.com"}, nil
}

func signTestToken(t *testing.T, svc *Service, userID string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(svc.cfg.TokenSecret), auth.Claims{
		Sub:  userID,
		Name: "Owner",
		JTI:  "jti_test",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func newBoardTestServer(fs *fakeStore) (*HTTPServer, *Service) {
	wrapped := &fakeStoreForHTTP{fakeStore: *fs}
	svc := newTestService(&wrapped.fakeStore, nil)
	svc.store = wrapped
	return NewHTTPServer(svc, "*"), svc
}

func doJSON(t *testing.T, server *HTTPServer, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error payload: %v", err)
	}
	return payload.Code
}

func TestBoardRequiresAuth(t *testing.T) {
	server, _ := newBoardTestServer(memberStore())

	rr := doJSON(t, server, http.MethodGet, "/api/board/prj_1", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "UNAUTHORIZED" {
		t.Errorf("got code %s, want UNAUTHORIZED", code)
	}
}

func TestBoardGetReturnsColumnsAndTickets(t *testing.T) {
	fs := memberStore()
	fs.listColumnsFn = func(context.Context, string) ([]store.Column, error) {
		return []store.Column{
			{ID: "col_1", ProjectID: "prj_1", Name: "Start", Order: 0, IsDefault: true},
			{ID: "col_2", ProjectID: "prj_1", Name: "Closed", Order: 1, IsDefault: true},
		}, nil
	}
	fs.listBoardTicketsFn = func(context.Context, string) ([]store.BoardTicket, error) {
		return []store.BoardTicket{
			{
				Ticket:    store.Ticket{ID: "tkt_1", TaskID: "tsk_1", ProjectID: "prj_1", ColumnID: "col_1", Label: "483920", Order: 0},
				TaskTitle: "Ship it",
			},
		}, nil
	}
	server, svc := newBoardTestServer(fs)
	token := signTestToken(t, svc, "usr_owner")

	rr := doJSON(t, server, http.MethodGet, "/api/board/prj_1", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload struct {
		Columns []ColumnView      `json:"columns"`
		Tickets []BoardTicketView `json:"tickets"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse board: %v", err)
	}
	if len(payload.Columns) != 2 || len(payload.Tickets) != 1 {
		t.Fatalf("got %d columns / %d tickets", len(payload.Columns), len(payload.Tickets))
	}
	if payload.Tickets[0].Label != "483920" {
		t.Errorf("got label %s, want 483920", payload.Tickets[0].Label)
	}
}

func TestBoardTicketConflictMapsTo409(t *testing.T) {
	fs := memberStore()
	fs.getTaskFn = func(context.Context, string) (store.Task, error) {
		return store.Task{ID: "tsk_1", ProjectID: "prj_1", IsTicket: true}, nil
	}
	server, svc := newBoardTestServer(fs)
	token := signTestToken(t, svc, "usr_owner")

	rr := doJSON(t, server, http.MethodPost, "/api/board/ticket", token,
		`{"projectId":"prj_1","taskId":"tsk_1"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "ALREADY_TICKET" {
		t.Errorf("got code %s, want ALREADY_TICKET", code)
	}
}

func TestBoardMoveUnknownTicketMapsTo404(t *testing.T) {
	server, svc := newBoardTestServer(memberStore())
	token := signTestToken(t, svc, "usr_owner")

	rr := doJSON(t, server, http.MethodPatch, "/api/board/ticket/move", token,
		`{"ticketId":"tkt_missing","newOrder":0}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "NOT_FOUND" {
		t.Errorf("got code %s, want NOT_FOUND", code)
	}
}

func TestBoardMoveOutOfRangeMapsTo422(t *testing.T) {
	fs := memberStore()
	fs.getTicketFn = func(context.Context, string) (store.Ticket, error) {
		return store.Ticket{ID: "tkt_1", ProjectID: "prj_1", ColumnID: "col_1", Order: 0}, nil
	}
	fs.countTicketsInColumnFn = func(context.Context, string) (int, error) { return 1, nil }
	server, svc := newBoardTestServer(fs)
	token := signTestToken(t, svc, "usr_owner")

	rr := doJSON(t, server, http.MethodPatch, "/api/board/ticket/move", token,
		`{"ticketId":"tkt_1","newOrder":9}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "VALIDATION_ERROR" {
		t.Errorf("got code %s, want VALIDATION_ERROR", code)
	}
}

func TestBoardForbiddenForNonMembers(t *testing.T) {
	server, svc := newBoardTestServer(memberStore())
	token := signTestToken(t, svc, "usr_stranger")

	rr := doJSON(t, server, http.MethodGet, "/api/board/prj_1", token, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "FORBIDDEN" {
		t.Errorf("got code %s, want FORBIDDEN", code)
	}
}
