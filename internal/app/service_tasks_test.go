package app

import (
	"context"
	"errors"
	"testing"

	"omnihub/api/internal/access"
	"omnihub/api/internal/store"
)

func TestDeleteTaskCascadesTickets(t *testing.T) {
	fs := memberStore()
	fs.getTaskFn = func(context.Context, string) (store.Task, error) {
		return store.Task{ID: "tsk_1", ProjectID: "prj_1", Title: "Ship it", IsTicket: true, TicketID: "tkt_1"}, nil
	}
	fs.countChildrenFn = func(context.Context, string) (int, error) { return 2, nil }

	var deletedTask string
	fs.deleteTaskFn = func(_ context.Context, taskID string) ([]string, error) {
		deletedTask = taskID
		// The task's own ticket plus one promoted subtask.
		return []string{"tkt_1", "tkt_9"}, nil
	}

	fb := &fakeBroadcaster{}
	svc := newTestService(fs, fb)

	if err := svc.DeleteTask(context.Background(), "tsk_1", "usr_owner"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if deletedTask != "tsk_1" {
		t.Errorf("deleted task = %q, want tsk_1", deletedTask)
	}

	names := fb.eventNames()
	want := []string{"ticket_deleted", "ticket_deleted", "task_deleted"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
	for _, e := range fb.events {
		if e.room != "project:prj_1" {
			t.Errorf("event %s went to room %s", e.event, e.room)
		}
	}
}

func TestDeleteTaskWithoutTicketSkipsTicketEvents(t *testing.T) {
	fs := memberStore()
	fs.getTaskFn = func(context.Context, string) (store.Task, error) {
		return store.Task{ID: "tsk_2", ProjectID: "prj_1", Title: "Plain task"}, nil
	}
	fs.deleteTaskFn = func(context.Context, string) ([]string, error) { return nil, nil }

	fb := &fakeBroadcaster{}
	svc := newTestService(fs, fb)

	if err := svc.DeleteTask(context.Background(), "tsk_2", "usr_owner"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	names := fb.eventNames()
	if len(names) != 1 || names[0] != "task_deleted" {
		t.Fatalf("expected [task_deleted], got %v", names)
	}
}

func TestDeleteTaskRejectsNonMembers(t *testing.T) {
	fs := memberStore()
	fs.getTaskFn = func(context.Context, string) (store.Task, error) {
		return store.Task{ID: "tsk_1", ProjectID: "prj_1", IsTicket: true}, nil
	}

	svc := newTestService(fs, &fakeBroadcaster{})

	err := svc.DeleteTask(context.Background(), "tsk_1", "usr_stranger")
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
