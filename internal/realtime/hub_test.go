package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(hub *Hub) *Client {
	return &Client{
		hub:   hub,
		send:  make(chan []byte, 8),
		rooms: make(map[string]bool),
	}
}

func receive(t *testing.T, c *Client) envelope {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return envelope{}
	}
}

func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected event: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEmitReachesRoomMembersOnly(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	member := newTestClient(hub)
	outsider := newTestClient(hub)
	hub.register <- member
	hub.register <- outsider
	hub.join <- subscription{client: member, room: ProjectRoom("prj_1")}
	hub.join <- subscription{client: outsider, room: ProjectRoom("prj_2")}

	hub.EmitToRoom(ProjectRoom("prj_1"), "board_refetch_needed", map[string]string{"projectId": "prj_1"})

	env := receive(t, member)
	if env.Type != "board_refetch_needed" {
		t.Fatalf("event type = %q, want board_refetch_needed", env.Type)
	}
	expectSilence(t, outsider)
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub)
	hub.register <- client
	room := ProjectRoom("prj_1")
	hub.join <- subscription{client: client, room: room}
	hub.leave <- subscription{client: client, room: room}

	hub.EmitToRoom(room, "ticket_updated", map[string]string{"id": "tck_1"})
	expectSilence(t, client)
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub)
	hub.register <- client
	hub.join <- subscription{client: client, room: ProjectRoom("prj_1")}
	hub.unregister <- client

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestEmitToEmptyRoomIsHarmless(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	hub.EmitToRoom(ProjectRoom("prj_none"), "columns_reordered", nil)
}

func TestBridgeFansOutThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hub := NewHub()
	go hub.Run()
	bridge := NewBridge(rdb, hub)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go bridge.Run(ctx)

	client := newTestClient(hub)
	hub.register <- client
	hub.join <- subscription{client: client, room: ProjectRoom("prj_1")}

	// Give the subscriber a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)
	bridge.EmitToRoom(ProjectRoom("prj_1"), "column_created", map[string]string{"id": "col_9"})

	env := receive(t, client)
	if env.Type != "column_created" {
		t.Fatalf("event type = %q, want column_created", env.Type)
	}
}
