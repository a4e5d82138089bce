package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

const eventsChannel = "omnihub:events"

type wireEvent struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Bridge spreads room emissions across api instances through redis pub/sub.
// Every instance subscribes and replays received events into its local hub,
// so a move handled by one pod reaches sockets held by another.
type Bridge struct {
	rdb *redis.Client
	hub *Hub
}

func NewBridge(rdb *redis.Client, hub *Hub) *Bridge {
	return &Bridge{rdb: rdb, hub: hub}
}

// EmitToRoom publishes the event; local delivery happens when the
// subscription loop echoes it back. If redis is down we fall through to the
// local hub so single-instance deployments keep working.
func (b *Bridge) EmitToRoom(room, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf(`{"level":"error","msg":"marshal realtime payload","event":%q,"error":%q}`, event, err.Error())
		return
	}
	wire, err := json.Marshal(wireEvent{Room: room, Event: event, Payload: body})
	if err != nil {
		log.Printf(`{"level":"error","msg":"marshal realtime wire event","event":%q,"error":%q}`, event, err.Error())
		return
	}
	if err := b.rdb.Publish(context.Background(), eventsChannel, wire).Err(); err != nil {
		log.Printf(`{"level":"warn","msg":"publish realtime event, delivering locally","event":%q,"error":%q}`, event, err.Error())
		b.hub.EmitToRoom(room, event, json.RawMessage(body))
	}
}

// Run consumes the shared channel until ctx is canceled.
func (b *Bridge) Run(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, eventsChannel)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var wire wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
				log.Printf(`{"level":"warn","msg":"decode realtime wire event","error":%q}`, err.Error())
				continue
			}
			b.hub.EmitToRoom(wire.Room, wire.Event, wire.Payload)
		}
	}
}
