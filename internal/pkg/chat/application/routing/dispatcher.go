package routing

import (
	"encoding/json"

	"go.uber.org/zap"

	busport "go-chatrelay/internal/infrastructure/bus/port"
	chat "go-chatrelay/internal/pkg/chat/domain"
)

// Dispatcher relays bus envelopes to this instance's local subscribers. It
// is the receiving half of the fan-out bus contract: envelopes tagged with
// this instance's own server ID are discarded, because the publishing
// instance already delivered the event to its local subscribers at publish
// time.
type Dispatcher struct {
	serverID string
	local    LocalEmitter
	log      *zap.Logger
}

func NewDispatcher(serverID string, local LocalEmitter, log *zap.Logger) *Dispatcher {
	return &Dispatcher{serverID: serverID, local: local, log: log}
}

// Handle processes one envelope. Payloads are decoded into their typed event
// before re-emission, so malformed remote data stops at this boundary.
func (d *Dispatcher) Handle(env busport.Envelope) {
	if env.ServerID == d.serverID {
		return
	}

	switch env.Type {
	case chat.EventMessage:
		var msg chat.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil || msg.RoomID == "" {
			d.drop(env, err)
			return
		}
		d.emitToRoom(msg.RoomID, env.Type, msg)
	case chat.EventShowRoom:
		var ev chat.RoomRevealEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil || ev.ID == "" {
			d.drop(env, err)
			return
		}
		d.emitAll(env.Type, ev)
	case chat.EventUserConnected, chat.EventUserDisconnected:
		var ev chat.PresenceEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil || ev.ID == "" {
			d.drop(env, err)
			return
		}
		d.emitAll(env.Type, ev)
	default:
		d.log.Warn("dispatch: unknown event type", zap.String("type", env.Type), zap.String("from", env.ServerID))
	}
}

func (d *Dispatcher) emitToRoom(roomID, eventType string, data any) {
	frame, err := EncodeFrame(eventType, data)
	if err != nil {
		d.log.Error("dispatch: encode frame", zap.String("type", eventType), zap.Error(err))
		return
	}
	d.local.EmitToRoom(roomID, frame)
}

func (d *Dispatcher) emitAll(eventType string, data any) {
	frame, err := EncodeFrame(eventType, data)
	if err != nil {
		d.log.Error("dispatch: encode frame", zap.String("type", eventType), zap.Error(err))
		return
	}
	d.local.EmitAll(frame, "")
}

func (d *Dispatcher) drop(env busport.Envelope, err error) {
	d.log.Warn("dispatch: dropping malformed event",
		zap.String("type", env.Type), zap.String("from", env.ServerID), zap.Error(err))
}
