package routing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	busport "go-chatrelay/internal/infrastructure/bus/port"
	chat "go-chatrelay/internal/pkg/chat/domain"
)

const ownServerID = "gw-1"

func newDispatcherFixture() (*Dispatcher, *fakeEmitter) {
	emitter := &fakeEmitter{}
	return NewDispatcher(ownServerID, emitter, zap.NewNop()), emitter
}

func envelope(t *testing.T, serverID, eventType string, data any) busport.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return busport.Envelope{ServerID: serverID, Type: eventType, Data: raw}
}

func TestHandle_DiscardsOwnEnvelopes(t *testing.T) {
	req := require.New(t)
	d, emitter := newDispatcherFixture()
	msg := chat.Message{ID: "m1", From: "amy", RoomID: "0", Body: "hi", Date: 1000}

	// The publishing instance already delivered locally; an echo would
	// duplicate the message for its subscribers.
	d.Handle(envelope(t, ownServerID, chat.EventMessage, msg))

	req.Empty(emitter.roomEmits)
	req.Empty(emitter.allEmits)
}

func TestHandle_RemoteMessageEmitsToRoomOnce(t *testing.T) {
	req := require.New(t)
	d, emitter := newDispatcherFixture()
	msg := chat.Message{ID: "m1", From: "amy", RoomID: "amy:zoe", Body: "hi", Date: 1000}

	d.Handle(envelope(t, "gw-2", chat.EventMessage, msg))

	req.Len(emitter.roomEmits, 1)
	req.Equal("amy:zoe", emitter.roomEmits[0].roomID)
	req.Empty(emitter.allEmits)

	frame := decodeFrame(t, emitter.roomEmits[0].payload)
	req.Equal(chat.EventMessage, frame.Type)
	var delivered chat.Message
	req.NoError(json.Unmarshal(frame.Data, &delivered))
	req.Equal(msg, delivered)
}

func TestHandle_RemoteRevealBroadcasts(t *testing.T) {
	req := require.New(t)
	d, emitter := newDispatcherFixture()
	ev := chat.RoomRevealEvent{ID: "amy:zoe", Names: []string{"Amy", "Zoe"}}

	d.Handle(envelope(t, "gw-2", chat.EventShowRoom, ev))

	req.Empty(emitter.roomEmits)
	req.Len(emitter.allEmits, 1)
	req.Empty(emitter.allEmits[0].exclude, "remote reveals go to every local session")
	frame := decodeFrame(t, emitter.allEmits[0].payload)
	req.Equal(chat.EventShowRoom, frame.Type)
}

func TestHandle_RemotePresenceBroadcasts(t *testing.T) {
	req := require.New(t)
	d, emitter := newDispatcherFixture()

	d.Handle(envelope(t, "gw-2", chat.EventUserConnected, chat.PresenceEvent{ID: "amy", Online: true}))
	d.Handle(envelope(t, "gw-3", chat.EventUserDisconnected, chat.PresenceEvent{ID: "zoe", Online: false}))

	req.Len(emitter.allEmits, 2)
	first := decodeFrame(t, emitter.allEmits[0].payload)
	req.Equal(chat.EventUserConnected, first.Type)
	second := decodeFrame(t, emitter.allEmits[1].payload)
	req.Equal(chat.EventUserDisconnected, second.Type)
}

func TestHandle_DropsMalformedPayloads(t *testing.T) {
	req := require.New(t)
	d, emitter := newDispatcherFixture()

	d.Handle(busport.Envelope{ServerID: "gw-2", Type: chat.EventMessage, Data: json.RawMessage(`{not json`)})
	d.Handle(busport.Envelope{ServerID: "gw-2", Type: chat.EventMessage, Data: json.RawMessage(`{"from":"amy"}`)})
	d.Handle(busport.Envelope{ServerID: "gw-2", Type: chat.EventShowRoom, Data: json.RawMessage(`{}`)})

	req.Empty(emitter.roomEmits, "malformed remote data stops at the dispatcher")
	req.Empty(emitter.allEmits)
}

func TestHandle_IgnoresUnknownEventTypes(t *testing.T) {
	req := require.New(t)
	d, emitter := newDispatcherFixture()

	d.Handle(envelope(t, "gw-2", "room.renamed", map[string]string{"id": "0"}))

	req.Empty(emitter.roomEmits)
	req.Empty(emitter.allEmits)
}
