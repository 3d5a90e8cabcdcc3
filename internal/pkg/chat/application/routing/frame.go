package routing

import "encoding/json"

// Frame is the outbound websocket wire shape: an event type tag plus its
// payload. Inbound frames are defined by the gateway controller; outbound
// frames are produced here because both the router and the bus dispatcher
// emit them.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeFrame wraps data into a tagged frame ready to hand to a sink.
func EncodeFrame(eventType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: eventType, Data: raw})
}
