package server

import (
	"encoding/json"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
)

// MessageType tags websocket messages
type MessageType string

const (
	MessageTypeHello    MessageType = "hello"
	MessageTypeEvent    MessageType = "event"
	MessageTypeProgress MessageType = "progress"
	MessageTypeCommand  MessageType = "command"
	MessageTypeError    MessageType = "error"
)

// Message is the websocket envelope
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into a Message
func NewMessage(t MessageType, payload any) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Payload: b}, nil
}

// Decode unmarshals the payload into v
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// HelloMessage greets a new session
type HelloMessage struct {
	SessionID string        `json:"session_id"`
	Status    StatusMessage `json:"status"`
}

// StatusMessage describes the player at one moment
type StatusMessage struct {
	Phase    string         `json:"phase"`
	Index    int            `json:"index"`
	Track    *catalog.Track `json:"track,omitempty"`
	Playing  bool           `json:"playing"`
	Progress float64        `json:"progress"`
	Duration float64        `json:"duration"` // seconds, 0 when unknown
}

// EventMessage carries one lifecycle notification
type EventMessage struct {
	Kind  string         `json:"kind"`
	Phase string         `json:"phase"`
	Index int            `json:"index"`
	Track *catalog.Track `json:"track,omitempty"`
	Error string         `json:"error,omitempty"`
}

// ProgressMessage is broadcast periodically while a track is loaded
type ProgressMessage struct {
	Progress float64 `json:"progress"`
	Duration float64 `json:"duration"`
}

// CommandMessage is a transport command sent by a client
type CommandMessage struct {
	Action string `json:"action"` // toggle, next, prev, stop, select
	Index  int    `json:"index,omitempty"`
}

// ErrorMessage reports a rejected command
type ErrorMessage struct {
	Reason string `json:"reason"`
}

// TracksMessage lists the catalog
type TracksMessage struct {
	Tracks []catalog.Track `json:"tracks"`
}

func statusOf(p Player) StatusMessage {
	st := p.State()
	msg := StatusMessage{
		Phase:    st.Phase.String(),
		Index:    st.Index,
		Playing:  p.IsPlaying(),
		Progress: p.CurrentProgress(),
		Duration: p.CurrentDuration().Seconds(),
	}
	if t, ok := p.CurrentTrack(); ok {
		msg.Track = &t
	}
	return msg
}
