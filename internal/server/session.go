package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/player"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
	sendQueueSize     = 32
	maxMessageSize    = 4096

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  wsReadBufferSize,
	WriteBufferSize: wsWriteBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	}, // disable origin check
}

// Session is one websocket client. It observes the player and forwards
// every notification as an EventMessage.
type Session struct {
	ID string

	conn    *websocket.Conn
	server  *Server
	send    chan *Message
	closing chan struct{}
	once    sync.Once
	logger  zerolog.Logger
}

// Verify Session receives every notification at compile time.
var (
	_ player.Observer        = (*Session)(nil)
	_ player.StopObserver    = (*Session)(nil)
	_ player.FailureObserver = (*Session)(nil)
)

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	id := xid.New().String()
	sess := &Session{
		ID:      id,
		conn:    conn,
		server:  s,
		send:    make(chan *Message, sendQueueSize),
		closing: make(chan struct{}),
		logger:  s.logger.With().Str("session", id).Logger(),
	}

	// hello goes first so clients always see it before any event
	hello, err := NewMessage(MessageTypeHello, HelloMessage{SessionID: id, Status: statusOf(s.player)})
	if err == nil {
		sess.SendMessage(hello)
	}

	s.join(sess)
	go sess.writePump()
	sess.readPump()
}

// RemoteAddr returns the client's network address
func (sess *Session) RemoteAddr() string { return sess.conn.RemoteAddr().String() }

// SendMessage queues m without blocking; it is dropped when the client
// is too slow to keep up
func (sess *Session) SendMessage(m *Message) {
	select {
	case <-sess.closing:
		return
	default:
	}

	select {
	case sess.send <- m:
	default:
		sess.logger.Warn().Str("type", string(m.Type)).Msg("Send queue full, dropping message")
	}
}

// Close disconnects the client
func (sess *Session) Close() {
	sess.once.Do(func() { close(sess.closing) })
}

func (sess *Session) OnLoading(t catalog.Track)   { sess.notify(player.EventLoading, &t, nil) }
func (sess *Session) OnStarted(t catalog.Track)   { sess.notify(player.EventStarted, &t, nil) }
func (sess *Session) OnPaused(t catalog.Track)    { sess.notify(player.EventPaused, &t, nil) }
func (sess *Session) OnContinued(t catalog.Track) { sess.notify(player.EventContinued, &t, nil) }
func (sess *Session) OnChanged(t catalog.Track)   { sess.notify(player.EventChanged, &t, nil) }
func (sess *Session) OnStopped()                  { sess.notify(player.EventStopped, nil, nil) }

func (sess *Session) OnFailed(t catalog.Track, err error) {
	sess.notify(player.EventFailed, &t, err)
}

// notify forwards an event together with the player state at delivery
func (sess *Session) notify(kind player.EventKind, t *catalog.Track, err error) {
	st := sess.server.player.State()
	ev := EventMessage{
		Kind:  kind.String(),
		Phase: st.Phase.String(),
		Index: st.Index,
		Track: t,
	}
	if err != nil {
		ev.Error = err.Error()
	}

	msg, mErr := NewMessage(MessageTypeEvent, ev)
	if mErr != nil {
		sess.logger.Error().Err(mErr).Msg("Failed to encode event")
		return
	}
	sess.SendMessage(msg)
}

// writePump is the only goroutine writing to conn
func (sess *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sess.conn.Close()
	}()

	for {
		select {
		case msg := <-sess.send:
			b, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				sess.Close()
				return
			}
		case <-ticker.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.Close()
				return
			}
		case <-sess.closing:
			_ = sess.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// readPump handles client commands until the connection drops, then
// removes the session
func (sess *Session) readPump() {
	defer func() {
		sess.server.leave(sess)
		sess.Close()
	}()

	sess.conn.SetReadLimit(maxMessageSize)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				sess.logger.Warn().Err(err).Msg("Unexpected websocket closure")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			sess.replyError("invalid message")
			continue
		}
		if msg.Type != MessageTypeCommand {
			continue
		}

		var cmd CommandMessage
		if err := msg.Decode(&cmd); err != nil {
			sess.replyError("invalid command")
			continue
		}
		if err := sess.server.runCommand(cmd); err != nil {
			sess.replyError(err.Error())
		}
	}
}

func (sess *Session) replyError(reason string) {
	if msg, err := NewMessage(MessageTypeError, ErrorMessage{Reason: reason}); err == nil {
		sess.SendMessage(msg)
	}
}

// runCommand applies a transport command received over the websocket
func (s *Server) runCommand(cmd CommandMessage) error {
	switch cmd.Action {
	case "toggle":
		return s.player.Toggle()
	case "next":
		return s.player.Advance()
	case "prev":
		return s.player.Retreat()
	case "stop":
		s.player.Stop()
		return nil
	case "select":
		return s.player.Select(cmd.Index)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}
