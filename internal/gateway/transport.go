package gateway

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second
	// pingPeriod sends pings to the peer at this cadence; must be less
	// than pongWait so a missed pong is detected before the deadline.
	pingPeriod = (pongWait * 9) / 10
	// sendBuffer is how many outbound messages may queue for a connection
	// before Send starts dropping them, mirroring the teacher's Player.Send
	// channel capacity.
	sendBuffer = 16
)

// ErrClosed is returned by Transport.Recv once the underlying connection
// has closed, either by the peer or locally.
var ErrClosed = errors.New("gateway: transport closed")

// Transport is the bidirectional channel abstraction the Session Gateway
// adapts to the core: send bytes, receive bytes (or ErrClosed). The core
// never depends on gorilla/websocket directly — only this package does.
type Transport interface {
	Send(data []byte) error
	Recv() ([]byte, error)
	Close() error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Upgrade upgrades an HTTP request to a websocket Transport.
func Upgrade(w http.ResponseWriter, r *http.Request) (Transport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	t := &wsTransport{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	go t.writePump()
	return t, nil
}

// wsTransport is a Transport backed by a gorilla/websocket connection.
// gorilla permits only one concurrent writer per connection, so every
// outbound write — text frames and keepalive pings alike — is funneled
// through the single writePump goroutine, mirroring the teacher's
// writePump in srv/ws.go rather than writing from whichever goroutine
// happens to call Send or tick the ping timer.
type wsTransport struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// Send enqueues data for writePump. It never blocks: a full queue drops
// the message, matching the teacher's sendToPlayer "drop if full" policy
// rather than stalling the publisher on a slow reader.
func (t *wsTransport) Send(data []byte) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	select {
	case t.send <- data:
		return nil
	default:
		return nil
	}
}

func (t *wsTransport) Recv() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, ErrClosed
	}
	return data, nil
}

func (t *wsTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

// writePump is the connection's only writer. It serializes queued
// messages, periodic pings, and the closing handshake onto the
// connection, then closes it on the way out.
func (t *wsTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case data := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-t.done:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			t.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
