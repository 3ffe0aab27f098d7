package websocket

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roomcast/roomcast/pkg/logger"
)

const (
	maxMessageSize = 10 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
)

// WS wraps a single websocket connection with
// serialized reads and writes plus ping/pong keepalive
// on the server side.
type WS struct {
	conn      deadlinedConn
	send      chan []byte
	closed    chan struct{}
	once      sync.Once
	onMessage MessageHandler

	pingPong bool
	done     chan struct{}
	log      *logger.Logger
}

type MessageHandler func(message []byte, err error)

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteBufferPool: &sync.Pool{},
	},
}

// NewUpgrader makes an upgrader that accepts only the given origin,
// or any origin when the param is *.
func NewUpgrader(origin string) *Upgrader {
	u := Upgrader{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			WriteBufferPool: &sync.Pool{},
		},
	}
	if origin == "*" {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	} else if origin != "" {
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	}
	return &u
}

// NewServerWithConn wraps an already upgraded connection.
func NewServerWithConn(conn *websocket.Conn, log *logger.Logger) (*WS, error) {
	return newSocket(conn, true, log), nil
}

func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) *WS {
	return &WS{
		conn:     deadlinedConn{sock: conn, wt: writeWait},
		send:     make(chan []byte),
		closed:   make(chan struct{}),
		done:     make(chan struct{}, 1),
		pingPong: pingPong,
		log:      log,
	}
}

func (ws *WS) SetMessageHandler(fn MessageHandler) { ws.onMessage = fn }

// Listen starts the read and write pumps and returns a channel
// that receives a single value when the connection dies.
func (ws *WS) Listen() chan struct{} {
	go ws.writer()
	go ws.reader()
	return ws.done
}

// reader pumps messages from the websocket connection to the onMessage callback.
// Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		ws.shut()
		ws.done <- struct{}{}
		ws.log.Debug().Str(logger.DirectionField, "x").Msg("Close reader")
	}()
	ws.conn.sock.SetReadLimit(maxMessageSize)
	if ws.pingPong {
		_ = ws.conn.sock.SetReadDeadline(time.Now().Add(pongTime))
		ws.conn.sock.SetPongHandler(func(string) error {
			return ws.conn.sock.SetReadDeadline(time.Now().Add(pongTime))
		})
	}
	for {
		message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Debug().Err(err).Msg("unexpected close")
			}
			return
		}
		if ws.onMessage != nil {
			ws.onMessage(message, err)
		}
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Serializes all websocket writes.
func (ws *WS) writer() {
	var ticker *time.Ticker
	if ws.pingPong {
		ticker = time.NewTicker(pingTime)
		defer ticker.Stop()
	} else {
		ticker = time.NewTicker(time.Hour)
		ticker.Stop()
	}
	for {
		select {
		case message := <-ws.send:
			if err := ws.conn.write(websocket.TextMessage, message); err != nil {
				ws.shut()
				return
			}
		case <-ticker.C:
			if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
				ws.shut()
				return
			}
		case <-ws.closed:
			_ = ws.conn.write(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Write queues a message for delivery.
// Safe to call on an already closed connection (no-op).
func (ws *WS) Write(data []byte) {
	select {
	case ws.send <- data:
	case <-ws.closed:
	}
}

func (ws *WS) Close() { ws.shut() }

func (ws *WS) shut() {
	ws.once.Do(func() {
		close(ws.closed)
		_ = ws.conn.close()
	})
}
