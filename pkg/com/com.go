package com

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/goccy/go-json"
	"github.com/roomcast/roomcast/pkg/api"
	"github.com/roomcast/roomcast/pkg/logger"
	"github.com/roomcast/roomcast/pkg/network/websocket"
)

type (
	// Connector upgrades HTTP requests into socket clients.
	Connector struct {
		tag string
		wu  *websocket.Upgrader
	}
	Option = func(c *Connector)
)

var outPool = sync.Pool{New: func() any { o := api.Out{}; return &o }}

func WithOrigin(origin string) Option {
	return func(c *Connector) { c.wu = websocket.NewUpgrader(origin) }
}
func WithTag(tag string) Option { return func(c *Connector) { c.tag = tag } }

func NewConnector(opts ...Option) *Connector {
	c := &Connector{}
	for _, opt := range opts {
		opt(c)
	}
	if c.wu == nil {
		c.wu = &websocket.DefaultUpgrader
	}
	return c
}

func (co *Connector) NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*SocketClient, error) {
	ws, err := co.wu.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn, err := websocket.NewServerWithConn(ws, log)
	if err != nil {
		return nil, err
	}
	return newSocketClient(conn, NewUid(), true, log), nil
}

func (co *Connector) NewClient(address url.URL, log *logger.Logger) (*SocketClient, error) {
	conn, err := websocket.NewClient(address, log)
	if err != nil {
		return nil, err
	}
	return newSocketClient(conn, NewUid(), false, log), nil
}

// SocketClient is a typed packet connection with a server-assigned id.
type SocketClient struct {
	id       Uid
	sock     *websocket.WS
	onPacket func(in api.In)
	log      *logger.Logger // a special logger for showing x -> y directions
}

func newSocketClient(conn *websocket.WS, id Uid, isServer bool, log *logger.Logger) *SocketClient {
	if id.IsNil() {
		id = NewUid()
	}
	dir := "→"
	if isServer {
		dir = "←"
	}
	dirClLog := log.Extend(log.With().
		Str("cid", id.Short()).
		Str(logger.DirectionField, dir),
	)
	dirClLog.Debug().Msg("Connect")
	return &SocketClient{sock: conn, id: id, log: dirClLog}
}

func (c *SocketClient) OnPacket(fn func(in api.In)) {
	c.onPacket = fn
	c.sock.SetMessageHandler(c.handleMessage)
}

func (c *SocketClient) handleMessage(message []byte, err error) {
	if err != nil {
		c.log.Error().Err(err).Send()
		return
	}
	var in api.In
	if err = json.Unmarshal(message, &in); err != nil {
		c.log.Error().Err(err).Msg("malformed packet")
		return
	}
	c.log.Debug().Str(logger.DirectionField, "←").Msgf("%v", in.T)
	c.onPacket(in)
}

// Notify sends a message and goes further.
func (c *SocketClient) Notify(t api.PT, data any) {
	c.log.Debug().Str(logger.DirectionField, "→").Msgf("%v", t)
	rq := outPool.Get().(*api.Out)
	rq.Id, rq.T, rq.Payload = "", t, data
	r, err := json.Marshal(rq)
	outPool.Put(rq)
	if err != nil {
		c.log.Error().Err(err).Send()
		return
	}
	c.sock.Write(r)
}

func (c *SocketClient) Listen() chan struct{} { return c.sock.Listen() }

func (c *SocketClient) Disconnect() {
	c.sock.Close()
	c.log.Debug().Str(logger.DirectionField, "x").Msg("Close")
}

func (c *SocketClient) Id() Uid        { return c.id }
func (c *SocketClient) String() string { return c.Id().String() }
