package relay

import (
	"context"

	"github.com/roomcast/roomcast/pkg/auth"
	"github.com/roomcast/roomcast/pkg/config"
	"github.com/roomcast/roomcast/pkg/logger"
	"github.com/roomcast/roomcast/pkg/monitoring"
	"github.com/roomcast/roomcast/pkg/network/httpx"
	"github.com/roomcast/roomcast/pkg/service"
)

// Relay is the server side of the system: the websocket hub with its
// room registry, the credential API, and the monitoring endpoints.
type Relay struct {
	hub      *Hub
	services service.Group
	log      *logger.Logger
}

func New(conf config.RelayConfig, log *logger.Logger) (*Relay, error) {
	accounts := auth.New(conf.Relay.Auth.MinPasswordLen, conf.Relay.Auth.TokenTTL)
	resolve := func(token string) (string, bool) {
		if u, ok := accounts.Verify(token); ok {
			return u.Username, true
		}
		return "", false
	}
	hub := NewHub(conf.Relay, resolve, log)

	srv, err := httpx.NewServer(
		conf.Relay.Server.GetAddr(),
		func(s *httpx.Server) httpx.Handler {
			h := s.Mux()
			h.HandleFunc("/ws", hub.handleUserConnection)
			h.Handle("/api/", accounts.Router(log))
			return h
		},
		httpx.WithServerConfig(conf.Relay.Server),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	r := &Relay{hub: hub, log: log}
	r.services.Add(srv, NewWatcher(conf.Relay.Rooms.JanitorInterval, hub, log))
	r.services.AddIf(conf.Relay.Monitoring.IsEnabled(),
		monitoring.New(conf.Relay.Monitoring, conf.Relay.Tag, log))
	return r, nil
}

func (r *Relay) Start() { r.services.Start() }

func (r *Relay) Stop(ctx context.Context) error { return r.services.Shutdown(ctx) }
