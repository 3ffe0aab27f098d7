package relay

import (
	"net/http"

	"github.com/roomcast/roomcast/pkg/api"
	"github.com/roomcast/roomcast/pkg/com"
	"github.com/roomcast/roomcast/pkg/config"
	"github.com/roomcast/roomcast/pkg/logger"
)

// Conn is what the hub needs from a member connection.
type Conn interface {
	Id() string
	Name() string
	Notify(t api.PT, data any)
	Disconnect()
}

// NameResolver maps an auth token to a display name.
type NameResolver func(token string) (name string, ok bool)

// Hub accepts websocket connections and routes their packets:
// registry operations for join, directed delivery for the signaling
// triple, room broadcast for state and chat.
type Hub struct {
	conf      config.Relay
	log       *logger.Logger
	connector *com.Connector
	registry  *Registry
	users     com.NetMap[string, Conn]
	resolve   NameResolver
	metrics   *Metrics
}

func NewHub(conf config.Relay, resolve NameResolver, log *logger.Logger) *Hub {
	opts := []com.Option{com.WithTag(conf.Tag)}
	if conf.Origin != "" {
		opts = append(opts, com.WithOrigin(conf.Origin))
	}
	return &Hub{
		conf:      conf,
		log:       log,
		connector: com.NewConnector(opts...),
		registry:  NewRegistry(conf.Rooms.MaxMembers),
		users:     com.NewNetMap[string, Conn](),
		resolve:   resolve,
		metrics:   NewMetrics(),
	}
}

// handleUserConnection serves one websocket client from upgrade
// until disconnect. An abrupt drop is treated as an implicit leave.
func (h *Hub) handleUserConnection(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			h.log.Error().Msgf("recovered user connection handler from %v", err)
		}
	}()

	conn, err := h.connector.NewServer(w, r, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("couldn't init user connection")
		return
	}
	usr := NewUser(conn, h.userName(r))
	h.log.Info().Str("uid", usr.Id()).Str("name", usr.Name()).Msg("user connect")

	h.users.Add(usr)
	h.metrics.Connected()

	conn.OnPacket(func(in api.In) { h.route(usr, in) })
	done := conn.Listen()
	// the room query param works as an immediate join
	if roomId := r.URL.Query().Get("room"); roomId != "" {
		h.join(usr, roomId)
	}
	<-done

	h.drop(usr)
}

// drop finalizes a dead connection: implicit leave, user-left
// notification, connection map cleanup.
func (h *Hub) drop(usr Conn) {
	h.users.Remove(usr)
	h.metrics.Disconnected()
	roomId, left := h.registry.Leave(usr.Id())
	if left {
		h.notifyLeft(roomId, usr.Id())
	}
	h.metrics.Rooms(h.registry.Rooms())
	h.log.Info().Str("uid", usr.Id()).Msg("user disconnect")
}

func (h *Hub) notifyLeft(roomId string, id string) {
	for _, m := range h.registry.MembersExcluding(roomId, id) {
		if peer, err := h.users.Find(m); err == nil {
			peer.Notify(api.UserLeft, api.UserLeftNotice{User: id})
		}
	}
}

// userName resolves the chat display name: auth token first,
// explicit name param second, generated guest name otherwise.
func (h *Hub) userName(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" && h.resolve != nil {
		if name, ok := h.resolve(token); ok {
			return name
		}
	}
	if name := r.URL.Query().Get("name"); name != "" {
		return name
	}
	return "guest-" + com.NewUid().Short()
}
