package party

import (
	"math/rand"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	pion "github.com/pion/webrtc/v3"
	"github.com/roomcast/roomcast/pkg/api"
	"github.com/roomcast/roomcast/pkg/com"
	"github.com/roomcast/roomcast/pkg/config"
	"github.com/roomcast/roomcast/pkg/logger"
	"github.com/roomcast/roomcast/pkg/playback"
	"github.com/roomcast/roomcast/pkg/webrtc"
)

// Session is one participant of a room: the relay socket, the mesh of
// peer links keyed by remote id, and the playback reconciliation.
//
// Peers found in the member snapshot at join time will offer to us,
// peers that join later get offered to. Directed signaling goes over
// the socket; state updates ride the data channels too, the socket
// stays the reliable path.
type Session struct {
	conf    config.Party
	room    string
	sock    *com.SocketClient
	factory *webrtc.ApiFactory
	links   com.Map[string, *Link]

	rec  *playback.Reconciler
	emit *playback.Emitter

	OnChat func(api.ChatMessageNotice)

	log *logger.Logger
}

func NewSession(conf config.PartyConfig, player playback.Player, log *logger.Logger) (*Session, error) {
	factory, err := webrtc.NewApiFactory(conf.Webrtc, log, nil)
	if err != nil {
		return nil, err
	}
	room := conf.Party.Room
	if room == "" {
		room = GenerateRoomId()
	}
	s := &Session{
		conf:    conf.Party,
		room:    room,
		factory: factory,
		links:   com.NewMap[string, *Link](),
		log:     log,
	}
	s.rec = playback.NewReconciler(player, conf.Party.Playback, log)
	s.emit = playback.NewEmitter(conf.Party.Playback.EmitInterval, s.rec.Guarded, s.sendState)
	return s, nil
}

func (s *Session) Room() string { return s.room }

// Connect dials the relay, joins the room, and returns a channel
// closed when the socket dies.
func (s *Session) Connect() (chan struct{}, error) {
	scheme := "ws"
	if s.conf.Secure {
		scheme = "wss"
	}
	addr := url.URL{
		Scheme:   scheme,
		Host:     s.conf.RelayAddress,
		Path:     "/ws",
		RawQuery: url.Values{"name": {s.conf.Name}}.Encode(),
	}
	sock, err := com.NewConnector(com.WithTag("party")).NewClient(addr, s.log)
	if err != nil {
		return nil, err
	}
	s.sock = sock
	sock.OnPacket(s.route)
	done := sock.Listen()
	sock.Notify(api.JoinRoom, api.JoinRoomRequest{RoomId: s.room})
	s.log.Info().Str("room", s.room).Msg("joined")
	return done, nil
}

func (s *Session) Disconnect() {
	s.links.ForEach(func(l *Link) { l.Close() })
	if s.sock != nil {
		s.sock.Disconnect()
	}
}

func (s *Session) route(in api.In) {
	switch in.T {
	case api.RoomUsers:
		if users := api.Unwrap[api.RoomUsersNotice](in.Payload); users != nil {
			// they were here first, they will offer to us
			for _, u := range users.Users {
				s.ensureLink(u, false)
			}
		}
	case api.UserJoined:
		if n := api.Unwrap[api.UserJoinedNotice](in.Payload); n != nil {
			s.ensureLink(n.User, true)
		}
	case api.UserLeft:
		if n := api.Unwrap[api.UserLeftNotice](in.Payload); n != nil {
			if l, err := s.links.Find(n.User); err == nil {
				l.Close()
			}
			s.links.RemoveByKey(n.User)
		}
	case api.Offer:
		s.onOffer(in.Payload)
	case api.Answer:
		s.onAnswer(in.Payload)
	case api.IceCandidate:
		s.onCandidate(in.Payload)
	case api.VideoState:
		if u := api.Unwrap[api.VideoStateUpdate](in.Payload); u != nil {
			s.rec.Apply(*u)
		}
	case api.ChatMessage:
		if n := api.Unwrap[api.ChatMessageNotice](in.Payload); n != nil && s.OnChat != nil {
			s.OnChat(*n)
		}
	default:
		s.log.Warn().Msgf("unhandled packet %v", in.T)
	}
}

func (s *Session) onOffer(payload json.RawMessage) {
	sig := api.Unwrap[api.Signal](payload)
	if sig == nil || sig.Sender == "" {
		return
	}
	var sdp pion.SessionDescription
	if err := json.Unmarshal(sig.Data, &sdp); err != nil {
		s.log.Error().Err(err).Msg("malformed offer")
		return
	}
	l := s.ensureLink(sig.Sender, false)
	if l == nil {
		return
	}
	if err := l.HandleOffer(sdp); err != nil {
		s.log.Error().Err(err).Str("peer", sig.Sender).Msg("offer rejected")
	}
}

func (s *Session) onAnswer(payload json.RawMessage) {
	sig := api.Unwrap[api.Signal](payload)
	if sig == nil {
		return
	}
	l, err := s.links.Find(sig.Sender)
	if err != nil {
		return
	}
	var sdp pion.SessionDescription
	if err := json.Unmarshal(sig.Data, &sdp); err != nil {
		s.log.Error().Err(err).Msg("malformed answer")
		return
	}
	if err := l.HandleAnswer(sdp); err != nil {
		s.log.Error().Err(err).Str("peer", sig.Sender).Msg("answer rejected")
	}
}

func (s *Session) onCandidate(payload json.RawMessage) {
	sig := api.Unwrap[api.Signal](payload)
	if sig == nil || sig.Sender == "" {
		return
	}
	var c pion.ICECandidateInit
	if err := json.Unmarshal(sig.Data, &c); err != nil {
		s.log.Error().Err(err).Msg("malformed candidate")
		return
	}
	// a candidate may outrun the offer, the link queues it then
	l := s.ensureLink(sig.Sender, false)
	if l == nil {
		return
	}
	if err := l.AddRemoteCandidate(c); err != nil {
		s.log.Error().Err(err).Str("peer", sig.Sender).Msg("candidate rejected")
	}
}

// ensureLink returns the link of the remote peer, creating one in the
// requested role when it doesn't exist yet.
func (s *Session) ensureLink(remoteId string, initiator bool) *Link {
	if l, err := s.links.Find(remoteId); err == nil {
		return l
	}
	l, err := NewLink(
		remoteId, initiator, s.factory, s.conf.NegotiationTimeout,
		s.sendSignal, s.onChannelMessage, s.onLinkState, s.log,
	)
	if err != nil {
		s.log.Error().Err(err).Str("peer", remoteId).Msg("couldn't create a peer link")
		return nil
	}
	s.links.Put(remoteId, l)
	return l
}

func (s *Session) sendSignal(t api.PT, target string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.log.Error().Err(err).Msg("couldn't encode a signal")
		return
	}
	s.sock.Notify(t, api.Signal{Target: target, Data: raw})
}

// onChannelMessage handles the data channel fast path. Only state
// updates ride it, their application is idempotent either way.
func (s *Session) onChannelMessage(remoteId string, data []byte) {
	var in api.In
	if err := json.Unmarshal(data, &in); err != nil {
		return
	}
	if in.T == api.VideoState {
		if u := api.Unwrap[api.VideoStateUpdate](in.Payload); u != nil {
			s.rec.Apply(*u)
		}
	}
}

// onLinkState drops links that reached a terminal state.
func (s *Session) onLinkState(remoteId string, state LinkState) {
	if state.Terminal() {
		s.links.RemoveByKey(remoteId)
		s.log.Info().Str("peer", remoteId).Msgf("link released (%v)", state)
	}
}

// SendChat always goes through the socket, the reliable path.
func (s *Session) SendChat(text string) {
	s.sock.Notify(api.ChatMessage, api.ChatMessageNotice{
		Username:  s.conf.Name,
		Text:      text,
		Timestamp: time.Now().Format("15:04"),
	})
}

// OnPlayerEvent feeds a local player state change into the throttle.
func (s *Session) OnPlayerEvent(state api.PlayerState, pos float64, videoId string) {
	s.emit.OnStateChange(state, pos, videoId)
}

// sendState publishes the update on the socket and, best effort, on
// every open data channel.
func (s *Session) sendState(u api.VideoStateUpdate) {
	s.sock.Notify(api.VideoState, u)
	if raw, err := json.Marshal(api.Out{T: api.VideoState, Payload: u}); err == nil {
		s.links.ForEach(func(l *Link) { l.Send(raw) })
	}
}

const roomAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateRoomId makes a random room identifier of the
// room-xxxxxxxxx form with a lowercase base36 suffix.
func GenerateRoomId() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = roomAlphabet[rand.Intn(len(roomAlphabet))]
	}
	return "room-" + string(suffix)
}
