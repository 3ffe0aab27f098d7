package relay

import (
	"time"

	"github.com/roomcast/roomcast/pkg/api"
)

// route dispatches one decoded packet. Malformed payloads and
// unknown targets are dropped, a misbehaving client must not be
// able to take the relay down or touch other sessions.
func (h *Hub) route(usr Conn, in api.In) {
	h.metrics.Relayed(in.T)
	switch {
	case in.T == api.JoinRoom:
		h.handleJoin(usr, in)
	case in.T.Directed():
		h.forward(usr, in)
	case in.T.Broadcast():
		if in.T == api.VideoState {
			h.broadcastVideoState(usr, in)
		} else {
			h.broadcastChat(usr, in)
		}
	default:
		h.log.Debug().Msgf("skip unknown packet %v from %v", in.T, usr.Id())
	}
}

func (h *Hub) handleJoin(usr Conn, in api.In) {
	rq := api.Unwrap[api.JoinRoomRequest](in.Payload)
	if rq == nil {
		h.log.Debug().Msgf("malformed join from %v", usr.Id())
		return
	}
	h.join(usr, rq.RoomId)
}

// join runs the registry op and emits the membership pair:
// the member snapshot to the joiner, user-joined to everyone else.
// A room switch also tells the old room that the member is gone.
func (h *Hub) join(usr Conn, roomId string) {
	others, prevRoom, err := h.registry.Join(usr.Id(), roomId)
	if err != nil {
		h.log.Debug().Err(err).Str("uid", usr.Id()).Str("room", roomId).Msg("join rejected")
		return
	}
	if prevRoom != "" {
		h.notifyLeft(prevRoom, usr.Id())
	}
	h.metrics.Rooms(h.registry.Rooms())
	h.log.Info().Str("uid", usr.Id()).Str("room", roomId).Msgf("join, %v peer(s) inside", len(others))

	usr.Notify(api.RoomUsers, api.RoomUsersNotice{Users: others})
	for _, m := range others {
		if peer, err := h.users.Find(m); err == nil {
			peer.Notify(api.UserJoined, api.UserJoinedNotice{User: usr.Id()})
		}
	}
}

// forward delivers a directed signaling packet to exactly one target.
// The payload blob is passed through untouched, only the sender id
// is attached. Directed packets are never rewritten into broadcasts.
func (h *Hub) forward(usr Conn, in api.In) {
	sig := api.Unwrap[api.Signal](in.Payload)
	if sig == nil || sig.Target == "" {
		h.log.Debug().Msgf("%v without a target from %v", in.T, usr.Id())
		return
	}
	if _, ok := h.registry.RoomOf(usr.Id()); !ok {
		h.log.Debug().Msgf("%v from a roomless sender %v", in.T, usr.Id())
		return
	}
	target, err := h.users.Find(sig.Target)
	if err != nil {
		h.log.Debug().Msgf("%v to unknown target %v", in.T, sig.Target)
		return
	}
	target.Notify(in.T, api.Signal{Sender: usr.Id(), Data: sig.Data})
}

func (h *Hub) broadcastVideoState(usr Conn, in api.In) {
	state := api.Unwrap[api.VideoStateUpdate](in.Payload)
	if state == nil {
		return
	}
	state.Sender = usr.Id()
	h.broadcast(usr, api.VideoState, *state)
}

func (h *Hub) broadcastChat(usr Conn, in api.In) {
	msg := api.Unwrap[api.ChatMessageNotice](in.Payload)
	if msg == nil {
		return
	}
	msg.Sender = usr.Id()
	if msg.Username == "" {
		msg.Username = usr.Name()
	}
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().Format("15:04")
	}
	h.broadcast(usr, api.ChatMessage, *msg)
}

// broadcast fans a packet out to every room member except the sender.
func (h *Hub) broadcast(usr Conn, t api.PT, data any) {
	roomId, ok := h.registry.RoomOf(usr.Id())
	if !ok {
		h.log.Debug().Msgf("%v from a roomless sender %v", t, usr.Id())
		return
	}
	for _, m := range h.registry.MembersExcluding(roomId, usr.Id()) {
		if peer, err := h.users.Find(m); err == nil {
			peer.Notify(t, data)
		}
	}
}
