// Package api defines the wire API between watch-together clients and the relay.
//
// Each message is a JSON-encoded "packet" of the following structure:
//
//	id - (optional) a globally unique packet id;
//	 t - (required) one of the predefined unique packet types;
//	 p - (optional) packet payload with arbitrary data.
//
// Packets differentiate by their predefined types with which it is possible
// to unwrap the payload into distinct request/response data structures.
// The payload of the directed signaling packets (offer, answer, ICE) is an
// opaque blob: the relay attaches the sender id and passes it through unchanged.
package api

import (
	"github.com/goccy/go-json"
)

// PT is the packet type tag, wide enough for the 3xx code block.
type PT uint16

type In struct {
	Id      string          `json:"id,omitempty"`
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"` // 2-pass unmarshal
}

type Out struct {
	Id      string `json:"id,omitempty"`
	T       PT     `json:"t"`
	Payload any    `json:"p,omitempty"`
}

// Packet codes:
//
//	1xx - room membership
//	2xx - directed signaling
//	3xx - room broadcasts
const (
	JoinRoom     PT = 101
	RoomUsers    PT = 102
	UserJoined   PT = 103
	UserLeft     PT = 104
	Offer        PT = 201
	Answer       PT = 202
	IceCandidate PT = 203
	VideoState   PT = 301
	ChatMessage  PT = 302
)

func (p PT) String() string {
	switch p {
	case JoinRoom:
		return "JoinRoom"
	case RoomUsers:
		return "RoomUsers"
	case UserJoined:
		return "UserJoined"
	case UserLeft:
		return "UserLeft"
	case Offer:
		return "Offer"
	case Answer:
		return "Answer"
	case IceCandidate:
		return "IceCandidate"
	case VideoState:
		return "VideoState"
	case ChatMessage:
		return "ChatMessage"
	default:
		return "Unknown"
	}
}

// Directed reports whether the packet type is delivered
// to exactly one target connection.
func (p PT) Directed() bool { return p == Offer || p == Answer || p == IceCandidate }

// Broadcast reports whether the packet type is delivered
// to the whole room excluding the sender.
func (p PT) Broadcast() bool { return p == VideoState || p == ChatMessage }

type JoinRoomRequest struct {
	RoomId string `json:"room_id"`
}

// RoomUsersNotice carries the member snapshot sent to a joiner,
// in arrival order, the joiner excluded.
type RoomUsersNotice struct {
	Users []string `json:"users"`
}

type UserJoinedNotice struct {
	User string `json:"user"`
}

type UserLeftNotice struct {
	User string `json:"user"`
}

// Signal is the envelope of the directed signaling packets.
// Data stays opaque for the relay.
type Signal struct {
	Target string          `json:"target,omitempty"`
	Sender string          `json:"sender,omitempty"`
	Data   json.RawMessage `json:"data"`
}

type PlayerState string

const (
	Playing PlayerState = "PLAYING"
	Paused  PlayerState = "PAUSED"
	Cued    PlayerState = "CUED"
)

type VideoStateUpdate struct {
	State    PlayerState `json:"state"`
	Position float64     `json:"position"`
	VideoId  string      `json:"video_id"`
	Sender   string      `json:"sender,omitempty"`
}

type ChatMessageNotice struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender,omitempty"`
}

func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}
