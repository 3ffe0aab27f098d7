package api

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestPacketRoundTrip(t *testing.T) {
	// a 3xx code exercises the full width of the type tag
	out := Out{T: ChatMessage, Payload: ChatMessageNotice{Username: "u", Text: "hi", Timestamp: "12:00"}}
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var in In
	if err = json.Unmarshal(raw, &in); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if in.T != ChatMessage {
		t.Fatalf("expected type %v, got %v", ChatMessage, in.T)
	}
	msg := Unwrap[ChatMessageNotice](in.Payload)
	if msg == nil || msg.Text != "hi" || msg.Username != "u" {
		t.Errorf("wrong payload: %+v", msg)
	}
}

func TestUnwrapMalformed(t *testing.T) {
	if out := Unwrap[JoinRoomRequest]([]byte(`{broken`)); out != nil {
		t.Errorf("expected nil for malformed data, got %+v", out)
	}
}

func TestTypeClasses(t *testing.T) {
	for _, pt := range []PT{Offer, Answer, IceCandidate} {
		if !pt.Directed() || pt.Broadcast() {
			t.Errorf("%v must be directed only", pt)
		}
	}
	for _, pt := range []PT{VideoState, ChatMessage} {
		if !pt.Broadcast() || pt.Directed() {
			t.Errorf("%v must be broadcast only", pt)
		}
	}
	for _, pt := range []PT{JoinRoom, RoomUsers, UserJoined, UserLeft} {
		if pt.Directed() || pt.Broadcast() {
			t.Errorf("%v is a membership packet, neither directed nor broadcast", pt)
		}
	}
}
