package party

import (
	"strings"
	"testing"
)

func TestGenerateRoomIdFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateRoomId()
		if !strings.HasPrefix(id, "room-") {
			t.Fatalf("bad prefix: %v", id)
		}
		suffix := strings.TrimPrefix(id, "room-")
		if len(suffix) != 9 {
			t.Fatalf("expected a 9 char suffix, got %v", id)
		}
		for _, c := range suffix {
			if !strings.ContainsRune(roomAlphabet, c) {
				t.Fatalf("suffix must be lowercase base36, got %v", id)
			}
		}
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Error("generated ids are suspiciously equal")
	}
}

func TestLinkStateTerminal(t *testing.T) {
	for s, terminal := range map[LinkState]bool{
		LinkIdle:         false,
		LinkNegotiating:  false,
		LinkConnected:    false,
		LinkDisconnected: false,
		LinkFailed:       true,
		LinkClosed:       true,
	} {
		if s.Terminal() != terminal {
			t.Errorf("%v: expected terminal=%v", s, terminal)
		}
	}
}

func TestLinkStateString(t *testing.T) {
	if LinkNegotiating.String() != "negotiating" || LinkState(42).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
