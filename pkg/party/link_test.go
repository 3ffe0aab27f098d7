package party

import (
	"testing"
	"time"

	pion "github.com/pion/webrtc/v3"
	"github.com/roomcast/roomcast/pkg/api"
	"github.com/roomcast/roomcast/pkg/config"
	"github.com/roomcast/roomcast/pkg/logger"
	"github.com/roomcast/roomcast/pkg/webrtc"
)

const waitFor = 5 * time.Second

// signalSink captures the outgoing directed signaling of one link.
type signalSink struct {
	offers  chan pion.SessionDescription
	answers chan pion.SessionDescription
}

func newSignalSink() *signalSink {
	return &signalSink{
		offers:  make(chan pion.SessionDescription, 4),
		answers: make(chan pion.SessionDescription, 4),
	}
}

func (s *signalSink) send(t api.PT, _ string, data any) {
	switch t {
	case api.Offer:
		s.offers <- data.(pion.SessionDescription)
	case api.Answer:
		s.answers <- data.(pion.SessionDescription)
	}
}

func testFactory(t *testing.T) *webrtc.ApiFactory {
	t.Helper()
	factory, err := webrtc.NewApiFactory(config.Webrtc{LogLevel: 5}, logger.Default(), nil)
	if err != nil {
		t.Fatalf("couldn't init the api factory: %v", err)
	}
	return factory
}

func awaitOffer(t *testing.T, sink *signalSink) pion.SessionDescription {
	t.Helper()
	select {
	case offer := <-sink.offers:
		return offer
	case <-time.After(waitFor):
		t.Fatal("no offer was produced")
		return pion.SessionDescription{}
	}
}

func TestLinkQueuesEarlyCandidates(t *testing.T) {
	factory := testFactory(t)
	aSink := newSignalSink()
	a, err := NewLink("b", true, factory, 0, aSink.send, nil, nil, logger.Default())
	if err != nil {
		t.Fatalf("initiator link failed: %v", err)
	}
	defer a.Close()
	offer := awaitOffer(t, aSink)

	bSink := newSignalSink()
	b, err := NewLink("a", false, factory, 0, bSink.send, nil, nil, logger.Default())
	if err != nil {
		t.Fatalf("responder link failed: %v", err)
	}
	defer b.Close()

	// candidates outrun the offer
	early := pion.ICECandidateInit{Candidate: "candidate:1 1 UDP 2122252543 127.0.0.1 54321 typ host"}
	if err = b.AddRemoteCandidate(early); err != nil {
		t.Fatalf("an early candidate must be queued, got %v", err)
	}
	b.mu.Lock()
	queued, set := len(b.pending), b.remoteSet
	b.mu.Unlock()
	if queued != 1 || set {
		t.Fatalf("expected 1 queued candidate before the description, got %v (set=%v)", queued, set)
	}

	if err = b.HandleOffer(offer); err != nil {
		t.Fatalf("offer handling failed: %v", err)
	}
	b.mu.Lock()
	queued, set = len(b.pending), b.remoteSet
	b.mu.Unlock()
	if queued != 0 || !set {
		t.Errorf("expected the queue flushed after the description, got %v (set=%v)", queued, set)
	}
	select {
	case <-bSink.answers:
	case <-time.After(waitFor):
		t.Fatal("no answer was produced")
	}
}

func TestLinkCoalescesNegotiations(t *testing.T) {
	factory := testFactory(t)
	sink := newSignalSink()
	a, err := NewLink("b", true, factory, 0, sink.send, nil, nil, logger.Default())
	if err != nil {
		t.Fatalf("initiator link failed: %v", err)
	}
	defer a.Close()
	awaitOffer(t, sink)

	// a negotiation-needed while an offer is in flight must fold
	a.negotiate()
	a.mu.Lock()
	folded := a.renegotiate
	a.mu.Unlock()
	if !folded {
		t.Error("the second negotiation must be marked for later")
	}
	select {
	case <-sink.offers:
		t.Error("no second offer may leave while one is in flight")
	case <-time.After(300 * time.Millisecond):
	}
	if a.State() != LinkNegotiating {
		t.Errorf("expected negotiating, got %v", a.State())
	}
}

func TestLinkNegotiationTimeout(t *testing.T) {
	factory := testFactory(t)
	sink := newSignalSink()
	states := make(chan LinkState, 8)
	a, err := NewLink("b", true, factory, 50*time.Millisecond, sink.send, nil,
		func(_ string, s LinkState) { states <- s }, logger.Default())
	if err != nil {
		t.Fatalf("initiator link failed: %v", err)
	}
	defer a.Close()
	awaitOffer(t, sink)

	// nobody ever answers
	deadline := time.After(waitFor)
	for {
		select {
		case s := <-states:
			if s == LinkFailed {
				if got := a.State(); got != LinkFailed {
					t.Errorf("expected failed, got %v", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("the link never gave up")
		}
	}
}
