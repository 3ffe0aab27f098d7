package party

import (
	"sync"
	"time"

	pion "github.com/pion/webrtc/v3"
	"github.com/roomcast/roomcast/pkg/api"
	"github.com/roomcast/roomcast/pkg/logger"
	"github.com/roomcast/roomcast/pkg/webrtc"
)

type LinkState int

const (
	LinkIdle LinkState = iota
	LinkNegotiating
	LinkConnected
	LinkDisconnected
	LinkFailed
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkIdle:
		return "idle"
	case LinkNegotiating:
		return "negotiating"
	case LinkConnected:
		return "connected"
	case LinkDisconnected:
		return "disconnected"
	case LinkFailed:
		return "failed"
	case LinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s LinkState) Terminal() bool { return s == LinkFailed || s == LinkClosed }

// SignalSender delivers a directed signaling payload to one remote peer.
type SignalSender func(t api.PT, target string, data any)

// Link is one peer connection of the mesh with its negotiation state.
//
// Candidates that arrive before the remote description are queued and
// applied once it is set. A negotiation-needed event while an offer is
// already in flight is coalesced into a single renegotiation. A link
// that does not connect within the timeout fails instead of leaking.
type Link struct {
	remoteId string
	pc       *pion.PeerConnection
	log      *logger.Logger

	mu          sync.Mutex
	state       LinkState
	dc          *pion.DataChannel
	pending     []pion.ICECandidateInit
	remoteSet   bool
	negotiating bool
	renegotiate bool
	timer       *time.Timer

	timeout   time.Duration
	send      SignalSender
	onMessage func(remoteId string, data []byte)
	onState   func(remoteId string, s LinkState)
}

func NewLink(
	remoteId string,
	initiator bool,
	factory *webrtc.ApiFactory,
	timeout time.Duration,
	send SignalSender,
	onMessage func(remoteId string, data []byte),
	onState func(remoteId string, s LinkState),
	log *logger.Logger,
) (*Link, error) {
	pc, err := factory.NewPeer()
	if err != nil {
		return nil, err
	}
	l := &Link{
		remoteId:  remoteId,
		pc:        pc,
		timeout:   timeout,
		send:      send,
		onMessage: onMessage,
		onState:   onState,
		log:       log.Extend(log.With().Str("peer", remoteId)),
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		l.send(api.IceCandidate, l.remoteId, c.ToJSON())
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		l.log.Debug().Msgf("transport %v", state)
		switch state {
		case pion.PeerConnectionStateConnected:
			l.connected()
		case pion.PeerConnectionStateDisconnected:
			l.setState(LinkDisconnected)
		case pion.PeerConnectionStateFailed:
			l.fail()
		case pion.PeerConnectionStateClosed:
			l.setState(LinkClosed)
		}
	})

	if initiator {
		dc, err := pc.CreateDataChannel("sync", nil)
		if err != nil {
			_ = pc.Close()
			return nil, err
		}
		l.attachChannel(dc)
		pc.OnNegotiationNeeded(l.negotiate)
	} else {
		pc.OnDataChannel(l.attachChannel)
	}
	return l, nil
}

func (l *Link) RemoteId() string { return l.remoteId }

func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// negotiate produces one offer. If called again while an offer is in
// flight, the call is folded into a renegotiation after the answer.
func (l *Link) negotiate() {
	l.mu.Lock()
	if l.state.Terminal() {
		l.mu.Unlock()
		return
	}
	if l.negotiating {
		l.renegotiate = true
		l.mu.Unlock()
		return
	}
	l.negotiating = true
	l.toStateLocked(LinkNegotiating)
	l.armTimerLocked()
	l.mu.Unlock()

	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		l.log.Error().Err(err).Msg("offer failed")
		l.fail()
		return
	}
	if err = l.pc.SetLocalDescription(offer); err != nil {
		l.log.Error().Err(err).Msg("local description failed")
		l.fail()
		return
	}
	l.send(api.Offer, l.remoteId, offer)
}

// HandleOffer runs the responder path: apply the remote description,
// flush queued candidates, answer back.
func (l *Link) HandleOffer(sdp pion.SessionDescription) error {
	l.mu.Lock()
	if l.state.Terminal() {
		l.mu.Unlock()
		return nil
	}
	l.toStateLocked(LinkNegotiating)
	l.armTimerLocked()
	l.mu.Unlock()

	if err := l.pc.SetRemoteDescription(sdp); err != nil {
		l.fail()
		return err
	}
	l.flushCandidates()
	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		l.fail()
		return err
	}
	if err = l.pc.SetLocalDescription(answer); err != nil {
		l.fail()
		return err
	}
	l.send(api.Answer, l.remoteId, answer)
	return nil
}

func (l *Link) HandleAnswer(sdp pion.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(sdp); err != nil {
		l.fail()
		return err
	}
	l.flushCandidates()

	l.mu.Lock()
	l.negotiating = false
	again := l.renegotiate
	l.renegotiate = false
	l.mu.Unlock()
	if again {
		go l.negotiate()
	}
	return nil
}

// AddRemoteCandidate queues the candidate until the remote
// description is known, otherwise applies it right away.
func (l *Link) AddRemoteCandidate(c pion.ICECandidateInit) error {
	l.mu.Lock()
	if !l.remoteSet {
		l.pending = append(l.pending, c)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()
	return l.pc.AddICECandidate(c)
}

func (l *Link) flushCandidates() {
	l.mu.Lock()
	l.remoteSet = true
	queued := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, c := range queued {
		if err := l.pc.AddICECandidate(c); err != nil {
			l.log.Error().Err(err).Msg("couldn't apply a queued candidate")
		}
	}
}

// Send pushes bytes down the data channel, best effort.
func (l *Link) Send(data []byte) bool {
	l.mu.Lock()
	dc := l.dc
	l.mu.Unlock()
	if dc == nil || dc.ReadyState() != pion.DataChannelStateOpen {
		return false
	}
	return dc.Send(data) == nil
}

func (l *Link) Close() {
	l.setState(LinkClosed)
	l.release()
}

func (l *Link) attachChannel(dc *pion.DataChannel) {
	l.mu.Lock()
	l.dc = dc
	l.mu.Unlock()
	dc.OnMessage(func(m pion.DataChannelMessage) {
		if l.onMessage != nil {
			l.onMessage(l.remoteId, m.Data)
		}
	})
}

func (l *Link) connected() {
	l.mu.Lock()
	l.negotiating = false
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.toStateLocked(LinkConnected)
	l.mu.Unlock()
}

func (l *Link) fail() {
	l.setState(LinkFailed)
	l.release()
}

func (l *Link) release() {
	l.mu.Lock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.mu.Unlock()
	if err := l.pc.Close(); err != nil {
		l.log.Error().Err(err).Msg("peer close")
	}
}

func (l *Link) setState(s LinkState) {
	l.mu.Lock()
	l.toStateLocked(s)
	l.mu.Unlock()
}

func (l *Link) toStateLocked(s LinkState) {
	if l.state.Terminal() || l.state == s {
		return
	}
	l.state = s
	l.log.Debug().Msgf("link %v", s)
	if l.onState != nil {
		go l.onState(l.remoteId, s)
	}
}

func (l *Link) armTimerLocked() {
	if l.timeout <= 0 || l.timer != nil {
		return
	}
	l.timer = time.AfterFunc(l.timeout, func() {
		if l.State() != LinkConnected {
			l.log.Warn().Msgf("negotiation timed out after %v", l.timeout)
			l.fail()
		}
	})
}
