package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/roomcast/roomcast/pkg/api"
	"github.com/roomcast/roomcast/pkg/config"
	"github.com/roomcast/roomcast/pkg/logger"
)

type fakePlayer struct {
	state   api.PlayerState
	pos     float64
	videoId string
	calls   []string
}

func (p *fakePlayer) Play()                  { p.state = api.Playing; p.calls = append(p.calls, "play") }
func (p *fakePlayer) Pause()                 { p.state = api.Paused; p.calls = append(p.calls, "pause") }
func (p *fakePlayer) SeekTo(pos float64)     { p.pos = pos; p.calls = append(p.calls, "seek") }
func (p *fakePlayer) CurrentTime() float64   { return p.pos }
func (p *fakePlayer) Load(v string)          { p.videoId = v; p.state = api.Cued; p.calls = append(p.calls, "load") }
func (p *fakePlayer) State() api.PlayerState { return p.state }
func (p *fakePlayer) VideoId() string        { return p.videoId }

func testConf() config.Playback {
	return config.Playback{
		DriftThreshold: 1.0,
		GuardWindow:    500 * time.Millisecond,
		EmitInterval:   100 * time.Millisecond,
	}
}

func TestReconcileSeekThenPlay(t *testing.T) {
	p := &fakePlayer{state: api.Paused, pos: 10.0, videoId: "v"}
	r := NewReconciler(p, testConf(), logger.Default())

	r.Apply(api.VideoStateUpdate{State: api.Playing, Position: 15.2, VideoId: "v"})

	if len(p.calls) != 2 || p.calls[0] != "seek" || p.calls[1] != "play" {
		t.Fatalf("expected [seek play], got %v", p.calls)
	}
	if p.pos != 15.2 {
		t.Errorf("expected position 15.2, got %v", p.pos)
	}

	// the retransmit of the same state must be a no-op
	p.calls = nil
	r.Apply(api.VideoStateUpdate{State: api.Playing, Position: 15.2, VideoId: "v"})
	if len(p.calls) != 0 {
		t.Errorf("expected no calls on the retransmit, got %v", p.calls)
	}
}

func TestReconcileWithinDrift(t *testing.T) {
	p := &fakePlayer{state: api.Paused, pos: 20.0}
	r := NewReconciler(p, testConf(), logger.Default())

	r.Apply(api.VideoStateUpdate{State: api.Playing, Position: 20.5})

	if len(p.calls) != 1 || p.calls[0] != "play" {
		t.Errorf("a 0.5s drift must not seek, got %v", p.calls)
	}
}

func TestReconcileIdempotentPause(t *testing.T) {
	p := &fakePlayer{state: api.Paused, pos: 5.0}
	r := NewReconciler(p, testConf(), logger.Default())

	r.Apply(api.VideoStateUpdate{State: api.Paused, Position: 5.0})

	if len(p.calls) != 0 {
		t.Errorf("pausing a paused player must be a no-op, got %v", p.calls)
	}
}

func TestReconcileCuedReloads(t *testing.T) {
	p := &fakePlayer{state: api.Playing, pos: 30.0, videoId: "old"}
	r := NewReconciler(p, testConf(), logger.Default())

	r.Apply(api.VideoStateUpdate{State: api.Cued, VideoId: "old"})
	if len(p.calls) != 0 {
		t.Fatalf("the same video must not reload, got %v", p.calls)
	}

	r.Apply(api.VideoStateUpdate{State: api.Cued, VideoId: "new"})
	if len(p.calls) != 1 || p.calls[0] != "load" {
		t.Fatalf("a different video must reload, got %v", p.calls)
	}
	if p.videoId != "new" {
		t.Errorf("expected video new, got %v", p.videoId)
	}
}

func TestReconcileGuardWindow(t *testing.T) {
	p := &fakePlayer{}
	r := NewReconciler(p, testConf(), logger.Default())
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	if r.Guarded() {
		t.Fatal("a fresh reconciler must not be guarded")
	}
	r.Apply(api.VideoStateUpdate{State: api.Playing, Position: 1})
	if !r.Guarded() {
		t.Error("an applied update must open the guard window")
	}
	now = now.Add(501 * time.Millisecond)
	if r.Guarded() {
		t.Error("the guard window must lapse")
	}
}

func TestEmitterSuppressesEcho(t *testing.T) {
	p := &fakePlayer{}
	r := NewReconciler(p, testConf(), logger.Default())
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	var sent []api.VideoStateUpdate
	e := NewEmitter(100*time.Millisecond, r.Guarded, func(u api.VideoStateUpdate) { sent = append(sent, u) })
	e.now = r.now

	r.Apply(api.VideoStateUpdate{State: api.Playing, Position: 15.2, VideoId: "v"})
	// the local player reacts to the programmatic play
	e.OnStateChange(api.Playing, 15.2, "v")
	if len(sent) != 0 {
		t.Fatalf("the echoed transition must be suppressed, got %v", sent)
	}

	now = now.Add(time.Second)
	e.OnStateChange(api.Paused, 16.0, "v")
	if len(sent) != 1 {
		t.Errorf("a genuine transition after the window must pass, got %v", len(sent))
	}
}

func TestEmitterThrottle(t *testing.T) {
	now := time.Unix(1000, 0)
	var sent []api.VideoStateUpdate
	e := NewEmitter(100*time.Millisecond, nil, func(u api.VideoStateUpdate) { sent = append(sent, u) })
	e.now = func() time.Time { return now }

	// ten rapid toggles within 50ms
	states := []api.PlayerState{api.Playing, api.Paused}
	for i := 0; i < 10; i++ {
		e.OnStateChange(states[i%2], float64(i), "v")
		now = now.Add(5 * time.Millisecond)
	}
	if len(sent) != 1 {
		t.Errorf("expected at most one emission in 50ms, got %v", len(sent))
	}
}

func TestEmitterTransitionsOnly(t *testing.T) {
	now := time.Unix(1000, 0)
	var sent []api.VideoStateUpdate
	e := NewEmitter(100*time.Millisecond, nil, func(u api.VideoStateUpdate) { sent = append(sent, u) })
	e.now = func() time.Time { return now }

	// periodic ticks of an already-playing player
	for i := 0; i < 5; i++ {
		e.OnStateChange(api.Playing, float64(i), "v")
		now = now.Add(time.Second)
	}
	if len(sent) != 1 {
		t.Fatalf("only the first transition emits, got %v", len(sent))
	}

	e.OnStateChange(api.Cued, 0, "v2")
	if len(sent) != 1 {
		t.Errorf("cued must never emit, got %v", len(sent))
	}
}

func TestReconcilerConcurrentUpdates(t *testing.T) {
	p := NewMemoryPlayer()
	r := NewReconciler(p, testConf(), logger.Default())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(pos float64) {
			defer wg.Done()
			r.Apply(api.VideoStateUpdate{State: api.Playing, Position: pos, VideoId: "v"})
		}(float64(i * 10))
		go func() {
			defer wg.Done()
			_ = r.Guarded()
		}()
	}
	wg.Wait()

	if !r.Guarded() {
		t.Error("the guard window must be open right after the last update")
	}
	if p.State() != api.Playing {
		t.Errorf("expected PLAYING, got %v", p.State())
	}
}

func TestEmitterConcurrentEvents(t *testing.T) {
	var mu sync.Mutex
	var sent int
	e := NewEmitter(100*time.Millisecond, nil, func(api.VideoStateUpdate) {
		mu.Lock()
		sent++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.OnStateChange(api.Playing, 1.0, "v")
		}()
	}
	wg.Wait()

	if sent != 1 {
		t.Errorf("simultaneous identical transitions must emit once, got %v", sent)
	}
}

func TestMemoryPlayerClock(t *testing.T) {
	p := NewMemoryPlayer()
	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }

	p.Load("v")
	p.Play()
	now = now.Add(3 * time.Second)
	if got := p.CurrentTime(); got != 3.0 {
		t.Errorf("expected 3.0, got %v", got)
	}
	p.Pause()
	now = now.Add(5 * time.Second)
	if got := p.CurrentTime(); got != 3.0 {
		t.Errorf("a paused player must hold its position, got %v", got)
	}
	p.SeekTo(10)
	p.Play()
	now = now.Add(2 * time.Second)
	if got := p.CurrentTime(); got != 12.0 {
		t.Errorf("expected 12.0, got %v", got)
	}
}
