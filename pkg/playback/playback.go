// Package playback reconciles a local video player against remote
// state updates and throttles the states the local player emits back.
package playback

import (
	"math"
	"sync"
	"time"

	"github.com/roomcast/roomcast/pkg/api"
	"github.com/roomcast/roomcast/pkg/config"
	"github.com/roomcast/roomcast/pkg/logger"
)

// Player is the local playback collaborator. The real one lives in
// the browser; the headless client ships an in-memory simulation.
type Player interface {
	Play()
	Pause()
	SeekTo(pos float64)
	CurrentTime() float64
	Load(videoId string)
	State() api.PlayerState
	VideoId() string
}

// Reconciler applies remote state updates to the local player.
// Each applied update opens a guard window during which locally
// generated state changes are treated as echo and suppressed.
//
// Updates arrive concurrently from the socket reader and from data
// channel callbacks, so the guard deadline and the player call
// sequence sit behind one mutex.
type Reconciler struct {
	player Player
	conf   config.Playback

	mu         sync.Mutex
	guardUntil time.Time
	now        func() time.Time

	log *logger.Logger
}

func NewReconciler(player Player, conf config.Playback, log *logger.Logger) *Reconciler {
	if conf.DriftThreshold <= 0 {
		conf.DriftThreshold = 1.0
	}
	return &Reconciler{player: player, conf: conf, now: time.Now, log: log}
}

// Apply reconciles one remote update:
// seek when the positions drifted apart, then play or pause only
// when the player is not in that state already. A cued update
// reloads the video only when the video id differs.
func (r *Reconciler) Apply(u api.VideoStateUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guardUntil = r.now().Add(r.conf.GuardWindow)

	if u.State == api.Cued {
		if r.player.VideoId() != u.VideoId {
			r.log.Debug().Str("video", u.VideoId).Msg("reload")
			r.player.Load(u.VideoId)
		}
		return
	}

	if math.Abs(r.player.CurrentTime()-u.Position) > r.conf.DriftThreshold {
		r.log.Debug().Float64("pos", u.Position).Msg("seek")
		r.player.SeekTo(u.Position)
	}

	switch u.State {
	case api.Playing:
		if r.player.State() != api.Playing {
			r.player.Play()
		}
	case api.Paused:
		if r.player.State() != api.Paused {
			r.player.Pause()
		}
	}
}

// Guarded reports whether a local state change falls into the echo
// suppression window of a recently applied remote update.
func (r *Reconciler) Guarded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now().Before(r.guardUntil)
}

// Emitter rate-limits outgoing state updates. Only transitions into
// PLAYING or PAUSED leave the process, never periodic player ticks.
type Emitter struct {
	interval time.Duration
	guard    func() bool
	send     func(api.VideoStateUpdate)

	mu        sync.Mutex
	last      time.Time
	lastState api.PlayerState
	now       func() time.Time
}

func NewEmitter(interval time.Duration, guard func() bool, send func(api.VideoStateUpdate)) *Emitter {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Emitter{interval: interval, guard: guard, send: send, now: time.Now}
}

// OnStateChange feeds one local player event into the emitter.
// It reports whether an update was actually sent.
func (e *Emitter) OnStateChange(state api.PlayerState, pos float64, videoId string) bool {
	if state != api.Playing && state != api.Paused {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if state == e.lastState {
		return false
	}
	if e.guard != nil && e.guard() {
		e.lastState = state
		return false
	}
	now := e.now()
	if !e.last.IsZero() && now.Sub(e.last) < e.interval {
		return false
	}
	e.last = now
	e.lastState = state
	e.send(api.VideoStateUpdate{State: state, Position: pos, VideoId: videoId})
	return true
}
