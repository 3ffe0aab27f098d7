package playback

import (
	"sync"
	"time"

	"github.com/roomcast/roomcast/pkg/api"
)

// MemoryPlayer simulates playback with wall-clock position tracking.
// The headless client uses it in place of a browser player.
type MemoryPlayer struct {
	mu      sync.Mutex
	state   api.PlayerState
	videoId string
	base    float64
	mark    time.Time
	now     func() time.Time
}

func NewMemoryPlayer() *MemoryPlayer {
	return &MemoryPlayer{state: api.Cued, now: time.Now}
}

func (p *MemoryPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == api.Playing {
		return
	}
	p.base = p.positionLocked()
	p.mark = p.now()
	p.state = api.Playing
}

func (p *MemoryPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.positionLocked()
	p.state = api.Paused
}

func (p *MemoryPlayer) SeekTo(pos float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = pos
	p.mark = p.now()
}

func (p *MemoryPlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *MemoryPlayer) Load(videoId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.videoId = videoId
	p.base = 0
	p.state = api.Cued
}

func (p *MemoryPlayer) State() api.PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *MemoryPlayer) VideoId() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.videoId
}

func (p *MemoryPlayer) positionLocked() float64 {
	if p.state != api.Playing {
		return p.base
	}
	return p.base + p.now().Sub(p.mark).Seconds()
}
