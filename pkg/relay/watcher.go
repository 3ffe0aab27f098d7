package relay

import (
	"context"
	"time"

	"github.com/roomcast/roomcast/pkg/logger"
)

// Watcher periodically sweeps registry entries whose connections
// died without the disconnect handler running to completion.
type Watcher struct {
	hub  *Hub
	t    *time.Ticker
	done chan struct{}
	log  *logger.Logger
}

func NewWatcher(p time.Duration, hub *Hub, log *logger.Logger) *Watcher {
	return &Watcher{
		hub:  hub,
		t:    time.NewTicker(p),
		done: make(chan struct{}),
		log:  log,
	}
}

func (w *Watcher) Run() {
	go func() {
		for {
			select {
			case <-w.t.C:
				n := w.hub.registry.Sweep(func(id string) bool { return w.hub.users.Has(id) })
				if n > 0 {
					w.hub.metrics.Rooms(w.hub.registry.Rooms())
					w.log.Warn().Msgf("Swept %v stale member(s)!", n)
				}
			case <-w.done:
				return
			}
		}
	}()
}

func (w *Watcher) Shutdown(context.Context) error {
	w.t.Stop()
	close(w.done)
	return nil
}

func (w *Watcher) String() string { return "watcher" }
