package dashboard

import (
	"sync"
	"time"
)

// Trigger is one refresh request. Silent triggers (timer, liveness signals)
// must not toggle a visible loading indicator; foreground triggers do.
type Trigger struct {
	Source string
	Silent bool
}

// Well-known trigger sources.
const (
	SourceStart      = "start"
	SourceTimer      = "timer"
	SourceFocus      = "focus"
	SourceVisibility = "visibility"
	SourceOnline     = "online"
	SourceFilter     = "filter"
	SourceManual     = "manual"
	SourceResume     = "resume"
)

// Hub merges liveness signals and a fixed-interval timer into one debounced
// tick stream. Signals arriving within the debounce window collapse into a
// single tick; a burst containing any non-silent trigger emits non-silent.
// While inactive the hub swallows everything, so a backgrounded view causes
// no work.
type Hub struct {
	debounce time.Duration
	period   time.Duration

	mu     sync.Mutex
	active bool

	in      chan Trigger
	out     chan Trigger
	gate    chan bool
	stop    chan struct{}
	stopped bool
}

func NewHub(debounce, period time.Duration) *Hub {
	if debounce <= 0 {
		debounce = 120 * time.Millisecond
	}
	if period <= 0 {
		period = 20 * time.Second
	}
	return &Hub{
		debounce: debounce,
		period:   period,
		in:       make(chan Trigger, 16),
		out:      make(chan Trigger, 1),
		gate:     make(chan bool, 1),
		stop:     make(chan struct{}),
	}
}

// Start arms the timer and the merge loop. The hub starts active.
func (h *Hub) Start() {
	h.mu.Lock()
	h.active = true
	h.mu.Unlock()
	go h.run()
}

// Ticks is the unified debounced trigger stream. Closed on Stop.
func (h *Hub) Ticks() <-chan Trigger { return h.out }

// Notify feeds one liveness signal (focus, visibility, online) into the
// hub. Signals are silent; use Fire for foreground triggers.
func (h *Hub) Notify(source string) {
	h.send(Trigger{Source: source, Silent: true})
}

// Fire feeds a non-silent trigger into the hub.
func (h *Hub) Fire(source string) {
	h.send(Trigger{Source: source, Silent: false})
}

// AttachSource forwards an external event channel into the hub until the
// channel closes or the hub stops. This keeps the hub independent of any
// particular event system: callers adapt window focus, connectivity
// watchers or anything else to a plain channel.
func (h *Hub) AttachSource(name string, ch <-chan struct{}) {
	go func() {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
				h.Notify(name)
			case <-h.stop:
				return
			}
		}
	}()
}

// SetActive gates the hub. Inactive hubs drop all signals and pause the
// timer; reactivating restarts the timer at a full period.
func (h *Hub) SetActive(active bool) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.active = active
	h.mu.Unlock()
	select {
	case h.gate <- active:
	case <-h.stop:
	}
}

// Stop tears down the timer and the merge loop. Idempotent.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()
	close(h.stop)
}

func (h *Hub) isActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active && !h.stopped
}

func (h *Hub) send(t Trigger) {
	if !h.isActive() {
		return
	}
	select {
	case h.in <- t:
	case <-h.stop:
	}
}

func (h *Hub) run() {
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()
	defer close(h.out)

	var pending *Trigger
	var window *time.Timer
	var windowC <-chan time.Time

	merge := func(t Trigger) {
		if pending == nil {
			copied := t
			pending = &copied
			window = time.NewTimer(h.debounce)
			windowC = window.C
			return
		}
		if !t.Silent {
			pending.Silent = false
		}
	}

	for {
		select {
		case t := <-h.in:
			if !h.isActive() {
				continue
			}
			merge(t)
		case <-ticker.C:
			if !h.isActive() {
				continue
			}
			merge(Trigger{Source: SourceTimer, Silent: true})
		case active := <-h.gate:
			if active {
				ticker.Reset(h.period)
			} else {
				ticker.Stop()
				pending = nil
				if window != nil {
					window.Stop()
					windowC = nil
				}
			}
		case <-windowC:
			t := *pending
			pending = nil
			windowC = nil
			select {
			case h.out <- t:
			case <-h.stop:
				return
			}
		case <-h.stop:
			return
		}
	}
}
