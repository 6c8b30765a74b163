package gateway

import (
	"sync"
	"time"
)

// expireKind distinguishes which clock fired.
type expireKind int

const (
	expireIdle expireKind = iota
	expireHard
)

// timeoutController owns the two single-shot clocks of every session.
//
// The idle clock restarts from zero on every activity event. The hard clock
// counts from session creation and is never reset or extended. Firing calls
// onExpire outside the controller lock; the callback is responsible for
// checking that the session is still alive.
type timeoutController struct {
	idle     time.Duration
	hard     time.Duration
	onExpire func(id string, kind expireKind)

	mu     sync.Mutex
	timers map[string]*time.Timer // keyed "<id>:idle" / "<id>:hard"
	live   map[string]bool        // ids with clocks running; guards against reset-after-cancel
}

func newTimeoutController(idle, hard time.Duration, onExpire func(id string, kind expireKind)) *timeoutController {
	return &timeoutController{
		idle:     idle,
		hard:     hard,
		onExpire: onExpire,
		timers:   make(map[string]*time.Timer),
		live:     make(map[string]bool),
	}
}

// Start schedules both clocks for a session. At most one idle and one hard
// timer exist per session at any moment.
func (t *timeoutController) Start(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live[id] = true
	t.schedule(id, expireIdle, t.idle)
	t.schedule(id, expireHard, t.hard)
}

// ResetIdle cancels the running idle timer and schedules a fresh one of full
// duration. A reset after Cancel is a no-op — a fired or reaped session must
// not get its clock resurrected.
func (t *timeoutController) ResetIdle(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.live[id] {
		return
	}
	t.stop(id, expireIdle)
	t.schedule(id, expireIdle, t.idle)
}

// Cancel synchronously stops both clocks. Safe to call more than once.
func (t *timeoutController) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stop(id, expireIdle)
	t.stop(id, expireHard)
	delete(t.live, id)
}

// active returns the number of scheduled timers. Used by tests.
func (t *timeoutController) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// schedule must be called with t.mu held.
func (t *timeoutController) schedule(id string, kind expireKind, d time.Duration) {
	key := timerKey(id, kind)
	t.timers[key] = time.AfterFunc(d, func() {
		t.mu.Lock()
		// A concurrent Cancel may have won; the timer entry being gone means
		// this firing is stale.
		if _, ok := t.timers[key]; !ok {
			t.mu.Unlock()
			return
		}
		delete(t.timers, key)
		t.mu.Unlock()

		t.onExpire(id, kind)
	})
}

// stop must be called with t.mu held.
func (t *timeoutController) stop(id string, kind expireKind) {
	key := timerKey(id, kind)
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
}

func timerKey(id string, kind expireKind) string {
	if kind == expireHard {
		return id + ":hard"
	}
	return id + ":idle"
}
