// Package reveal simulates the incremental arrival of an already-known
// string: a prefix that grows one rune per tick plus a cursor blinking on a
// faster cadence. The animation is cancellable, and cancellation guarantees
// that no callback runs afterwards, so a stale completion can never land in a
// timeline that has already been replaced.
package reveal

import (
	"sync"
	"time"
)

const (
	// DefaultCharInterval matches the 30ms per-character cadence of the
	// original chat window.
	DefaultCharInterval = 30 * time.Millisecond
	// DefaultBlinkInterval matches the 500ms cursor blink.
	DefaultBlinkInterval = 500 * time.Millisecond
)

// TickFunc receives the revealed prefix so far and the cursor visibility.
type TickFunc func(prefix string, cursorVisible bool)

// Animator produces reveal animations on a fixed cadence. The zero value uses
// the default intervals.
type Animator struct {
	CharInterval  time.Duration
	BlinkInterval time.Duration
}

// Handle controls a single running animation.
type Handle struct {
	mu       sync.Mutex
	canceled bool
	done     bool
	stop     chan struct{}
}

// Start begins revealing text. onTick fires on every character advance and
// every cursor blink; onComplete fires exactly once when the full text has
// been revealed, with the cursor forced hidden. Either callback may be nil.
func (a *Animator) Start(text string, onTick TickFunc, onComplete func()) *Handle {
	charEvery := a.CharInterval
	if charEvery <= 0 {
		charEvery = DefaultCharInterval
	}
	blinkEvery := a.BlinkInterval
	if blinkEvery <= 0 {
		blinkEvery = DefaultBlinkInterval
	}

	h := &Handle{stop: make(chan struct{})}
	go h.run([]rune(text), charEvery, blinkEvery, onTick, onComplete)
	return h
}

func (h *Handle) run(runes []rune, charEvery, blinkEvery time.Duration, onTick TickFunc, onComplete func()) {
	chars := time.NewTicker(charEvery)
	defer chars.Stop()
	blink := time.NewTicker(blinkEvery)
	defer blink.Stop()

	idx := 0
	cursor := true

	for {
		select {
		case <-h.stop:
			return
		case <-blink.C:
			cursor = !cursor
			if !h.deliverTick(onTick, string(runes[:idx]), cursor) {
				return
			}
		case <-chars.C:
			if idx < len(runes) {
				idx++
			}
			finished := idx == len(runes)
			if finished {
				cursor = false
			}
			if !h.deliverTick(onTick, string(runes[:idx]), cursor) {
				return
			}
			if finished {
				h.deliverComplete(onComplete)
				return
			}
		}
	}
}

// deliverTick invokes onTick under the handle lock so that Cancel, which
// takes the same lock, cannot return while a callback is still running.
// It reports false once the animation is canceled.
func (h *Handle) deliverTick(onTick TickFunc, prefix string, cursor bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.canceled || h.done {
		return false
	}
	if onTick != nil {
		onTick(prefix, cursor)
	}
	return true
}

func (h *Handle) deliverComplete(onComplete func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.canceled || h.done {
		return
	}
	h.done = true
	if onComplete != nil {
		onComplete()
	}
}

// Cancel stops the animation immediately. After Cancel returns, no further
// onTick or onComplete call is made. Cancel is idempotent.
func (h *Handle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.canceled {
		return
	}
	h.canceled = true
	if !h.done {
		close(h.stop)
	}
}

// Done reports whether the animation ran to completion.
func (h *Handle) Done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}
