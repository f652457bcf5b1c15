package app

import (
	"context"
	"time"

	"trivia-client/internal/domain"
)

// The countdown is a generation-guarded repeating clock: startTimerLocked
// resets the budget and spawns a goroutine bound to the current generation,
// and stopTimerLocked simply bumps the generation. A tick from a superseded
// generation is discarded before it touches any state, so cancellation is
// strict even when a tick and a stop race.

func (o *Orchestrator) startTimerLocked() {
	o.timerGen++
	o.remaining = o.cfg.QuestionSeconds
	go o.runCountdown(o.timerGen, o.cfg.TickInterval)
}

// stopTimerLocked is idempotent and safe from any state.
func (o *Orchestrator) stopTimerLocked() {
	o.timerGen++
}

func (o *Orchestrator) runCountdown(gen uint64, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		expired, live := o.tick(gen)
		if !live {
			return
		}
		if expired {
			o.autoSubmit(gen)
			return
		}
	}
}

// tick decrements the remaining budget once. It reports whether the budget
// just expired and whether this countdown generation is still live.
func (o *Orchestrator) tick(gen uint64) (expired, live bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.timerGen || o.state != domain.StatePlaying {
		return false, false
	}
	if o.remaining > 0 {
		o.remaining--
	}
	o.broadcastLocked()
	return o.remaining == 0, true
}

// autoSubmit is the expiry path: it submits whatever is selected (nil when
// the player never chose), with the full budget as time taken. It funnels
// through the same submitting-state guard as the manual path, so at most one
// submission per question ever leaves the orchestrator.
func (o *Orchestrator) autoSubmit(gen uint64) {
	o.mu.Lock()
	if gen != o.timerGen || o.state != domain.StatePlaying {
		o.mu.Unlock()
		return
	}
	req := o.beginSubmitLocked()
	o.broadcastLocked()
	o.mu.Unlock()

	// Detached from any presentation request: the expiry submission must
	// complete even if the triggering connection goes away.
	_ = o.finishSubmit(context.Background(), req)
}
