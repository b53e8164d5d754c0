package sequencer

import (
	"time"

	"go-flux/pattern"
)

// MIDI clock resolution
const (
	PPQN      = 24
	StepTicks = PPQN / 4 // one sixteenth note
	BarTicks  = PPQN * 4 // one 4/4 bar
)

const (
	// heartbeatTicks is how often drift is measured and logged.
	heartbeatTicks = 1000
	// spinWindow is the final stretch before a deadline that is busy-waited.
	spinWindow = time.Millisecond
	// maxBehind is how many periods late the clock may fall before it gives
	// up catching up and resynchronizes to now.
	maxBehind = 10

	DefaultDriftWarn = 500 * time.Microsecond
)

// TickPeriod is the length of one clock tick at bpm.
func TickPeriod(bpm float32) time.Duration {
	if !(bpm > 0) {
		bpm = pattern.DefaultBPM
	}
	return time.Duration(float64(time.Minute) / (float64(bpm) * PPQN))
}

// tickClock schedules ticks on absolute deadlines so rounding and wake-up
// latency never accumulate.
type tickClock struct {
	deadline time.Time
	now      func() time.Time
	sleep    func(time.Duration)
}

func newTickClock() *tickClock {
	c := &tickClock{now: time.Now, sleep: time.Sleep}
	c.deadline = c.now()
	return c
}

// next advances the deadline by one period and waits for it. It reports
// whether the clock had fallen too far behind and was resynchronized instead.
func (c *tickClock) next(period time.Duration) (resynced bool) {
	c.deadline = c.deadline.Add(period)
	now := c.now()
	if late := now.Sub(c.deadline); late > 0 {
		if late > maxBehind*period {
			c.deadline = now
			return true
		}
		return false
	}
	if wait := c.deadline.Sub(now); wait > spinWindow {
		c.sleep(wait - spinWindow)
	}
	for c.now().Before(c.deadline) {
	}
	return false
}

// lateness is how far past the current deadline we are.
func (c *tickClock) lateness() time.Duration {
	d := c.now().Sub(c.deadline)
	if d < 0 {
		d = -d
	}
	return d
}
