package realtime

import "time"

// Countdown is a whole-second timer driven by a room loop. It holds no game
// state; the owner calls Step once per due second and reacts to Remaining.
type Countdown struct {
	Total     int
	Remaining int
	Started   time.Time
	next      time.Time
}

// StartCountdown begins a countdown of seconds at now.
func StartCountdown(seconds int, now time.Time) *Countdown {
	return &Countdown{
		Total:     seconds,
		Remaining: seconds,
		Started:   now,
		next:      now.Add(time.Second),
	}
}

// Due reports whether a second has elapsed that has not been stepped yet.
func (c *Countdown) Due(now time.Time) bool {
	return c != nil && c.Remaining > 0 && !now.Before(c.next)
}

// Step consumes one second and returns the seconds left.
func (c *Countdown) Step() int {
	if c.Remaining > 0 {
		c.Remaining--
	}
	c.next = c.next.Add(time.Second)
	return c.Remaining
}

// NextWake returns when the next second is due. ok is false once expired.
func (c *Countdown) NextWake() (time.Time, bool) {
	if c == nil || c.Remaining <= 0 {
		return time.Time{}, false
	}
	return c.next, true
}

func (c *Countdown) Expired() bool {
	return c != nil && c.Remaining <= 0
}

// Set overrides the seconds left without moving the tick schedule.
func (c *Countdown) Set(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	c.Remaining = seconds
}
