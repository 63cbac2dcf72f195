package service

// Countdown counts whole seconds down to zero and reports expiry once
type Countdown struct {
	remaining int
	expired   bool
}

func NewCountdown(seconds int) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	return &Countdown{remaining: seconds}
}

// Tick advances one second. It returns true on the tick that reaches zero
// and false on every other call.
func (c *Countdown) Tick() bool {
	if c.expired {
		return false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining == 0 {
		c.expired = true
		return true
	}
	return false
}

func (c *Countdown) Remaining() int {
	return c.remaining
}

func (c *Countdown) Expired() bool {
	return c.expired
}

// Quorum fires once, when every participant of a non-empty round has voted
type Quorum struct {
	fired bool
}

// Observe returns true the first time voted reaches total
func (q *Quorum) Observe(voted, total int) bool {
	if q.fired || total == 0 || voted < total {
		return false
	}
	q.fired = true
	return true
}

func (q *Quorum) Fired() bool {
	return q.fired
}
