package billing

import (
	"context"
	"sync"
	"time"
)

// Snapshot is a point-in-time view of a session meter.
type Snapshot struct {
	Elapsed int64   `json:"elapsed"`
	Balance float64 `json:"balance"`
	Paused  bool    `json:"paused"`
	Ended   bool    `json:"ended"`
}

// Hooks receive meter side effects. They are invoked outside the meter
// lock, so implementations may call back into the meter.
type Hooks struct {
	// OnDeduct fires after each applied charge with the amount actually
	// taken and the remaining balance.
	OnDeduct func(amount, remaining float64, elapsed int64)
	// OnPaused fires once when the balance reaches zero.
	OnPaused func()
}

// Meter advances elapsed session time once per second while the session is
// neither ended nor paused, and applies a per-minute charge at each exact
// multiple of the deduction interval. The balance never goes negative; the
// tick that clamps it to zero pauses the meter. Only Recharge, an external
// authority, can unpause it.
type Meter struct {
	mu       sync.Mutex
	elapsed  int64
	balance  float64
	rate     float64
	interval int64
	paused   bool
	ended    bool
	hooks    Hooks
}

// NewMeter creates a meter for one session. intervalSeconds is 60 in
// production; tests shrink it.
func NewMeter(initialBalance, ratePerMinute float64, intervalSeconds int, hooks Hooks) *Meter {
	if intervalSeconds < 1 {
		intervalSeconds = 60
	}
	if initialBalance < 0 {
		initialBalance = 0
	}
	return &Meter{
		balance:  initialBalance,
		rate:     ratePerMinute,
		interval: int64(intervalSeconds),
		hooks:    hooks,
	}
}

// Tick advances the meter by one second. Ticks while paused or ended are
// ignored; accrued elapsed time is retained for display either way.
func (m *Meter) Tick() Snapshot {
	m.mu.Lock()
	if m.ended || m.paused {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap
	}

	m.elapsed++

	var (
		deducted float64
		paused   bool
	)
	if m.elapsed%m.interval == 0 {
		remaining := m.balance - m.rate
		if remaining < 0 {
			remaining = 0
		}
		deducted = m.balance - remaining
		m.balance = remaining

		if m.balance == 0 {
			m.paused = true
			paused = true
		}
	}

	snap := m.snapshotLocked()
	m.mu.Unlock()

	if deducted > 0 && m.hooks.OnDeduct != nil {
		m.hooks.OnDeduct(deducted, snap.Balance, snap.Elapsed)
	}
	if paused && m.hooks.OnPaused != nil {
		m.hooks.OnPaused()
	}
	return snap
}

// Run drives Tick on a one-second ticker until the context is cancelled or
// the meter ends. Ticks missed while the process is suspended are not
// replayed; elapsed time reflects ticks actually delivered.
func (m *Meter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if snap := m.Tick(); snap.Ended {
				return
			}
		}
	}
}

// Recharge credits the balance and unpauses the meter when the result is
// positive. Recharging an ended meter has no effect beyond the snapshot.
func (m *Meter) Recharge(amount float64) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended || amount <= 0 {
		return m.snapshotLocked()
	}

	m.balance += amount
	if m.balance > 0 {
		m.paused = false
	}
	return m.snapshotLocked()
}

// SetRate changes the per-minute charge, e.g. after an astrologer switch.
// The new rate applies from the next deduction boundary; charges already
// taken are not revisited.
func (m *Meter) SetRate(ratePerMinute float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ratePerMinute < 0 {
		ratePerMinute = 0
	}
	m.rate = ratePerMinute
}

// End stops the meter permanently and returns the final snapshot. The
// transition is one-way.
func (m *Meter) End() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = true
	return m.snapshotLocked()
}

// Snapshot returns the current meter state.
func (m *Meter) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Meter) snapshotLocked() Snapshot {
	return Snapshot{
		Elapsed: m.elapsed,
		Balance: m.balance,
		Paused:  m.paused,
		Ended:   m.ended,
	}
}
