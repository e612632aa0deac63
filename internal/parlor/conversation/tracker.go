package conversation

import (
	"sync"
	"time"
)

// TrackerConfig holds configuration for the Tracker.
type TrackerConfig struct {
	// MaxHistory is the number of messages kept per conversation. Older
	// messages are dropped first. Default: 50.
	MaxHistory int

	// IdleTTL is how long a conversation may sit idle before Evict drops it.
	// Zero keeps conversations for the lifetime of the process.
	IdleTTL time.Duration
}

// DefaultTrackerConfig returns a TrackerConfig with the documented defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxHistory: 50,
	}
}

// entry pairs a state with the lock that serialises updates to it.
type entry struct {
	mu      sync.Mutex
	state   State
	evicted bool
}

// Tracker owns the conversation state for every (user, persona) pair.
// The map is guarded by its own lock; each pair has its own mutex so that
// unrelated conversations never contend. It is safe for concurrent use.
type Tracker struct {
	config TrackerConfig

	mu      sync.Mutex
	entries map[key]*entry
}

type key struct {
	userID  string
	persona string
}

// NewTracker creates a Tracker with the given configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultTrackerConfig().MaxHistory
	}
	if cfg.IdleTTL < 0 {
		cfg.IdleTTL = 0
	}
	return &Tracker{
		config:  cfg,
		entries: make(map[key]*entry),
	}
}

// Advance records one user message for the pair, creating its state on
// first contact, and returns the flags for the resulting turn.
func (t *Tracker) Advance(userID, persona, message string, messageCount int) TurnInfo {
	return t.advanceAt(userID, persona, message, messageCount, time.Now())
}

// advanceAt is the time-injectable core of Advance.
func (t *Tracker) advanceAt(userID, persona, message string, messageCount int, now time.Time) TurnInfo {
	k := key{userID: userID, persona: persona}
	e := t.entry(k, now)
	e.mu.Lock()
	// Evict may have dropped the entry between lookup and lock.
	for e.evicted {
		e.mu.Unlock()
		e = t.entry(k, now)
		e.mu.Lock()
	}
	defer e.mu.Unlock()

	e.state.TurnsCompleted++
	e.state.History = append(e.state.History, Message{Content: message, Timestamp: now})
	if excess := len(e.state.History) - t.config.MaxHistory; excess > 0 {
		e.state.History = e.state.History[excess:]
	}
	e.state.LastActivity = now

	return TurnFor(e.state.TurnsCompleted, messageCount)
}

// Fixed returns the turn flags for a fixed turn count without touching any
// tracked state.
func (t *Tracker) Fixed(messageCount, turns int) TurnInfo {
	return TurnFor(turns, messageCount)
}

// Get returns a copy of the state for the pair. Mutating the copy does not
// affect the tracker.
func (t *Tracker) Get(userID, persona string) (*State, bool) {
	t.mu.Lock()
	e, ok := t.entries[key{userID: userID, persona: persona}]
	t.mu.Unlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	cp := e.state
	cp.History = make([]Message, len(e.state.History))
	copy(cp.History, e.state.History)
	return &cp, true
}

// Len returns the number of tracked conversations.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Evict drops conversations idle for longer than IdleTTL relative to now and
// returns how many were removed. It is a no-op when IdleTTL is zero.
func (t *Tracker) Evict(now time.Time) int {
	if t.config.IdleTTL == 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for k, e := range t.entries {
		e.mu.Lock()
		if now.Sub(e.state.LastActivity) > t.config.IdleTTL {
			e.evicted = true
			delete(t.entries, k)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// IdleTTL returns the configured eviction threshold.
func (t *Tracker) IdleTTL() time.Duration {
	return t.config.IdleTTL
}

func (t *Tracker) entry(k key, now time.Time) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[k]
	if !ok {
		e = &entry{state: State{
			UserID:       k.userID,
			Persona:      k.persona,
			StartedAt:    now,
			LastActivity: now,
		}}
		t.entries[k] = e
	}
	return e
}
