package pulse

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// dedupWindow suppresses near-identical alerts: a signal is rejected if
// a live signal with the same (category, instrument, tag) was created
// inside this window.
const dedupWindow = 5 * time.Minute

// Manager is the cross-instrument signal lifecycle store. It is the
// only shared resource between instrument watchers and serializes all
// access behind a mutex. Signals expire lazily on read; there is no
// background sweep.
type Manager struct {
	mu      sync.Mutex
	signals []Signal
}

// NewManager creates an empty signal store.
func NewManager() *Manager {
	return &Manager{}
}

// Ingest adds a signal unless an equivalent live one already exists.
// Returns true when the signal was accepted.
func (m *Manager) Ingest(sig Signal) bool {
	now := sig.Timestamp
	if now.IsZero() {
		now = time.Now()
		sig.Timestamp = now
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.signals {
		if existing.Category == sig.Category &&
			existing.Instrument == sig.Instrument &&
			existing.Tag == sig.Tag &&
			existing.Active(now) &&
			now.Sub(existing.Timestamp) < dedupWindow {
			log.Debug().
				Str("instrument", sig.Instrument).
				Str("tag", sig.Tag).
				Msg("duplicate signal suppressed")
			return false
		}
	}

	m.signals = append(m.signals, sig)
	m.compactLocked(now)
	return true
}

// Active returns the live signals at now, newest-first, capped at
// maxVisible (0 means no cap).
func (m *Manager) Active(now time.Time, maxVisible int) []Signal {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Signal, 0, len(m.signals))
	for _, s := range m.signals {
		if s.Active(now) {
			out = append(out, s)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if maxVisible > 0 && len(out) > maxVisible {
		out = out[:maxVisible]
	}
	return out
}

// compactLocked drops expired entries from storage so the slice stays
// bounded. Expiry semantics are unchanged: Active already filters.
func (m *Manager) compactLocked(now time.Time) {
	live := m.signals[:0]
	for _, s := range m.signals {
		if s.Active(now) {
			live = append(live, s)
		}
	}
	m.signals = live
}
