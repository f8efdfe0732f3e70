/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package ledger keeps accumulated points per mode and participant.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Seednode/streetguess/catalog"
)

var (
	ErrInvalidMode    = errors.New("invalid mode")
	ErrNegativePoints = errors.New("negative points")
)

// Entry is one row of a leaderboard.
type Entry struct {
	Identity string `json:"identity"`
	Points   int    `json:"points"`
}

// Ledger maps (mode, identity) to a point total. Totals only grow, except
// through ResetAll or Import.
type Ledger struct {
	mu     sync.RWMutex
	scores map[catalog.Mode]map[string]int
}

func New() *Ledger {
	return &Ledger{scores: emptyScores()}
}

func emptyScores() map[catalog.Mode]map[string]int {
	scores := make(map[catalog.Mode]map[string]int)
	for _, m := range catalog.Modes() {
		scores[m] = make(map[string]int)
	}
	return scores
}

func (l *Ledger) Credit(mode catalog.Mode, identity string, points int) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if points < 0 {
		return fmt.Errorf("%w: %d", ErrNegativePoints, points)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.scores[mode][identity] += points

	return nil
}

// Read returns the total for identity in mode, or 0 if none is recorded.
func (l *Ledger) Read(mode catalog.Mode, identity string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.scores[mode][identity]
}

// Top returns up to n entries of mode ordered by points descending. Ties
// are ordered by identity so repeated calls agree.
func (l *Ledger) Top(mode catalog.Mode, n int) []Entry {
	l.mu.RLock()
	entries := make([]Entry, 0, len(l.scores[mode]))
	for id, pts := range l.scores[mode] {
		entries = append(entries, Entry{Identity: id, Points: pts})
	}
	l.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].Identity < entries[j].Identity
	})

	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}

	return entries
}

// ResetAll zeroes every mode at once.
func (l *Ledger) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.scores = emptyScores()
}

// Export returns a deep copy of the ledger as mode -> identity -> points.
func (l *Ledger) Export() map[string]map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]map[string]int, len(l.scores))
	for mode, ids := range l.scores {
		m := make(map[string]int, len(ids))
		for id, pts := range ids {
			m[id] = pts
		}
		out[string(mode)] = m
	}

	return out
}

// Import replaces the whole ledger with data. Nothing changes if data is
// invalid.
func (l *Ledger) Import(data map[string]map[string]int) error {
	scores := emptyScores()

	for name, ids := range data {
		mode := catalog.Mode(name)
		if !mode.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidMode, name)
		}
		for id, pts := range ids {
			if pts < 0 {
				return fmt.Errorf("%w: %s/%s=%d", ErrNegativePoints, name, id, pts)
			}
			scores[mode][id] = pts
		}
	}

	l.mu.Lock()
	l.scores = scores
	l.mu.Unlock()

	return nil
}
