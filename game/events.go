package game

import (
	"github.com/Seednode/streetguess/catalog"
)

type EventType string

const (
	EventRoundStarted  EventType = "round_started"
	EventRoundResolved EventType = "round_resolved"
	EventRoundAborted  EventType = "round_aborted"
	EventScoresReset   EventType = "scores_reset"
)

// Event describes a published change. It never carries the answer of a
// round that is still running.
type Event struct {
	Type      EventType    `json:"type"`
	RoundID   string       `json:"round_id,omitempty"`
	Mode      catalog.Mode `json:"mode,omitempty"`
	MessageID string       `json:"message_id,omitempty"`
	Winner    string       `json:"winner,omitempty"`
	Points    int          `json:"points,omitempty"`
	Label     string       `json:"label,omitempty"`
	Reference string       `json:"reference,omitempty"`
}

// Observer is told about every event. RoundEvent must not block.
type Observer interface {
	RoundEvent(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) RoundEvent(e Event) { f(e) }

func (s *Service) notify(e Event) {
	for _, o := range s.observers {
		o.RoundEvent(e)
	}
}
