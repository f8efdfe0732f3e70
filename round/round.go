/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package round runs the single in-flight guessing round.
package round

import (
	"context"
	"errors"

	"github.com/Seednode/streetguess/catalog"
)

var (
	ErrRoundAlreadyActive = errors.New("round already active")
	ErrAcquisitionFailed  = errors.New("acquisition failed")
	ErrRoundAborted       = errors.New("round aborted")
	ErrStopped            = errors.New("round machine stopped")
	ErrNoAnswers          = errors.New("candidate has no answers")
)

type State int

const (
	Idle State = iota
	Acquiring
	Active
	Resolved
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case Active:
		return "active"
	case Resolved:
		return "resolved"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Round is a snapshot of the round state. Winner is only set while the
// state is Resolved.
type Round struct {
	ID        string
	Mode      catalog.Mode
	Answers   []string
	Label     string
	Reference string
	AnchorID  string
	State     State
	Winner    string
}

// Acquisition is what an Acquirer hands back for a new round. The machine
// owns ArtifactPath until it is returned from Start.
type Acquisition struct {
	Candidate    catalog.Candidate
	ArtifactPath string
}

// Acquirer produces the image and answer set of a round. key identifies
// the round the artifact belongs to.
type Acquirer interface {
	Acquire(ctx context.Context, mode catalog.Mode, key string) (Acquisition, error)
}

// Ledger is the part of the score ledger a round touches.
type Ledger interface {
	Credit(mode catalog.Mode, identity string, points int) error
	ResetAll()
	Export() map[string]map[string]int
}

// Saver persists an exported ledger.
type Saver interface {
	Save(data map[string]map[string]int) error
}

// Started describes a round that just became active. The caller owns
// ArtifactPath and must delete it after publishing.
type Started struct {
	RoundID      string
	Mode         catalog.Mode
	ArtifactPath string
	Label        string
	Reference    string
}

type Guess struct {
	Identity string
	Text     string
	// ReplyTo is the message the guess replied to, if any.
	ReplyTo string
}

// Outcome is the result of a submitted guess.
type Outcome struct {
	// Ignored is set when there was no active round.
	Ignored bool
	Won     bool

	RoundID   string
	Mode      catalog.Mode
	Identity  string
	Points    int
	Rank      int
	Label     string
	Reference string

	// Replied reports whether the guess replied to the round's message.
	Replied bool
	Warning Warning
}
