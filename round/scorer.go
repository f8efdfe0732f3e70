/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import (
	"fmt"
	"strings"
)

// Rule selects how a guess matching several answers is rewarded.
type Rule int

const (
	// BestMatch awards the finest matched answer: highest index + 1.
	BestMatch Rule = iota
	// FirstMatch awards the first matched answer in list order.
	FirstMatch
)

func (r Rule) String() string {
	switch r {
	case BestMatch:
		return "best"
	case FirstMatch:
		return "first"
	}
	return fmt.Sprintf("Rule(%d)", int(r))
}

func ParseRule(s string) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "best", "":
		return BestMatch, nil
	case "first":
		return FirstMatch, nil
	}
	return 0, fmt.Errorf("unknown scoring rule %q (must be best or first)", s)
}

// Warning is an optional hint for the adapter about a guess that did not
// score.
type Warning string

const WarnMultiToken Warning = "multi_token"

// Scorer compares guesses against a round's answers, ordered coarse to fine.
type Scorer struct {
	Rule Rule
	// RejectMultiToken flags non-matching guesses of more than one word.
	RejectMultiToken bool
}

// Normalize lowercases and trims a guess.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Score returns the points a guess earns and the index of the answer that
// earned them. A guess that matches nothing scores 0 with rank -1.
func (s Scorer) Score(text string, answers []string) (points, rank int) {
	guess := Normalize(text)
	rank = -1
	if guess == "" {
		return 0, rank
	}

	for i, answer := range answers {
		if answer == "" || !strings.Contains(guess, answer) {
			continue
		}
		rank = i
		if s.Rule == FirstMatch {
			break
		}
	}

	if rank < 0 {
		return 0, rank
	}
	return rank + 1, rank
}

// Warn returns the warning for a guess that scored nothing.
func (s Scorer) Warn(text string) Warning {
	if s.RejectMultiToken && len(strings.Fields(text)) > 1 {
		return WarnMultiToken
	}
	return ""
}
