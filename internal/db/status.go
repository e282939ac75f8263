package db

import "fmt"

// MatchStatus is the tagged state of a Match. All transition legality lives
// here; call sites never compare raw strings.
type MatchStatus string

const (
	MatchPendingRequest MatchStatus = "pending_request"
	MatchActive         MatchStatus = "active"
	MatchRevealed       MatchStatus = "revealed"
	MatchPendingReveal  MatchStatus = "pending_reveal"
	MatchDeclined       MatchStatus = "declined"
)

// ActiveFamily is every status that still counts as a live pairing: at most
// one match per unordered user pair may sit in any of these.
func ActiveFamily() []MatchStatus {
	return []MatchStatus{MatchPendingRequest, MatchActive, MatchRevealed, MatchPendingReveal}
}

// InActiveFamily reports whether s is a non-terminal match status.
func (s MatchStatus) InActiveFamily() bool {
	switch s {
	case MatchPendingRequest, MatchActive, MatchRevealed, MatchPendingReveal:
		return true
	}
	return false
}

// Messaging reports whether messages may be created under this status.
// pending_request and declined never accept messages; expiry is checked
// separately because it is a function of time, not of stored state.
func (s MatchStatus) Messaging() bool {
	switch s {
	case MatchActive, MatchRevealed, MatchPendingReveal:
		return true
	}
	return false
}

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchPendingRequest: {MatchActive, MatchDeclined},
	MatchActive:         {MatchRevealed, MatchDeclined},
	MatchRevealed:       {MatchPendingReveal, MatchDeclined},
	MatchPendingReveal:  {MatchRevealed, MatchDeclined},
	MatchDeclined:       {},
}

// CanTransition reports whether from → to is a legal match transition.
func (s MatchStatus) CanTransition(to MatchStatus) bool {
	for _, next := range matchTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the target status, erroring on illegal moves.
func (s MatchStatus) Transition(to MatchStatus) (MatchStatus, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("illegal match transition %s -> %s", s, to)
	}
	return to, nil
}

// LetterStatus is the tagged state of a Letter.
type LetterStatus string

const (
	LetterPending     LetterStatus = "pending"
	LetterLiked       LetterStatus = "liked"
	LetterDeclined    LetterStatus = "declined"
	LetterMatched     LetterStatus = "matched"
	LetterStartedChat LetterStatus = "started_chat"
)

var letterTransitions = map[LetterStatus][]LetterStatus{
	LetterPending:     {LetterLiked, LetterDeclined},
	LetterLiked:       {LetterMatched, LetterStartedChat},
	LetterMatched:     {LetterStartedChat},
	LetterDeclined:    {},
	LetterStartedChat: {},
}

// CanTransition reports whether from → to is a legal letter transition.
func (s LetterStatus) CanTransition(to LetterStatus) bool {
	for _, next := range letterTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the target status, erroring on illegal moves.
func (s LetterStatus) Transition(to LetterStatus) (LetterStatus, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("illegal letter transition %s -> %s", s, to)
	}
	return to, nil
}

// SwipeAction is what a user did with a discovery candidate.
type SwipeAction string

const (
	SwipeLike SwipeAction = "like"
	SwipePass SwipeAction = "pass"
)

func (a SwipeAction) Valid() bool {
	return a == SwipeLike || a == SwipePass
}
