// Package conversation tracks how far each user has progressed in their
// conversation with each persona.
package conversation

import "time"

// State is the per (user, persona) progress record.
type State struct {
	UserID         string
	Persona        string
	TurnsCompleted int       // user turns seen so far
	History        []Message // bounded, oldest first
	StartedAt      time.Time
	LastActivity   time.Time
}

// Message is a single user message kept in the history buffer.
type Message struct {
	Content   string
	Timestamp time.Time
}

// TurnInfo describes the turn just recorded.
type TurnInfo struct {
	TurnsCompleted int
	IsSemi         bool // one turn before the end of the scripted conversation
	IsLast         bool // at or past the end
}

// TurnFor computes the turn flags for a turn count against messageCount.
func TurnFor(turns, messageCount int) TurnInfo {
	return TurnInfo{
		TurnsCompleted: turns,
		IsSemi:         turns == messageCount-1,
		IsLast:         turns >= messageCount,
	}
}
