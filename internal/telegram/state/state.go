// Package state implements the in-memory conversation state machine used
// by multi-step dialogs, e.g. the PRO pattern search and the admin
// inventory flows.
package state

import tele "gopkg.in/telebot.v4"

// State identifies one step of a user conversation.
type State string

// StateIdle means no conversation is in progress.
const StateIdle State = "idle"

// Session stores the current step and scratch data of one user.
type Session struct {
	State    State
	TempData map[string]any
}

// Manager tracks per-user conversation sessions.
type Manager interface {
	SetState(userID int64, st State)
	GetState(userID int64) State
	ClearState(userID int64)
	InProgress(userID int64) bool

	SetTemp(userID int64, key string, value any)
	GetTemp(userID int64, key string) (any, bool)
	GetTempInt64(userID int64, key string) (int64, bool)
	ClearTemp(userID int64, key string)
	Clear(userID int64)

	// Handle dispatches the message to the handler registered for the
	// user's current state.
	Handle(c tele.Context) error
}
