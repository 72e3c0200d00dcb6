package authoring

import (
	"github.com/lunaris/capsuled/internal/model"
	"github.com/lunaris/capsuled/pkg/capsule"
)

// A State is the position of a session in the authoring machine.
type State int

// Authoring machine states. Every flow terminates back in StateIdle.
const (
	StateIdle State = iota
	StateTitle
	StateContent
	StateRecipients
	StateSchedule
	StateCustomSchedule
	StateSelect
	StateConfirmDelete
	StateConfirmSend
	StateEditField
	StateEditTitle
	StateEditContent
)

// An Action is the existing-capsule operation a selection is for.
type Action int

// Existing-capsule actions.
const (
	ActionNone Action = iota
	ActionSend
	ActionDelete
	ActionEdit
	ActionRecipients
	ActionSchedule
	ActionAddRecipients
)

// A Session is the ephemeral per-user authoring state. It lives for
// one conversation and is never persisted: a restart simply drops all
// in-flight flows back to idle.
type Session struct {
	user *model.User
	lang string

	state  State
	action Action

	// Capsule-in-progress fields.
	title string
	draft *capsule.Bundle

	// Target of an in-flight existing-capsule action.
	targetID     string
	targetNumber int
}

// State returns the current machine state. Exposed for tests.
func (s *Session) State() State {
	return s.state
}

// reset drops every in-flight flow and returns the session to idle.
func (s *Session) reset() {
	s.state = StateIdle
	s.action = ActionNone
	s.title = ""
	s.draft = nil
	s.targetID = ""
	s.targetNumber = 0
}
