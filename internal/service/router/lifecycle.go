package router

import (
	"errors"
	"fmt"
	"sync"
)

// State is the routing state of one inbound message.
type State int

const (
	// StateReceived - Message normalized, not yet past the dedup gate.
	StateReceived State = iota
	// StateDedupDrop - Message was seen before (or has no id). Terminal.
	StateDedupDrop
	// StateRouted - Message claimed and handed to the pipeline.
	StateRouted
	// StateReplied - Reply delivered. Terminal.
	StateReplied
	// StateApologySent - Processing or delivery failed, apology delivered. Terminal.
	StateApologySent
	// StateSilent - Even the apology could not be delivered. Terminal.
	StateSilent
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateReceived:
		return "RECEIVED"
	case StateDedupDrop:
		return "DEDUP_DROP"
	case StateRouted:
		return "ROUTED"
	case StateReplied:
		return "REPLIED"
	case StateApologySent:
		return "REPLY_FAILED_APOLOGY_SENT"
	case StateSilent:
		return "REPLY_FAILED_SILENT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true once the message can never be processed again.
func (s State) IsTerminal() bool {
	switch s {
	case StateDedupDrop, StateReplied, StateApologySent, StateSilent:
		return true
	}
	return false
}

// Errors for invalid state transitions.
var (
	ErrAlreadyTerminal = errors.New("message already reached a terminal state")
	ErrNotReceived     = errors.New("message has already left RECEIVED")
	ErrNotRouted       = errors.New("message was not routed")
)

// Lifecycle manages the state machine for a single inbound message.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	RECEIVED → DEDUP_DROP
//	    │
//	    └──→ ROUTED → REPLIED
//	            ├───→ REPLY_FAILED_APOLOGY_SENT
//	            └───→ REPLY_FAILED_SILENT
//
// A message never re-enters RECEIVED.
type Lifecycle struct {
	mu        sync.RWMutex
	messageID string
	state     State
}

// NewLifecycle creates a lifecycle in RECEIVED state.
func NewLifecycle(messageID string) *Lifecycle {
	return &Lifecycle{messageID: messageID, state: StateReceived}
}

// MessageID returns the message id.
func (l *Lifecycle) MessageID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.messageID
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Drop moves a received message to DEDUP_DROP.
func (l *Lifecycle) Drop() error {
	return l.fromReceived(StateDedupDrop)
}

// Route moves a received message to ROUTED.
func (l *Lifecycle) Route() error {
	return l.fromReceived(StateRouted)
}

// Replied records a delivered reply.
func (l *Lifecycle) Replied() error {
	return l.fromRouted(StateReplied)
}

// ApologySent records a failed reply followed by a delivered apology.
func (l *Lifecycle) ApologySent() error {
	return l.fromRouted(StateApologySent)
}

// Silent records that nothing could be delivered.
func (l *Lifecycle) Silent() error {
	return l.fromRouted(StateSilent)
}

func (l *Lifecycle) fromReceived(next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.state == StateReceived:
		l.state = next
		return nil
	case l.state.IsTerminal():
		return ErrAlreadyTerminal
	default:
		return ErrNotReceived
	}
}

func (l *Lifecycle) fromRouted(next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.state == StateRouted:
		l.state = next
		return nil
	case l.state.IsTerminal():
		return ErrAlreadyTerminal
	default:
		return ErrNotRouted
	}
}
