package session

import (
	"context"
	"errors"
	"time"

	"github.com/birddigital/voice-session-gateway/pkg/directory"
)

// ============================================
// CALL SESSION
// Per-call state shared across webhook callbacks
// ============================================

// CallState represents where a call is in the conversation
type CallState string

const (
	StateNew            CallState = "NEW"
	StateAwaitingSpeech CallState = "AWAITING_SPEECH"
	StateTerminated     CallState = "TERMINATED"
)

// ErrStoreUnavailable is returned when a shared backend cannot be reached
var ErrStoreUnavailable = errors.New("session store unavailable")

// CallSession is a snapshot of one call's state. Stores hand out copies;
// mutate through the Store methods only.
type CallSession struct {
	CallID         string              `json:"call_id"`
	CallerPhone    string              `json:"caller_phone,omitempty"`
	Customer       *directory.Customer `json:"customer,omitempty"`
	GreetingIssued bool                `json:"greeting_issued"`
	State          CallState           `json:"state"`
	NoInputCount   int                 `json:"no_input_count"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Store keeps call sessions keyed by call id. Writes to the same key are serialized.
type Store interface {
	// GetOrCreate returns the session, creating it with defaults if absent.
	// created reports whether this call created it.
	GetOrCreate(ctx context.Context, callID string) (sess CallSession, created bool, err error)

	// MarkGreetingIssued flips the greeting flag. transitioned is true only for
	// the single caller that moved it from false to true.
	MarkGreetingIssued(ctx context.Context, callID string) (transitioned bool, err error)

	// SetCallerPhone stores the caller number; first write wins.
	SetCallerPhone(ctx context.Context, callID, phone string) error

	// SetCustomer caches the resolved customer; first write wins.
	SetCustomer(ctx context.Context, callID string, customer *directory.Customer) error

	SetState(ctx context.Context, callID string, state CallState) error

	// IncrementNoInput bumps and returns the no-input counter.
	IncrementNoInput(ctx context.Context, callID string) (int, error)

	// Evict destroys the session. Evicting an unknown call is a no-op.
	Evict(ctx context.Context, callID string) error

	Count(ctx context.Context) (int, error)
}
