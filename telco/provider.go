// Package telco abstracts the upstream telephony carrier.
//
// Dialtone never talks to a carrier API directly; the engine is handed a
// Provider at construction time and treats it as a black box that places
// calls, sends messages, and later reports call outcomes through status
// events posted back to the embedding application.
package telco

import "context"

// Provider is the carrier integration surface. Both methods return the
// carrier's own reference for the created call or message, which Dialtone
// records as the usage event's provider reference.
type Provider interface {
	// OriginateCall asks the carrier to place a call to destination.
	// statusURL is where the carrier should post completion callbacks.
	OriginateCall(ctx context.Context, destination, statusURL string) (ref string, err error)

	// SendMessage asks the carrier to deliver body to destination.
	SendMessage(ctx context.Context, destination, body string) (ref string, err error)
}

// CallState is the terminal state reported in a carrier status callback.
type CallState string

const (
	CallCompleted CallState = "completed"
	CallBusy      CallState = "busy"
	CallFailed    CallState = "failed"
	CallNoAnswer  CallState = "no-answer"
	CallCanceled  CallState = "canceled"
)

// Billable reports whether a call in this state incurs a charge. Only
// completed calls are metered; all other terminal states settle free.
func (s CallState) Billable() bool {
	return s == CallCompleted
}

// StatusEvent is a parsed carrier callback describing the outcome of a
// previously originated call.
//
// CallerIdentity is the carrier-side identity of the account that placed
// the call and is how settlement finds the wallet to charge.
type StatusEvent struct {
	CallRef         string    `json:"call_ref"`
	CallerIdentity  string    `json:"caller_identity"`
	Destination     string    `json:"destination"`
	State           CallState `json:"state"`
	DurationSeconds int64     `json:"duration_seconds"`
}
