// Package session gates the ledger on authentication state.
//
// A Provider publishes session lifecycle events on a channel; the Loader is
// its sole subscriber and turns sign-ins into repository loads and
// sign-outs into synchronous clears.
package session

import (
	"context"

	"kakeibo/internal/core"
)

// Provider is the authentication collaborator.
//
// The first event delivered on a fresh subscription is an InitialSession
// event carrying the restored session, or nil when nobody is signed in.
type Provider interface {
	CurrentSession(ctx context.Context) (*core.Session, error)
	Subscribe() (<-chan core.SessionEvent, func())
}

// Target is what the loader fills and clears.
type Target interface {
	Load(ctx context.Context) error
	Clear()
}

// State is the loader's view of the authentication state.
type State int

const (
	Unknown State = iota
	SignedIn
	SignedOut
)

func (s State) String() string {
	switch s {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}
