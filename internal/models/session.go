package models

import openapi_types "github.com/oapi-codegen/runtime/types"

// Session is the derived readout the UI layer renders. It is rebuilt from the
// stored credentials through a profile call at startup.
type Session struct {
	User            *User
	IsAuthenticated bool
	Loading         bool
}

type LoginOutcome int

const (
	LoginSucceeded LoginOutcome = iota + 1
	TwoFactorRequired
)

func (o LoginOutcome) String() string {
	switch o {
	case LoginSucceeded:
		return "success"
	case TwoFactorRequired:
		return "two_factor_required"
	default:
		return "unknown"
	}
}

// LoginResult is either a stored token pair (LoginSucceeded) or a pending
// second-factor challenge for Email (TwoFactorRequired).
type LoginResult struct {
	Outcome     LoginOutcome
	Credentials Credentials
	User        *User
	Email       openapi_types.Email
	Message     string
}

func (r LoginResult) RequiresTwoFactor() bool { return r.Outcome == TwoFactorRequired }
