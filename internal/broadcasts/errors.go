package broadcasts

import "errors"

var (
	// ErrNoMatches means no venue qualifies; no broadcast is created.
	ErrNoMatches = errors.New("no matching venues")
	// ErrNotFound means the broadcast does not exist.
	ErrNotFound = errors.New("broadcast not found")
	// ErrEventRequestNotFound means the historical request does not exist.
	ErrEventRequestNotFound = errors.New("event request not found")
	// ErrAlreadyLinked means another broadcast got linked to the event request
	// first.
	ErrAlreadyLinked = errors.New("event request already linked")
	// ErrNotResendable means the broadcast was created by the backfill and is
	// never delivered.
	ErrNotResendable = errors.New("backfilled broadcasts are not delivered")
	// ErrNothingToResend means every venue of the broadcast was reached.
	ErrNothingToResend = errors.New("nothing to resend")
	// ErrNoTransport means no delivery transport is configured.
	ErrNoTransport = errors.New("delivery transport not configured")
)
