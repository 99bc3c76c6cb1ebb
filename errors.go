package carteira

import "errors"

var (
	// ErrUnavailable reports that a provider could not be reached or
	// returned an unusable response. The caller moves on to the next
	// source in the chain.
	ErrUnavailable = errors.New("source unavailable")

	// ErrAbsent reports that a provider answered but does not know the
	// instrument asked for.
	ErrAbsent = errors.New("instrument absent from source")

	// ErrAuth reports a rejected or missing credential. The source is
	// skipped for the remainder of the run.
	ErrAuth = errors.New("authentication rejected")
)
