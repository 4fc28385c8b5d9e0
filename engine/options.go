package engine

import "time"

type Options struct {
	// BackoffInitial is the wait before retrying an activity no agent could
	// take; it grows exponentially up to BackoffMax.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// BlockedAlertAttempts is the number of failed matches after which one
	// ERROR event is emitted for the activity. Zero disables the alert.
	BlockedAlertAttempts int
	OnComplete           Statehandler
	OnFailure            Statehandler
	// CacheExpiration bounds how long finished trees stay cached.
	CacheExpiration time.Duration
}

func DefaultOptions() Options {
	return Options{
		BackoffInitial:       time.Second,
		BackoffMax:           time.Minute,
		BlockedAlertAttempts: 5,
		OnComplete:           NOOP,
		OnFailure:            NOOP,
		CacheExpiration:      10 * time.Minute,
	}
}
