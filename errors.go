package uvcmanager

import "errors"

var (
	// ErrSinkLocked is returned by SetFrameSink once a session has been
	// created. The sink is read-only from then on.
	ErrSinkLocked = errors.New("uvcmanager: frame sink is locked")
	ErrClosed     = errors.New("uvcmanager: manager closed")
)
