package service

import "errors"

// Policy rejections returned by the dispatcher before any network call.
// They are terminal for the attempted send and never retried.
var (
	ErrOutsideSessionWindow = errors.New("outside_session_window")
	ErrSuppressedContact    = errors.New("suppressed_contact")
	ErrRateLimited          = errors.New("rate_limited_or_global_limit")
)
