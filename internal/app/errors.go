package service

import "errors"

// ErrNotStarted is returned by job operations before Start or after Stop.
var ErrNotStarted = errors.New("service not started")
