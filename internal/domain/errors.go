package domain

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNoActiveSession = errors.New("expected an active session")
)
