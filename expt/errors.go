package expt

import "errors"

var (
	ErrOutOfRange    = errors.New("value out of range")
	ErrDuplicateID   = errors.New("duplicate experiment id")
	ErrOrder         = errors.New("experiment ids out of order")
	ErrEmpty         = errors.New("no experiments")
	ErrUnknownID     = errors.New("unknown experiment id")
	ErrNoClaim       = errors.New("conclusion does not name a best experiment")
	ErrClaimMismatch = errors.New("claimed best experiment does not match results")
	ErrUnknownField  = errors.New("unknown field")
	ErrNoValues      = errors.New("no values given")
)
