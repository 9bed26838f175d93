package farming

import "errors"

var (
	ErrNilProgram          = errors.New("farming: nil program")
	ErrProgramExists       = errors.New("farming: program already exists")
	ErrProgramNotFound     = errors.New("farming: program not found")
	ErrUnauthorized        = errors.New("farming: unauthorized")
	ErrAlreadyFunded       = errors.New("farming: reward pool already funded")
	ErrInvalidAmount       = errors.New("farming: amount cannot be negative")
	ErrInsufficientPool    = errors.New("farming: reward pool cannot cover claim")
	ErrCollaboratorFailure = errors.New("farming: balance collaborator failure")
)
