package gi

import "errors"

var (
	ErrEmptyScene           = errors.New("gi: scene bounds are degenerate")
	ErrInvalidConfig        = errors.New("gi: invalid config")
	ErrNotInitialized       = errors.New("gi: pipeline not initialized")
	ErrStageOrder           = errors.New("gi: stage run out of order")
	ErrTechniqueUnavailable = errors.New("gi: technique unavailable")
	ErrListCycle            = errors.New("gi: fragment list does not terminate")
	ErrListOutOfRange       = errors.New("gi: fragment index out of range")
	ErrListOrder            = errors.New("gi: fragment list is not in reverse append order")
)
