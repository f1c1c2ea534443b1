package corridor

import "errors"

// Sentinel kinds for corridor errors.
var (
	ErrUnknownRoute = errors.New("unknown route")
	ErrInvalidRoute = errors.New("invalid route")
)
