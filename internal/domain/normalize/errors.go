package normalize

import "errors"

// Rejection kinds returned by Normalize. Callers branch with errors.Is;
// none of these are fatal to the pipeline.
var (
	ErrMalformedInput       = errors.New("malformed input")
	ErrStaleBeyondWatermark = errors.New("stale beyond watermark")
	ErrDuplicateID          = errors.New("duplicate event id")
)
