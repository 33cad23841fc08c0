package strain

import "errors"

var (
	errEmptySeries  = errors.New("strain: series must not be empty")
	errRateMismatch = errors.New("strain: sample rates must match")
)
