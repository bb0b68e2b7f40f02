package pipeline

import "errors"

var (
	// ErrNoResults means Discovery produced zero candidate links across all
	// queries for the primary subject. Terminal for the run.
	ErrNoResults = errors.New("no candidate links found after multiple searches")

	// ErrNoEvidence means Collection produced zero usable pages for the
	// primary subject. Terminal for the run.
	ErrNoEvidence = errors.New("no usable evidence collected")
)
