package pipeline

import "errors"

var (
	// ErrScanAborted is returned when a scan stops before every step ran,
	// either because of cancellation or because a step failed.
	ErrScanAborted = errors.New("scan aborted")

	// ErrNoEvidence is returned by the analyze step when no extraction
	// step produced an evidence record.
	ErrNoEvidence = errors.New("no evidence record to analyze")
)
