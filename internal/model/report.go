package model

import (
	"time"

	"github.com/google/uuid"
)

// ScanReport is the result of one scan invocation: the evidence gathered,
// the gap report derived from it and bookkeeping about the run itself.
type ScanReport struct {
	// ID uniquely identifies the scan.
	ID string `json:"id"`

	// Target is the URL as given by the user, before normalization.
	Target string `json:"target"`

	// DateScanned is when the scan started.
	DateScanned time.Time `json:"date_scanned"`

	// CatalogueVersion is the signature catalogue version used.
	CatalogueVersion string `json:"catalogue_version,omitempty"`

	Evidence *EvidenceRecord `json:"evidence,omitempty"`
	Report   *GapReport      `json:"report,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// TimedOut is true if the scan was cut short by its deadline.
	TimedOut bool `json:"timed_out"`

	// Error holds the error that aborted the scan, if any.
	Error error `json:"-"`

	// ErrorMessage is Error rendered for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewScanReport creates an empty report for target with a fresh ID.
func NewScanReport(target string) *ScanReport {
	return &ScanReport{
		ID:          uuid.NewString(),
		Target:      target,
		DateScanned: time.Now(),
	}
}

// AddPerformedStep records that a pipeline step ran.
func (r *ScanReport) AddPerformedStep(name string) {
	r.PerformedSteps = append(r.PerformedSteps, name)
}

// SetError records the error that aborted the scan.
func (r *ScanReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Domain returns the normalized domain, or the raw target before extraction ran.
func (r *ScanReport) Domain() string {
	if r.Evidence != nil && r.Evidence.Domain != "" {
		return r.Evidence.Domain
	}
	return r.Target
}
