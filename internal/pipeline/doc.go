// Package pipeline runs scans as a sequence of steps.
//
// The default pipeline has two steps: extract gathers the evidence record
// for the target and analyze turns it into a gap report. Each step receives
// the shared model.ScanReport and fills in its part. Cancellation is
// checked between steps.
//
// Analysis results can be cached across scans with an AnalysisCache keyed
// by the canonical digest of the evidence record.
//
// BatchProcessor scans many targets with bounded concurrency using
// errgroup. Every scan builds its own pipeline from a Factory.
package pipeline
