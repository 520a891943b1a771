// Package model defines the records shared by the extractor, the analyzer
// and the report writers.
//
// This package contains the following main types:
//   - EvidenceRecord: everything one scan observed about a site
//   - Gap: a single evidence-gated compliance finding
//   - GapReport: the aggregate of all gaps with risk and score
//   - ScanReport: one scan invocation (evidence, report and metadata)
//   - Page: a fetched document with its parsed elements
//
// Category-like fields are typed string enums. Every enum has a Parse
// function and a JSON unmarshaler that reject unknown values, so a record
// that decodes successfully only carries known categories.
package model
