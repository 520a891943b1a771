// Package gap compares an evidence record against its privacy policy and
// reports compliance gaps.
//
// Every gap is evidence gated: it names the record fields it was derived
// from, and rules that compare evidence against policy text only run when
// the policy was retrieved with high confidence. A report with no gaps and
// no usable policy is marked indeterminate with a score of 0, never clean.
//
// Rules run in a fixed order:
//
//	advertising_trackers            critical or warning
//	analytics_trackers              warning   (policy gated)
//	consent_defects                 critical or warning
//	location_undisclosed            critical
//	session_recording_undisclosed   warning
//	retention_undisclosed           warning   (policy gated)
//	rights_incomplete               warning or info (policy gated)
//	cross_border_undisclosed        info      (policy gated)
//	children_undisclosed            info      (policy gated)
//	excessive_form_fields           warning
//
// Policy keywords match as whole phrases, so "age" does not match "page".
// Keyword matching is a heuristic over legal text, not a legal opinion.
package gap
