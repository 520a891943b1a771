// Package crawler extracts privacy evidence from a live website.
//
// # Architecture
//
// The Extractor coordinates one scan of a site. It builds a Fetcher with a
// fresh cookie jar for every scan, fetches the landing page, and runs the
// detection steps over the parsed result:
//
//   - Trackers, through four channels in priority order: script sources,
//     pixel images, inline script calls and raw markup
//   - Third-party scripts and preconnect hints, folded back onto the
//     catalogue
//   - Cookies from the jar and from raw Set-Cookie headers
//   - Forms and the visible fields they collect
//   - Data-collection signals such as geolocation or session recording
//   - The consent banner and its controls
//   - The privacy policy, from a page link or a list of well-known paths
//
// One signup or login page is scanned afterwards and merged into the record.
//
// # Failure handling
//
// Extract only fails for a target URL that cannot be scanned. A landing page
// that cannot be fetched yields a record marked unreachable. Every other
// problem is recorded in the record's Errors, and every step's outcome in
// its Steps, so a partial record is still usable.
//
// # Politeness
//
// Requests of one scan are sequential and paced by a rate limiter
// (DefaultRequestInterval). Bodies are read up to model.MaxPageSize.
//
// # Usage
//
//	cat, _ := catalog.Default()
//	extractor := crawler.NewExtractor(httpClient, cat)
//	record, err := extractor.Extract(ctx, "example.com")
package crawler
