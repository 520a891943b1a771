// Package log provides secure logging built on the standard slog package.
//
// A scan runs with user-supplied cookies and headers and records cookie
// values set by the scanned site. The SecureHandler keeps those out of the
// log output:
//   - Keys such as cookie, set-cookie, authorization, session and
//     sample_value are always masked
//   - Values that look like JWTs, bearer or basic credentials, or long
//     opaque tokens are masked whatever their key
//   - Sensitive query parameters inside URLs and embedded email addresses
//     are masked in place, so the rest of the URL stays readable
//
// Verbose mode lowers the level from Warn to Debug but never disables
// masking.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("fetching page",
//	    "url", "https://shop.example/?session=abc", // session is masked
//	    "cookie", "sid=abc123",                    // fully masked
//	)
package log
