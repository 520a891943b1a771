// Package main provides the entry point for the privacygap CLI.
//
// privacygap scans public websites for privacy compliance gaps. A gap is
// reported only when observed evidence (a tracker, a cookie, a form field,
// the privacy policy text) supports it, and each gap carries the regulation
// it violates, an estimated dollar exposure, and comparable enforcement
// cases.
//
// Usage:
//
//	privacygap scan <url>
//	privacygap scan --list <file>
//	privacygap compare <domain>
//
// See --help for all available options.
package main

// main is the entry point for privacygap.
func main() {
	Execute()
}
