// Package config holds the scan configuration and the per-site settings
// file (.privacygap). Command-line flags populate a Config, and the site
// file supplies cookies, headers and manual policy overrides per domain.
package config
