package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/nao1215/privacygap/internal/crawler"
)

// SiteConfig holds settings for scanning one domain.
type SiteConfig struct {
	// Cookie is sent with every request to the site, for example to scan
	// the page a logged-in user sees. Format: "name=value; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// PolicyURL is fetched as the privacy policy instead of discovering it.
	PolicyURL string `yaml:"policyURL,omitempty"`

	// PolicyFile is a local file whose text is used as the privacy policy.
	// Relative paths resolve against the directory of the config file.
	PolicyFile string `yaml:"policyFile,omitempty"`

	// SkipAuxiliary disables the extra signup or login page fetch.
	SkipAuxiliary *bool `yaml:"skipAuxiliary,omitempty"`
}

// File represents the structure of the .privacygap configuration file.
type File struct {
	// Sites maps domains to their settings. Keys are domains as scans
	// record them, for example "shop.example" for "https://www.shop.example/".
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden per site.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// baseDir is the directory the file was loaded from.
	baseDir string
}

// GetSiteConfig returns the settings for target merged over the defaults.
// target may be a domain or any URL of the site.
func (cf *File) GetSiteConfig(target string) SiteConfig {
	result := cf.Defaults
	if cf.Defaults.Headers != nil {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	key := target
	if domain, err := crawler.DomainOf(target); err == nil {
		key = domain
	}

	siteConfig, ok := cf.Sites[key]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if siteConfig.PolicyURL != "" || siteConfig.PolicyFile != "" {
		result.PolicyURL = siteConfig.PolicyURL
		result.PolicyFile = siteConfig.PolicyFile
	}
	if siteConfig.SkipAuxiliary != nil {
		result.SkipAuxiliary = siteConfig.SkipAuxiliary
	}

	return result
}

// PolicyText reads the site's PolicyFile. It returns "" when none is set.
func (cf *File) PolicyText(site SiteConfig) (string, error) {
	if site.PolicyFile == "" {
		return "", nil
	}

	path := site.PolicyFile
	if !filepath.IsAbs(path) && cf.baseDir != "" {
		path = filepath.Join(cf.baseDir, path)
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user's own config file
	if err != nil {
		return "", fmt.Errorf("failed to read policy file: %w", err)
	}
	return string(data), nil
}

// SkipsAuxiliary reports whether the auxiliary page fetch is disabled.
func (s SiteConfig) SkipsAuxiliary() bool {
	return s.SkipAuxiliary != nil && *s.SkipAuxiliary
}
