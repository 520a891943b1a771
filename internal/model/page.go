package model

import (
	"net/http"
	"strings"
)

// Page represents a fetched document with all elements the extractor needs.
// It holds both the raw response data and the parsed content.
type Page struct {
	// URL is the URL that was requested.
	URL string `json:"url"`

	// FinalURL is the URL after redirects. Relative links resolve against it.
	FinalURL string `json:"final_url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// Headers contains all HTTP response headers in canonical form.
	Headers map[string][]string `json:"headers"`

	// ContentType is the MIME type of the response.
	ContentType string `json:"content_type"`

	// Title is the text of the first title element.
	Title string `json:"title,omitempty"`

	// Anchors contains all anchor elements with their text.
	Anchors []Element `json:"anchors,omitempty"`

	// Scripts contains external scripts (Source set) and inline scripts
	// (Text set) in document order.
	Scripts []Element `json:"scripts,omitempty"`

	// Images contains all img elements.
	Images []Element `json:"images,omitempty"`

	// Links contains link elements with a rel attribute.
	Links []Element `json:"links,omitempty"`

	// Forms contains every form element with all of its inputs.
	Forms []FormElement `json:"forms,omitempty"`

	// Meta maps meta name or property attributes to their content.
	Meta map[string]string `json:"meta,omitempty"`

	// Cookies holds the cookies the per-scan jar holds for FinalURL after
	// the fetch.
	Cookies []*http.Cookie `json:"-"`

	// Raw contains the response body, limited to MaxPageSize bytes.
	Raw []byte `json:"-"`
}

// MaxPageSize is the default maximum size of a response body.
const MaxPageSize = 5 * 1024 * 1024 // 5 MB

// Element represents a generic HTML element with a source URL.
type Element struct {
	// Source is the element's src or href attribute.
	Source string `json:"source,omitempty"`

	// Text is the inner text (anchors) or script body (inline scripts).
	Text string `json:"text,omitempty"`

	// Rel is the rel attribute (for links).
	Rel string `json:"rel,omitempty"`
}

// FormElement represents an HTML form before any filtering.
type FormElement struct {
	// Action is the action attribute, empty if absent.
	Action string `json:"action"`

	// Method is the method attribute, empty if absent.
	Method string `json:"method"`

	Inputs []InputElement `json:"inputs,omitempty"`
}

// InputElement represents an input, select or textarea inside a form.
type InputElement struct {
	// Tag is input, select or textarea.
	Tag         string `json:"tag"`
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`

	// Required is true for the required attribute or aria-required="true".
	Required bool `json:"required"`
}

// Body returns the raw response body as a string.
func (p *Page) Body() string {
	return string(p.Raw)
}

// GetHeader returns the first value of the specified header.
// Returns empty string if the header is not present.
func (p *Page) GetHeader(name string) string {
	if values, ok := p.Headers[name]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

// GetAllHeaders returns all values of the specified header.
func (p *Page) GetAllHeaders(name string) []string {
	return p.Headers[name]
}

// IsHTML returns true if the page content type indicates HTML, or if no
// content type was sent at all.
func (p *Page) IsHTML() bool {
	ct := strings.ToLower(p.ContentType)
	return ct == "" || strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// InlineScripts returns the bodies of all inline scripts.
func (p *Page) InlineScripts() []string {
	var out []string
	for _, s := range p.Scripts {
		if s.Source == "" && s.Text != "" {
			out = append(out, s.Text)
		}
	}
	return out
}

// ScriptSources returns the src attribute of all external scripts.
func (p *Page) ScriptSources() []string {
	var out []string
	for _, s := range p.Scripts {
		if s.Source != "" {
			out = append(out, s.Source)
		}
	}
	return out
}
