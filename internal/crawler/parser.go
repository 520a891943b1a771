package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/privacygap/internal/model"
)

// HTML element name constants for form field detection.
const (
	htmlElementInput    = "input"
	htmlElementSelect   = "select"
	htmlElementTextarea = "textarea"
)

// Parser extracts the elements evidence detection needs from HTML content.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains all information extracted from an HTML page in one
// walk of the document.
type ParseResult struct {
	// Title is the text of the first <title> element.
	Title string

	// Anchors holds every <a href> with its resolved URL and visible text.
	Anchors []model.Element

	// Scripts holds external scripts (resolved Source) and inline scripts
	// (Text) in document order.
	Scripts []model.Element

	// Images holds resolved <img src> URLs.
	Images []model.Element

	// Links holds <link> elements that carry a rel attribute.
	Links []model.Element

	// Forms holds every form with its raw action and method attributes.
	Forms []model.FormElement

	// MetaTags maps lower-cased meta name or property attributes to content.
	MetaTags map[string]string
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts all relevant elements.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Anchors:  make([]model.Element, 0),
		Scripts:  make([]model.Element, 0),
		Images:   make([]model.Element, 0),
		Links:    make([]model.Element, 0),
		Forms:    make([]model.FormElement, 0),
		MetaTags: make(map[string]string),
	}

	titleSeen := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" && !titleSeen {
				titleSeen = true
				result.Title = textContent(n)
			} else {
				p.processElement(n, result)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// apply copies the parse result into page.
func (r *ParseResult) apply(page *model.Page) {
	page.Title = r.Title
	page.Anchors = r.Anchors
	page.Scripts = r.Scripts
	page.Images = r.Images
	page.Links = r.Links
	page.Forms = r.Forms
	page.Meta = r.MetaTags
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "a":
		if href := p.resolveURL(getAttr(n, "href")); href != "" {
			result.Anchors = append(result.Anchors, model.Element{
				Source: href,
				Text:   textContent(n),
			})
		}

	case "script":
		if src := getAttr(n, "src"); src != "" {
			if resolved := p.resolveURL(src); resolved != "" {
				result.Scripts = append(result.Scripts, model.Element{Source: resolved})
			}
			return
		}
		var body strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				body.WriteString(c.Data)
			}
		}
		if body.Len() > 0 {
			result.Scripts = append(result.Scripts, model.Element{Text: body.String()})
		}

	case "img":
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			result.Images = append(result.Images, model.Element{Source: src})
		}

	case "link":
		rel := strings.ToLower(strings.TrimSpace(getAttr(n, "rel")))
		if rel == "" {
			return
		}
		if href := p.resolveURL(getAttr(n, "href")); href != "" {
			result.Links = append(result.Links, model.Element{Source: href, Rel: rel})
		}

	case "meta":
		key := getAttr(n, "name")
		if key == "" {
			key = getAttr(n, "property")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return
		}
		if _, exists := result.MetaTags[key]; !exists {
			result.MetaTags[key] = getAttr(n, "content")
		}

	case "form":
		form := model.FormElement{
			Action: strings.TrimSpace(getAttr(n, "action")),
			Method: strings.TrimSpace(getAttr(n, "method")),
			Inputs: make([]model.InputElement, 0),
		}
		p.extractFormFields(n, &form)
		result.Forms = append(result.Forms, form)
	}
}

// extractFormFields recursively extracts form fields from a form element.
func (p *Parser) extractFormFields(n *html.Node, form *model.FormElement) {
	if n.Type == html.ElementNode && (n.Data == htmlElementInput || n.Data == htmlElementSelect || n.Data == htmlElementTextarea) {
		field := model.InputElement{
			Tag:         n.Data,
			Type:        strings.ToLower(strings.TrimSpace(getAttr(n, "type"))),
			Name:        getAttr(n, "name"),
			ID:          getAttr(n, "id"),
			Placeholder: getAttr(n, "placeholder"),
			Required:    hasAttr(n, "required") || strings.EqualFold(getAttr(n, "aria-required"), "true"),
		}
		if field.Type == "" {
			switch n.Data {
			case htmlElementTextarea:
				field.Type = htmlElementTextarea
			case htmlElementSelect:
				field.Type = htmlElementSelect
			default:
				field.Type = "text"
			}
		}
		form.Inputs = append(form.Inputs, field)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.extractFormFields(c, form)
	}
}

// resolveURL resolves a relative URL against the base URL. Pseudo-URLs
// and bare fragments resolve to the empty string.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") ||
		href == "#" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(u).String()
}

// textContent returns the whitespace-normalized text below n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// getAttr returns the value of the named attribute, or "" when absent.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}
