package crawler

import (
	"bytes"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/nao1215/privacygap/internal/model"
)

const (
	// MaxPolicyText caps stored policy text, in characters.
	MaxPolicyText = 15000

	// policyFullLen is the length above which confirmed text is trusted.
	policyFullLen = 300

	// policyPartialLen is the length above which text is kept at low confidence.
	policyPartialLen = 200
)

// Policy retrieval errors recorded on the evidence record.
const (
	MsgPolicyPartial  = "Privacy policy page found but text may be incomplete (JS-rendered site)"
	MsgPolicyTooShort = "Privacy policy URL found but page contained very little readable text, likely requires JavaScript to render"
	MsgPolicyNotFound = "Could not automatically locate a privacy policy page. Supply the policy URL or text in the site config for a complete analysis."
	MsgPolicyPasted   = "Supplied privacy policy text is too short for a reliable analysis"
)

var (
	// policyLinkPhrases identify policy links by their visible text.
	policyLinkPhrases = []string{"privacy policy", "privacy notice", "privacy statement", "data policy", "privacy"}

	// policyPaths are tried in order when the page links no policy.
	policyPaths = []string{
		"/privacy",
		"/privacy-policy",
		"/legal/privacy-policy",
		"/legal/privacy",
		"/privacy/policy",
		"/about/privacy",
		"/policies/privacy",
		"/en/privacy",
		"/legal",
		"/terms/privacy",
		"/en-us/privacy",
		"/en-gb/privacy",
		"/us/legal/privacy",
		"/help/privacy",
		"/info/privacy",
		"/pages/privacy",
		"/privacy.html",
		"/site/privacy",
	}

	// policyConfirmKeywords must appear in a guessed page for it to count.
	policyConfirmKeywords = []string{"privacy policy", "privacy notice", "personal data", "personal information", "data protection", "we collect"}

	// policyContentWords confirm that extracted text is a policy.
	policyContentWords = []string{"privacy", "personal data", "we collect", "information"}

	// policyChromeTags never contain policy text.
	policyChromeTags = []string{"script", "style", "nav", "header", "footer", "aside", "noscript"}

	// policyContainerHints mark a div as the page's content area.
	policyContainerHints = []string{"content", "body", "main", "policy", "privacy"}
)

// findPolicyLink returns the first anchor whose text names a policy or
// whose link mentions "privacy".
func findPolicyLink(page *model.Page) string {
	pageHost := ""
	if u, err := url.Parse(page.FinalURL); err == nil {
		pageHost = u.Host
	}
	for _, a := range page.Anchors {
		text := strings.ToLower(a.Text)
		if containsAny(text, policyLinkPhrases) || hrefMentionsPrivacy(a.Source, pageHost) {
			return a.Source
		}
	}
	return ""
}

// hrefMentionsPrivacy checks the part of href the site chose. The host is
// only considered for links that leave the page's host.
func hrefMentionsPrivacy(href, pageHost string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	checked := u.RequestURI()
	if u.Host != pageHost {
		checked = u.Host + checked
	}
	return strings.Contains(strings.ToLower(checked), "privacy")
}

// policyCandidatePaths returns the candidate paths for domain, ending with the
// site-named path such as "/depop/privacy".
func policyCandidatePaths(domain string) []string {
	first, _, _ := strings.Cut(domain, ".")
	return append(slices.Clone(policyPaths), "/"+first+"/privacy")
}

// confirmsPolicy reports whether a fetched candidate body looks like a policy page.
func confirmsPolicy(body []byte) bool {
	return containsAny(strings.ToLower(string(body)), policyConfirmKeywords)
}

// extractPolicyText returns the readable text of a policy page. Page chrome
// is dropped and a main content container is preferred when one exists.
func extractPolicyText(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	removeNodes(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && slices.Contains(policyChromeTags, n.Data)
	})

	root := doc
	for _, match := range []func(*html.Node) bool{
		func(n *html.Node) bool { return n.Data == "main" },
		func(n *html.Node) bool { return n.Data == "article" },
		func(n *html.Node) bool { return strings.EqualFold(getAttr(n, "role"), "main") },
		func(n *html.Node) bool {
			return n.Data == "div" && containsAny(strings.ToLower(getAttr(n, "class")), policyContainerHints)
		},
	} {
		if n := findElement(doc, match); n != nil {
			root = n
			break
		}
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if line := strings.TrimSpace(n.Data); line != "" {
				lines = append(lines, line)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return truncate(strings.Join(lines, "\n"), MaxPolicyText)
}

// assessPolicy decides how far extracted text can be trusted. The returned
// message is empty for high confidence. Short text is kept at low confidence
// so a thin page is not mistaken for a missing policy.
func assessPolicy(text string) (kept string, confidence model.Confidence, msg string) {
	n := utf8.RuneCountInString(text)
	switch {
	case n > policyFullLen && containsAny(strings.ToLower(text), policyContentWords):
		return text, model.ConfidenceHigh, ""
	case n > policyPartialLen:
		return text, model.ConfidenceLow, MsgPolicyPartial
	default:
		return text, model.ConfidenceLow, MsgPolicyTooShort
	}
}

// assessPastedPolicy trusts supplied text once it is long enough.
func assessPastedPolicy(text string) (kept string, confidence model.Confidence, msg string) {
	text = truncate(strings.TrimSpace(text), MaxPolicyText)
	if utf8.RuneCountInString(text) > policyPartialLen {
		return text, model.ConfidenceHigh, ""
	}
	return text, model.ConfidenceLow, MsgPolicyPasted
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func removeNodes(n *html.Node, drop func(*html.Node) bool) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if drop(c) {
			n.RemoveChild(c)
		} else {
			removeNodes(c, drop)
		}
		c = next
	}
}
