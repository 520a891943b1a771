package crawler

import (
	"net/url"
	"slices"
	"strings"

	"github.com/nao1215/privacygap/internal/catalog"
	"github.com/nao1215/privacygap/internal/model"
)

const (
	// maxScriptSourceLen caps recorded third-party script sources.
	maxScriptSourceLen = 150

	// ScriptKindScript marks a third-party <script src>.
	ScriptKindScript = "script"
	// ScriptKindPreconnect marks a preconnect or dns-prefetch hint.
	ScriptKindPreconnect = "preconnect"
)

// detectTrackers runs every detection channel over page. Channels run in
// model.DetectionChannels order and the first channel to report a tracker
// name keeps it.
func detectTrackers(cat *catalog.Catalog, page *model.Page, origin string) []model.Tracker {
	found := make([]model.Tracker, 0)

	for _, src := range page.ScriptSources() {
		if sig, ok := matchSource(cat, src); ok {
			found = appendTracker(found, sig.Tracker(model.ChannelScriptSrc, origin))
		}
	}

	for _, img := range page.Images {
		if sig, ok := matchSource(cat, img.Source); ok {
			found = appendTracker(found, sig.Tracker(model.ChannelPixelImg, origin))
		}
	}

	for _, script := range page.InlineScripts() {
		for _, call := range cat.MatchInline(script) {
			found = appendTracker(found, call.Tracker(origin))
		}
	}

	for _, sig := range cat.FindInMarkup(strings.ToLower(page.Body())) {
		found = appendTracker(found, sig.Tracker(model.ChannelHTML, origin))
	}

	return found
}

func matchSource(cat *catalog.Catalog, raw string) (catalog.TrackerSignature, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return catalog.TrackerSignature{}, false
	}
	return cat.MatchURL(u.Hostname(), u.Path)
}

// appendTracker appends t unless a tracker with the same name is present.
func appendTracker(dst []model.Tracker, t model.Tracker) []model.Tracker {
	if slices.ContainsFunc(dst, func(x model.Tracker) bool { return x.Name == t.Name }) {
		return dst
	}
	return append(dst, t)
}

// mergeTrackers appends the trackers of src whose names dst lacks.
func mergeTrackers(dst, src []model.Tracker) []model.Tracker {
	for _, t := range src {
		dst = appendTracker(dst, t)
	}
	return dst
}

// detectThirdPartyScripts lists external scripts and connection hints whose
// registrable domain differs from the site's, one entry per domain.
func detectThirdPartyScripts(page *model.Page, siteDomain string) []model.ThirdPartyScript {
	site := registrableDomain(siteDomain)
	out := make([]model.ThirdPartyScript, 0)

	add := func(raw, kind string) {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
			return
		}
		domain := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if registrableDomain(domain) == site {
			return
		}
		if slices.ContainsFunc(out, func(s model.ThirdPartyScript) bool { return s.Domain == domain }) {
			return
		}
		out = append(out, model.ThirdPartyScript{
			Domain: domain,
			Source: truncate(raw, maxScriptSourceLen),
			Kind:   kind,
		})
	}

	for _, src := range page.ScriptSources() {
		add(src, ScriptKindScript)
	}
	for _, link := range page.Links {
		rels := strings.Fields(link.Rel)
		if slices.Contains(rels, "preconnect") || slices.Contains(rels, "dns-prefetch") {
			add(link.Source, ScriptKindPreconnect)
		}
	}
	return out
}

// crossReference folds third-party domains that embed a catalogue key into
// the tracker list with the script_src channel.
func crossReference(cat *catalog.Catalog, trackers []model.Tracker, scripts []model.ThirdPartyScript, origin string) []model.Tracker {
	for _, s := range scripts {
		for _, sig := range cat.FindInDomain(s.Domain) {
			trackers = appendTracker(trackers, sig.Tracker(model.ChannelScriptSrc, origin))
		}
	}
	return trackers
}

// detectSignals matches catalogue signal signatures against page markup.
func detectSignals(cat *catalog.Catalog, page *model.Page, origin string) []model.DataSignal {
	out := make([]model.DataSignal, 0)
	for _, s := range cat.MatchSignals(strings.ToLower(page.Body())) {
		out = append(out, model.DataSignal{
			Category:    s.Category,
			Signature:   s.Signature,
			Description: s.Description,
			OriginPage:  origin,
		})
	}
	return out
}

// mergeSignals appends the signals of src whose signature dst lacks.
func mergeSignals(dst, src []model.DataSignal) []model.DataSignal {
	for _, s := range src {
		if !slices.ContainsFunc(dst, func(x model.DataSignal) bool { return x.Signature == s.Signature }) {
			dst = append(dst, s)
		}
	}
	return dst
}
