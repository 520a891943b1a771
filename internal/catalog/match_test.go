package catalog

import (
	"testing"

	"github.com/nao1215/privacygap/internal/model"
)

func TestMatchURL(t *testing.T) {
	t.Parallel()

	c := mustDefault(t)
	testCases := []struct {
		name     string
		host     string
		path     string
		wantName string
	}{
		{"exact domain", "googletagmanager.com", "/gtm.js", "Google Tag Manager"},
		{"subdomain", "www.googletagmanager.com", "/gtm.js", "Google Tag Manager"},
		{"most specific key wins", "connect.facebook.net", "/en_US/fbevents.js", "Facebook SDK"},
		{"path key", "www.facebook.com", "/tr", "Meta Tracking Pixel"},
		{"path key with subpath", "www.facebook.com", "/tr/", "Meta Tracking Pixel"},
		{"path key does not match longer segment", "www.facebook.com", "/trending", ""},
		{"case insensitive", "STATIC.HOTJAR.COM", "/c/hotjar.js", "Hotjar"},
		{"lookalike domain", "nothotjar.com", "/", ""},
		{"uncatalogued", "cdn.example.com", "/app.js", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sig, ok := c.MatchURL(tc.host, tc.path)
			if tc.wantName == "" {
				if ok {
					t.Errorf("expected no match, got %q", sig.Name)
				}
				return
			}
			if !ok || sig.Name != tc.wantName {
				t.Errorf("MatchURL(%q, %q) = %q, %v; want %q", tc.host, tc.path, sig.Name, ok, tc.wantName)
			}
		})
	}
}

func TestFindInMarkup(t *testing.T) {
	t.Parallel()

	c := mustDefault(t)

	t.Run("single script domain", func(t *testing.T) {
		t.Parallel()
		got := c.FindInMarkup(`<script src="https://www.googletagmanager.com/gtm.js?id=gtm-1"></script>`)
		if len(got) != 1 || got[0].Name != "Google Tag Manager" {
			t.Errorf("FindInMarkup = %+v", got)
		}
	})

	t.Run("short key needs label boundaries", func(t *testing.T) {
		t.Parallel()
		got := c.FindInMarkup(`<a href="https://chat.com">x</a> <a href="https://widget.company.example">y</a>`)
		for _, sig := range got {
			if sig.Key == "t.co" {
				t.Errorf("t.co must not match inside longer labels: %+v", got)
			}
		}
		got = c.FindInMarkup(`<a href="https://t.co/abc">x</a>`)
		if len(got) != 1 || got[0].Key != "t.co" {
			t.Errorf("t.co link should match: %+v", got)
		}
	})

	t.Run("subdomain keys match both entries", func(t *testing.T) {
		t.Parallel()
		got := c.FindInMarkup(`//analytics.tiktok.com/i18n/pixel/events.js`)
		names := map[string]bool{}
		for _, sig := range got {
			names[sig.Name] = true
		}
		if !names["TikTok Pixel"] || !names["TikTok Analytics"] {
			t.Errorf("expected both TikTok entries, got %+v", got)
		}
	})
}

func TestFindInDomain(t *testing.T) {
	t.Parallel()

	c := mustDefault(t)
	if got := c.FindInDomain("px.ads.linkedin.com"); len(got) != 1 || got[0].Name != "LinkedIn Ads" {
		t.Errorf("FindInDomain(px.ads.linkedin.com) = %+v", got)
	}
	if got := c.FindInDomain("widget.com"); len(got) != 0 {
		t.Errorf("FindInDomain(widget.com) = %+v", got)
	}
}

func TestMatchInline(t *testing.T) {
	t.Parallel()

	c := mustDefault(t)
	got := c.MatchInline(`window.dataLayer=[];function gtag(){dataLayer.push(arguments)} gtag('js', new Date()); fbq('init','1');`)
	if len(got) != 2 || got[0].Name != "Google Analytics/Ads" || got[1].Name != "Meta Pixel" {
		t.Errorf("MatchInline = %+v", got)
	}

	if got := c.MatchInline(`GTAG('x')`); len(got) != 0 {
		t.Errorf("inline matching must be case sensitive, got %+v", got)
	}
}

func TestClassifyCookie(t *testing.T) {
	t.Parallel()

	c := mustDefault(t)
	testCases := []struct {
		name string
		want model.CookieClass
	}{
		{"_fbp", model.CookieAdvertising},
		{"_gcl_au", model.CookieAdvertising},
		{"fr", model.CookieAdvertising},
		{"NID", model.CookieAdvertising},
		{"_ga", model.CookieAnalytics},
		{"_ga_ABC123", model.CookieAnalytics},
		{"_hjSessionUser_123", model.CookieAnalytics},
		{"mp_abc_mixpanel", model.CookieAnalytics},
		{"PHPSESSID", model.CookieEssential},
		{"csrftoken", model.CookieEssential},
		{"nid_session", model.CookieEssential},
		{"frontend_lang", model.CookieUnknown},
		{"theme", model.CookieUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := c.ClassifyCookie(tc.name); got != tc.want {
				t.Errorf("ClassifyCookie(%q) = %q, want %q", tc.name, got, tc.want)
			}
		})
	}
}

func TestMatchSignals(t *testing.T) {
	t.Parallel()

	c := mustDefault(t)
	got := c.MatchSignals(`navigator.geolocation.getcurrentposition(cb); new rtcpeerconnection();`)
	if len(got) != 3 {
		t.Fatalf("expected 3 signals, got %+v", got)
	}
	if got[0].Category != model.SignalGeolocation || got[1].Category != model.SignalGeolocation || got[2].Category != model.SignalWebRTC {
		t.Errorf("unexpected signal order: %+v", got)
	}
}

func TestMatchConsentProvider(t *testing.T) {
	t.Parallel()

	c := mustDefault(t)
	p, ok := c.MatchConsentProvider(`<script src="https://cdn.cookielaw.org/onetrust/otsdkstub.js"></script>`)
	if !ok || p.Name != "OneTrust" {
		t.Errorf("MatchConsentProvider = %+v, %v", p, ok)
	}
	if _, ok := c.MatchConsentProvider(`<html></html>`); ok {
		t.Error("expected no provider")
	}
}
