package crawler

import (
	"strings"

	"github.com/nao1215/privacygap/internal/catalog"
	"github.com/nao1215/privacygap/internal/model"
)

const (
	maxCookieSampleLen = 50

	// headerOnlySample is the sample value of cookies the jar rejected.
	headerOnlySample = "(from header)"
)

// collectCookies gathers the cookies set by the primary fetch. Jar cookies
// come first; raw Set-Cookie headers then add any name the jar dropped, for
// example cookies scoped to another domain.
func collectCookies(cat *catalog.Catalog, page *model.Page) []model.Cookie {
	out := make([]model.Cookie, 0, len(page.Cookies))
	seen := make(map[string]struct{}, len(page.Cookies))

	for _, c := range page.Cookies {
		if _, dup := seen[c.Name]; dup || c.Name == "" {
			continue
		}
		seen[c.Name] = struct{}{}
		out = append(out, model.Cookie{
			Name:           c.Name,
			SampleValue:    sampleValue(c.Value),
			Classification: cat.ClassifyCookie(c.Name),
		})
	}

	for _, header := range page.GetAllHeaders("Set-Cookie") {
		name, _, _ := strings.Cut(header, "=")
		name = strings.TrimSpace(name)
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, model.Cookie{
			Name:           name,
			SampleValue:    headerOnlySample,
			Classification: cat.ClassifyCookie(name),
		})
	}
	return out
}

func sampleValue(v string) string {
	if cut := truncate(v, maxCookieSampleLen); cut != v {
		return cut + "..."
	}
	return v
}
