// Package catalog provides the signature catalogue and the case matcher.
//
// A Catalog maps tracker domains and JavaScript call fragments to canonical
// trackers, classifies cookies, recognizes data-collection signals and
// consent platforms, and holds the enforcement cases cited as precedent.
//
// The catalogue is data, not code: the default one is embedded YAML and a
// substitute can be loaded from a file. Every document is validated against
// an embedded JSON Schema, and every category value is checked against the
// model enums, before a Catalog is built.
//
// A Catalog is never global. Callers construct one and pass it to both the
// extractor and the analyzer:
//
//	cat, err := catalog.Default()
//	extractor := crawler.NewExtractor(client, cat)
//	analyzer := gap.NewAnalyzer(cat)
package catalog
