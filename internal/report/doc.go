// Package report renders scan reports.
//
// Three formats implement the Writer interface:
//   - SimpleWriter: text for terminal display, optionally colored
//   - JSONWriter and FullJSONWriter: JSON for tool integration
//   - MarkdownWriter: GitHub-flavored Markdown with a severity chart
//
// Writers can be composed with MultiWriter. Compare diffs two stored scans
// of the same domain, and the WriteComparison functions render the result.
package report
