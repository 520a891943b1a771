package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/privacygap/internal/catalog"
	"github.com/nao1215/privacygap/internal/model"
)

// NewCatalogCmd creates the catalog command.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the signature catalogue and enforcement cases",
		Long: `Catalog prints the version and size of the signature catalogue.

With --cases it ranks the enforcement cases that share the given violation
tags, the same lookup a scan uses to attach precedents to each gap.

Examples:
  # Show the built-in catalogue
  privacygap catalog

  # Validate and show a custom catalogue
  privacygap catalog --catalogue my-catalogue.yaml

  # Find the three closest cases for advertising without consent
  privacygap catalog --cases advertising,consent --limit 3`,
		Args: cobra.NoArgs,
		RunE: runCatalogCmd,
	}

	cmd.Flags().String("catalogue", "",
		"Catalogue file to inspect instead of the built-in catalogue")
	cmd.Flags().StringSlice("cases", nil,
		"Violation tags to match against enforcement cases (comma separated)")
	cmd.Flags().Int("limit", catalog.DefaultCaseLimit,
		"Maximum number of cases to show")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

// catalogSummary is the JSON shape of the catalog command.
type catalogSummary struct {
	Version          string          `json:"version"`
	Trackers         int             `json:"trackers"`
	InlineCalls      int             `json:"inline_calls"`
	Cookies          int             `json:"cookie_signatures"`
	Signals          int             `json:"signals"`
	ConsentProviders int             `json:"consent_providers"`
	Cases            int             `json:"cases"`
	Tags             []string        `json:"query_tags,omitempty"`
	Matches          []model.CaseRef `json:"matches,omitempty"`
}

// runCatalogCmd executes the catalog command.
func runCatalogCmd(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("catalogue")
	if err != nil {
		return err
	}
	tags, err := cmd.Flags().GetStringSlice("cases")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cat, err := loadCatalogue(path)
	if err != nil {
		return err
	}

	summary := summarizeCatalogue(cat)
	if len(tags) > 0 {
		summary.Tags = normalizeTags(tags)
		summary.Matches = cat.MatchCases(summary.Tags, limit)
	}

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	}
	writeCatalogText(cmd.OutOrStdout(), summary)
	return nil
}

func summarizeCatalogue(cat *catalog.Catalog) catalogSummary {
	return catalogSummary{
		Version:          cat.Version(),
		Trackers:         len(cat.Trackers()),
		InlineCalls:      len(cat.InlineCalls()),
		Cookies:          len(cat.Cookies()),
		Signals:          len(cat.Signals()),
		ConsentProviders: len(cat.Consent().Providers),
		Cases:            len(cat.Cases()),
	}
}

// normalizeTags lower-cases tags and drops empty ones.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func writeCatalogText(w io.Writer, s catalogSummary) {
	fmt.Fprintf(w, "Catalogue version %s\n", s.Version)
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "  %-20s %d\n", "Tracker domains", s.Trackers)
	fmt.Fprintf(w, "  %-20s %d\n", "Inline calls", s.InlineCalls)
	fmt.Fprintf(w, "  %-20s %d\n", "Cookie signatures", s.Cookies)
	fmt.Fprintf(w, "  %-20s %d\n", "Data signals", s.Signals)
	fmt.Fprintf(w, "  %-20s %d\n", "Consent providers", s.ConsentProviders)
	fmt.Fprintf(w, "  %-20s %d\n", "Enforcement cases", s.Cases)

	if s.Tags == nil {
		return
	}

	fmt.Fprintf(w, "\nCases matching %s:\n", strings.Join(s.Tags, ", "))
	if len(s.Matches) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for i, c := range s.Matches {
		fmt.Fprintf(w, "  %d. %s %d, %s ($%s) by %s\n", i+1, c.Company, c.Year, c.Fine, humanize.Comma(c.FineUSD), c.Authority)
		fmt.Fprintf(w, "     %s [%s]\n", c.Violation, strings.Join(c.Tags, ", "))
	}
}
