package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for privacygap.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "privacygap",
		Short: "Evidence-gated privacy compliance gap scanner",
		Long: `privacygap scans public websites for privacy compliance gaps.

It fetches a site's landing page, privacy policy and one signup or login
page, records the trackers, cookies, forms and consent banner it observes,
and reports only the gaps that evidence supports. Each gap cites the
regulations it touches, estimates the dollar exposure, and lists real
enforcement cases with overlapping violations.

Scans are stored locally so later scans can be compared.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewCatalogCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
