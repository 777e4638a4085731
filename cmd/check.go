package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/edital-monitor/internal/extract"
	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

const sampleLength = 500

type checkOptions struct {
	url      string
	keywords []string
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch the page once and report extracted text and keyword hits",
		Long: `check runs a single fetch and extraction against the configured page
(or --url) without starting the monitor, printing the response size, the
first headings, a text sample and which keywords were found.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgs, logger, err := bootstrap(root)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfgs, logger)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer a.Close()

			cfg := cfgs.Current()
			target := opts.url
			if target == "" {
				target = cfg.URL
			}
			keywords := opts.keywords
			if len(keywords) == 0 {
				keywords = cfg.Keywords
			}
			return runCheck(cmd, cmd.OutOrStdout(), a.Fetcher(), a.Extractor(), target, keywords)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "page to check instead of the configured url")
	cmd.Flags().StringSliceVar(&opts.keywords, "keywords", nil, "keywords to test instead of the configured ones")
	return cmd
}

func runCheck(
	cmd *cobra.Command,
	out io.Writer,
	fetcher monitor.Fetcher,
	extractor monitor.Extractor,
	target string,
	keywords []string,
) error {
	rule := strings.Repeat("=", 80)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "CONNECTION AND EXTRACTION CHECK")
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "[%s] url: %s\n\n", time.Now().Format("15:04:05"), target)

	doc, err := fetcher.Fetch(cmd.Context(), target)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	fmt.Fprintf(out, "status: %d\n", doc.StatusCode)
	fmt.Fprintf(out, "response size: %d bytes\n", len(doc.Body))
	fmt.Fprintf(out, "fetch time: %s\n", doc.Duration.Round(time.Millisecond))

	headings, err := extract.Headings(doc.Body, 5)
	if err == nil && len(headings) > 0 {
		fmt.Fprintln(out, "\nheadings:")
		for i, h := range headings {
			fmt.Fprintf(out, "%d. %s\n", i+1, h)
		}
	}

	text, err := extractor.Extract(doc.Body)
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}
	fmt.Fprintf(out, "\ntext length: %d characters\n", len([]rune(text)))
	fmt.Fprintln(out, "sample:")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	fmt.Fprintln(out, truncateRunes(text, sampleLength))
	fmt.Fprintln(out, strings.Repeat("-", 80))

	set := monitor.NewKeywordSet(keywords)
	found := monitor.Scan(text, set)
	hits := make(map[string]bool, len(found))
	for _, kw := range found {
		hits[kw] = true
	}
	fmt.Fprintln(out, "\nkeywords:")
	for _, kw := range set.Words() {
		if hits[kw] {
			fmt.Fprintf(out, "[OK] %q found\n", kw)
		} else {
			fmt.Fprintf(out, "[--] %q not found\n", kw)
		}
	}
	fmt.Fprintln(out, rule)
	if len(found) > 0 {
		fmt.Fprintf(out, "check complete: %d keyword(s) found: %s\n", len(found), strings.Join(found, ", "))
	} else {
		fmt.Fprintln(out, "check complete: no keywords found")
	}
	fmt.Fprintln(out, rule)
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
