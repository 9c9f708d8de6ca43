package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/linkscan/internal/config"
	"github.com/nao1215/linkscan/internal/database"
	"github.com/nao1215/linkscan/internal/model"
	"github.com/nao1215/linkscan/internal/report"
)

// Trend values of a comparison.
const (
	trendWorsened  = "worsened"
	trendImproved  = "improved"
	trendUnchanged = "unchanged"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host]",
		Short: "Compare scan results with earlier scans",
		Long: `History shows how the broken links of a site changed between scans.

By default the latest scan is compared with the one before it:
- links that are broken now but were not before
- links that were broken before and are not any more
- changes in the page, link and broken link counts

Reports are stored by 'linkscan scan' unless --no-save is given.

Examples:
  # Compare the latest two scans of a site
  linkscan history example.com

  # List all stored scans of a site
  linkscan history --list example.com

  # Compare the latest scan with a specific earlier scan (row ID or scan UUID)
  linkscan history --with-scan-id 5 example.com

  # Print a stored report again
  linkscan history --show latest example.com
  linkscan history --show 5

  # Output the comparison as JSON
  linkscan history --json example.com

  # List every site in the database
  linkscan history --list-sites`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List scan history for the specified host")
	cmd.Flags().BoolP("list-sites", "L", false,
		"List all scanned sites in the database")
	cmd.Flags().StringP("with-scan-id", "i", "",
		"Compare with a specific scan by row ID or scan UUID (use --list to see available IDs)")
	cmd.Flags().StringP("show", "s", "",
		"Print a stored report by row ID, scan UUID or 'latest'")
	cmd.Flags().BoolP("json", "j", false,
		"Output result in JSON format")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	host       string
	list       bool
	listSites  bool
	withScanID string
	show       string
	json       bool
}

// latestScan selects the newest report of a host in history --show.
const latestScan = "latest"

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	var opts historyOptions
	var err error

	opts.listSites, err = cmd.Flags().GetBool("list-sites")
	if err != nil {
		return err
	}
	opts.list, err = cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	opts.withScanID, err = cmd.Flags().GetString("with-scan-id")
	if err != nil {
		return err
	}
	opts.show, err = cmd.Flags().GetString("show")
	if err != nil {
		return err
	}
	opts.json, err = cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	// Validate before opening the database so a bad invocation never
	// creates or locks it. A report shown by ID needs no host.
	needsHost := !opts.listSites && (opts.show == "" || opts.show == latestScan)
	if needsHost && len(args) == 0 {
		return errors.New("host is required (use --list-sites to see available sites)")
	}
	if len(args) > 0 {
		opts.host = config.HostOf(args[0])
		if opts.host == "" {
			return fmt.Errorf("invalid host: %q", args[0])
		}
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runHistory(cmd.Context(), db, opts, cmd.OutOrStdout())
}

// runHistory dispatches to the listing or comparison views.
func runHistory(ctx context.Context, db *database.ScanDB, opts historyOptions, out io.Writer) error {
	switch {
	case opts.listSites:
		return listScannedSites(ctx, db, opts.json, out)
	case opts.show != "":
		return showScanReport(ctx, db, opts.host, opts.show, opts.json, out)
	case opts.list:
		return listScanHistory(ctx, db, opts.host, opts.json, out)
	default:
		return runComparison(ctx, db, opts.host, opts.withScanID, opts.json, out)
	}
}

// listScannedSites lists every host with stored reports.
func listScannedSites(ctx context.Context, db *database.ScanDB, jsonOutput bool, out io.Writer) error {
	sites, err := db.ListScannedSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if jsonOutput {
		if sites == nil {
			sites = []string{}
		}
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(sites)
		return err
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No scanned sites found in the database.")
		fmt.Fprintln(out, "\nUse 'linkscan scan <url>' to scan a site.")
		return nil
	}

	fmt.Fprintf(out, "Scanned sites (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Fprintf(out, "  • %s\n", site)
	}
	fmt.Fprintln(out, "\nUse 'linkscan history --list <host>' to see the scan history of a site.")

	return nil
}

// listScanHistory lists the stored scans of one host, newest first.
func listScanHistory(ctx context.Context, db *database.ScanDB, host string, jsonOutput bool, out io.Writer) error {
	history, err := db.GetScanHistoryWithMetadata(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if jsonOutput {
		if history == nil {
			history = []database.ScanReportMetadata{}
		}
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(history)
		return err
	}

	if len(history) == 0 {
		fmt.Fprintf(out, "No scan history found for %s\n", host)
		fmt.Fprintln(out, "\nUse 'linkscan scan' to scan this site.")
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s (%d scans):\n\n", host, len(history))

	tbl := table.New("ID", "Date", "Pages", "Links", "Broken").WithWriter(out)
	for _, meta := range history {
		tbl.AddRow(meta.ID, meta.Timestamp.Format(historyTimeLayout), meta.ScannedCount, meta.TotalLinks, meta.BrokenCount)
	}
	tbl.Print()

	fmt.Fprintln(out, "\nUse 'linkscan history <host>' to compare the latest two scans.")
	fmt.Fprintln(out, "Use 'linkscan history --with-scan-id <id> <host>' to compare with a specific scan.")

	return nil
}

// showScanReport prints one stored report. ref is a row ID, a scan UUID,
// or "latest" for the newest report of host.
func showScanReport(ctx context.Context, db *database.ScanDB, host, ref string, jsonOutput bool, out io.Writer) error {
	var (
		stored *model.ScanReport
		err    error
	)
	if ref == latestScan {
		stored, err = db.GetLatestScanReport(ctx, host)
	} else if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		stored, err = db.GetScanReportByID(ctx, id)
	} else {
		stored, err = db.GetScanReportByScanID(ctx, ref)
	}
	if err != nil {
		return fmt.Errorf("failed to get scan %s: %w", ref, err)
	}

	var w report.Writer = report.NewSimpleWriter(out)
	if jsonOutput {
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	}
	_, err = w.Write(stored)
	return err
}

// ComparisonResult holds the result of comparing two scan reports.
type ComparisonResult struct {
	// Host is the site both scans belong to.
	Host string `json:"host"`

	// PreviousScan describes the older scan.
	PreviousScan ScanSummary `json:"previous_scan"`

	// CurrentScan describes the latest scan.
	CurrentScan ScanSummary `json:"current_scan"`

	// NewlyBroken lists links broken now but not in the previous scan.
	NewlyBroken []model.BrokenLink `json:"newly_broken"`

	// Fixed lists links broken in the previous scan but not now.
	Fixed []model.BrokenLink `json:"fixed"`

	// StillBroken counts links broken in both scans.
	StillBroken int `json:"still_broken"`

	// Trend is worsened, improved or unchanged, by broken link count.
	Trend string `json:"trend"`
}

// ScanSummary holds the counters of one scan.
type ScanSummary struct {
	ID           int64     `json:"id"`
	ScanID       string    `json:"scan_id"`
	DateScanned  time.Time `json:"date_scanned"`
	ScannedCount int       `json:"scanned_count"`
	TotalLinks   int       `json:"total_links"`
	BrokenCount  int       `json:"broken_count"`
}

// runComparison compares the latest scan of host with the previous one,
// or with the scan matching withScanID (row ID or scan UUID). The diff is
// built from the stored broken links, so full reports are never loaded.
func runComparison(ctx context.Context, db *database.ScanDB, host, withScanID string, jsonOutput bool, out io.Writer) error {
	history, err := db.GetScanHistoryWithMetadata(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(history) == 0 {
		return fmt.Errorf("no scan history found for %s", host)
	}
	if len(history) < 2 && withScanID == "" {
		return fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(history))
	}

	currentMeta := history[0]
	var previousMeta database.ScanReportMetadata
	if withScanID != "" {
		found := false
		for _, meta := range history {
			if meta.ScanID == withScanID || strconv.FormatInt(meta.ID, 10) == withScanID {
				previousMeta, found = meta, true
				break
			}
		}
		if !found {
			return fmt.Errorf("scan with ID %s not found for %s", withScanID, host)
		}
	} else {
		previousMeta = history[1]
	}

	currentBroken, err := db.GetBrokenLinks(ctx, currentMeta.ScanID)
	if err != nil {
		return fmt.Errorf("failed to get broken links of scan %d: %w", currentMeta.ID, err)
	}
	previousBroken, err := db.GetBrokenLinks(ctx, previousMeta.ScanID)
	if err != nil {
		return fmt.Errorf("failed to get broken links of scan %d: %w", previousMeta.ID, err)
	}

	result := compareScans(host, previousMeta, currentMeta, previousBroken, currentBroken)

	if jsonOutput {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(result)
		return err
	}
	return outputComparisonText(result, out)
}

// compareScans diffs the broken links of two scans by target URL.
func compareScans(host string, previousMeta, currentMeta database.ScanReportMetadata, previous, current []model.BrokenLink) *ComparisonResult {
	linkSet := func(links []model.BrokenLink) mapset.Set[string] {
		set := mapset.NewThreadUnsafeSet[string]()
		for _, b := range links {
			set.Add(b.Link)
		}
		return set
	}
	prevSet := linkSet(previous)
	currSet := linkSet(current)

	result := &ComparisonResult{
		Host:         host,
		PreviousScan: summarize(previousMeta),
		CurrentScan:  summarize(currentMeta),
		NewlyBroken:  make([]model.BrokenLink, 0),
		Fixed:        make([]model.BrokenLink, 0),
		StillBroken:  prevSet.Intersect(currSet).Cardinality(),
	}

	for _, b := range current {
		if !prevSet.Contains(b.Link) {
			result.NewlyBroken = append(result.NewlyBroken, b)
		}
	}
	for _, b := range previous {
		if !currSet.Contains(b.Link) {
			result.Fixed = append(result.Fixed, b)
		}
	}

	switch delta := currentMeta.BrokenCount - previousMeta.BrokenCount; {
	case delta > 0:
		result.Trend = trendWorsened
	case delta < 0:
		result.Trend = trendImproved
	default:
		result.Trend = trendUnchanged
	}

	return result
}

func summarize(meta database.ScanReportMetadata) ScanSummary {
	return ScanSummary{
		ID:           meta.ID,
		ScanID:       meta.ScanID,
		DateScanned:  meta.Timestamp,
		ScannedCount: meta.ScannedCount,
		TotalLinks:   meta.TotalLinks,
		BrokenCount:  meta.BrokenCount,
	}
}

// outputComparisonText writes the comparison in human-readable form.
func outputComparisonText(result *ComparisonResult, out io.Writer) error {
	fmt.Fprintf(out, "Scan Comparison: %s\n", result.Host)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nStatus: %s\n", formatTrend(result.Trend))
	fmt.Fprintf(out, "\nPrevious scan: %s (ID %d)\n", result.PreviousScan.DateScanned.Format(historyTimeLayout), result.PreviousScan.ID)
	fmt.Fprintf(out, "Current scan:  %s (ID %d)\n", result.CurrentScan.DateScanned.Format(historyTimeLayout), result.CurrentScan.ID)

	fmt.Fprintln(out, "\nSummary:")
	tbl := table.New("", "Previous", "Current", "Change").WithWriter(out)
	tbl.AddRow("Pages", result.PreviousScan.ScannedCount, result.CurrentScan.ScannedCount,
		formatDelta(result.CurrentScan.ScannedCount-result.PreviousScan.ScannedCount))
	tbl.AddRow("Links", result.PreviousScan.TotalLinks, result.CurrentScan.TotalLinks,
		formatDelta(result.CurrentScan.TotalLinks-result.PreviousScan.TotalLinks))
	tbl.AddRow("Broken", result.PreviousScan.BrokenCount, result.CurrentScan.BrokenCount,
		formatDelta(result.CurrentScan.BrokenCount-result.PreviousScan.BrokenCount))
	tbl.Print()

	if len(result.NewlyBroken) > 0 {
		fmt.Fprintf(out, "\nNewly Broken (%d):\n", len(result.NewlyBroken))
		for _, b := range result.NewlyBroken {
			fmt.Fprintf(out, "  [+] %s (%s)\n", b.Link, brokenDetail(b))
			fmt.Fprintf(out, "      Found on: %s\n", b.SourcePage)
		}
	}

	if len(result.Fixed) > 0 {
		fmt.Fprintf(out, "\nFixed (%d):\n", len(result.Fixed))
		for _, b := range result.Fixed {
			fmt.Fprintf(out, "  [-] %s\n", b.Link)
		}
	}

	if result.StillBroken > 0 {
		fmt.Fprintf(out, "\nStill broken: %d links\n", result.StillBroken)
	}

	return nil
}

func brokenDetail(b model.BrokenLink) string {
	if b.Error != nil {
		return *b.Error
	}
	return b.StatusText()
}

// formatTrend formats the trend for display.
func formatTrend(trend string) string {
	switch trend {
	case trendImproved:
		return "IMPROVED (fewer broken links)"
	case trendWorsened:
		return "WORSENED (more broken links)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
