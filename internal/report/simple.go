package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/rodaine/table"

	"github.com/nao1215/linkscan/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showPages lists every scanned page after the summary.
	showPages bool

	// verbose prints full error messages instead of truncated ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowPages configures the writer to list scanned pages.
func WithShowPages(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showPages = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeBrokenLinks(&sb, report)
	w.writePages(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with scan information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         LINKSCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Start URL:      %s\n", report.StartURL)
	fmt.Fprintf(sb, "Pages Scanned:  %d / %d\n", report.ScannedCount, report.MaxPages)
	fmt.Fprintf(sb, "Duration:       %s\n", report.Duration())
	sb.WriteString("\n")
}

// writeSummary writes the link counters.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("LINK SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  CHECKED:  %d\n", report.TotalLinksChecked)
	fmt.Fprintf(sb, "  OK:       %d\n", report.OKCount)
	fmt.Fprintf(sb, "  BROKEN:   %d\n", report.BrokenCount)
	fmt.Fprintf(sb, "  SKIPPED:  %d (mailto, tel, javascript, fragments)\n", report.SkippedNonHTTP)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  HEALTHY:  %.1f%%\n", report.HealthyRatio()*100)
	sb.WriteString("\n")
}

// writeBrokenLinks writes a table of broken links grouped by source page.
func (w *SimpleWriter) writeBrokenLinks(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("BROKEN LINKS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if !report.HasBroken() {
		sb.WriteString("  No broken links found\n\n")
		return
	}

	tbl := table.New("Page", "Status", "Broken Link", "Error").WithWriter(sb)
	pages, groups := report.BrokenBySource()
	for _, page := range pages {
		for i, b := range groups[page] {
			source := ""
			if i == 0 {
				source = page
			}
			tbl.AddRow(source, b.StatusText(), b.Link, w.errorText(b))
		}
	}
	tbl.Print()
	sb.WriteString("\n")
}

func (w *SimpleWriter) errorText(b model.BrokenLink) string {
	if w.verbose {
		return b.ErrorText()
	}
	return truncateString(b.ErrorText(), 60)
}

// writePages lists every scanned page in crawl order.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.ScanReport) {
	if !w.showPages {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SCANNED PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, page := range report.ScannedPages {
		fmt.Fprintf(sb, "  [+] %s\n", page)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by linkscan\n")
	sb.WriteString("https://github.com/nao1215/linkscan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
