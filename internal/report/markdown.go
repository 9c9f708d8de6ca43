package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/linkscan/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for pull request comments and issue bodies.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeBrokenLinks(md, report)
	w.writePages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("Link Scan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + report.StartURL + "`"},
			{"Pages Scanned", strconv.Itoa(report.ScannedCount) + " / " + strconv.Itoa(report.MaxPages)},
			{"Duration", report.Duration().String()},
		},
	})
	md.PlainText("")
}

// writeSummary writes the link counters, chart and alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Link Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Result", "Count"},
		Rows: [][]string{
			{"✅ OK", strconv.Itoa(report.OKCount)},
			{"❌ Broken", strconv.Itoa(report.BrokenCount)},
			{"⏭️ Skipped (non-HTTP)", strconv.Itoa(report.SkippedNonHTTP)},
			{"**Checked**", "**" + strconv.Itoa(report.TotalLinksChecked) + "**"},
		},
	})
	md.PlainText("")

	if report.TotalLinksChecked > 0 {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of healthy and broken links.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.ScanReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Link Health"),
		piechart.WithShowData(true),
	)

	if report.OKCount > 0 {
		chart.LabelAndIntValue("OK", uint64(report.OKCount))
	}
	if report.BrokenCount > 0 {
		chart.LabelAndIntValue("Broken", uint64(report.BrokenCount))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert summarizing link health.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.ScanReport) {
	switch {
	case report.HasBroken():
		pages, _ := report.BrokenBySource()
		md.Cautionf(
			"%d broken link(s) found on %d page(s).",
			report.BrokenCount, len(pages),
		)
	case report.TotalLinksChecked == 0:
		md.Note("No links were checked. The start page may not be HTML or may be unreachable.")
	default:
		md.Tip(fmt.Sprintf("All %d links are healthy.", report.TotalLinksChecked))
	}
	md.PlainText("")
}

// writeBrokenLinks writes one table of broken links per source page.
func (w *MarkdownWriter) writeBrokenLinks(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Broken Links")
	md.PlainText("")

	if !report.HasBroken() {
		md.PlainText("No broken links detected.")
		md.PlainText("")
		return
	}

	pages, groups := report.BrokenBySource()
	for _, page := range pages {
		md.H3(page)
		md.PlainText("")

		links := groups[page]
		rows := make([][]string, len(links))
		for i, b := range links {
			errText := b.ErrorText()
			if errText == "" {
				errText = "-"
			}
			rows[i] = []string{
				b.Link,
				b.StatusText(),
				truncateString(errText, 80),
			}
		}

		md.Table(markdown.TableSet{
			Header: []string{"Link", "Status", "Error"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writePages writes the scanned pages in a collapsible block.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.ScanReport) {
	if len(report.ScannedPages) == 0 {
		return
	}
	md.H2("Scanned Pages")
	md.PlainText("")
	md.BulletList(report.ScannedPages...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [linkscan](https://github.com/nao1215/linkscan)*")
}
