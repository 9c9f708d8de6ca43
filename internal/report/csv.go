package report

import (
	"bytes"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/nao1215/linkscan/internal/model"
)

// BrokenLinkRow is one CSV line of the broken-link export.
type BrokenLinkRow struct {
	StartURL   string `csv:"start_url"`
	SourcePage string `csv:"source_page"`
	Link       string `csv:"link"`
	StatusCode string `csv:"status_code"`
	Error      string `csv:"error"`
}

// CSVWriter outputs one row per broken link.
// A report without broken links produces only the header line.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the broken links of the report as CSV.
func (w *CSVWriter) Write(report *model.ScanReport) (int, error) {
	rows := brokenLinkRows(report)

	var buf bytes.Buffer
	if err := gocsv.Marshal(&rows, &buf); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

func brokenLinkRows(report *model.ScanReport) []BrokenLinkRow {
	rows := make([]BrokenLinkRow, 0, len(report.Broken))
	for _, b := range report.Broken {
		row := BrokenLinkRow{
			StartURL:   report.StartURL,
			SourcePage: b.SourcePage,
			Link:       b.Link,
			Error:      b.ErrorText(),
		}
		if b.StatusCode != nil {
			row.StatusCode = strconv.Itoa(*b.StatusCode)
		}
		rows = append(rows, row)
	}
	return rows
}
