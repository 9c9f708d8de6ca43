// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: The scan report's JSON shape, for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown with a mermaid pie chart
//   - CSVWriter: One row per broken link, for spreadsheets
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
