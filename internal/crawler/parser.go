package crawler

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Parser extracts anchor targets from HTML documents.
type Parser struct{}

// ParseResult holds what the scanner needs from one page.
type ParseResult struct {
	// Title is the text of the first <title> element.
	Title string

	// Hrefs holds the raw href value of every <a> element in document
	// order. Anchors without an href attribute contribute an empty string.
	Hrefs []string
}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses an HTML document and collects its anchors.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	root, err := html.Parse(content)
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(root)

	result := &ParseResult{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Hrefs: make([]string, 0),
	}

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		result.Hrefs = append(result.Hrefs, href)
	})

	return result, nil
}
