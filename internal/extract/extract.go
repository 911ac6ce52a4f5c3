// Package extract partitions rendered HTML into boilerplate and main
// content and decomposes the main content into a structured page record.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoContent indicates no HTML was supplied to the extractor.
var ErrNoContent = errors.New("no html content")

// minBlockLength is the minimum stripped-text length for a content block to
// be retained.
const minBlockLength = 10

// Heading is a section heading found inside the main content, level 1-6.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Block is a text-bearing content element; Type is the source tag name
// (p, li, blockquote, pre).
type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Image is an image inside the main content with its resolved absolute src.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Link is an anchor inside the main content with non-empty text and its
// resolved absolute href.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// ChunkInfo carries size statistics of the plain-text form.
type ChunkInfo struct {
	WordCount int `json:"word_count"`
	CharCount int `json:"char_count"`
}

// Page is the structured record produced for one rendered URL. It is
// immutable after extraction apart from FilePath, which persistence fills
// in when the artifact is written.
type Page struct {
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description"`
	Headings        []Heading `json:"headings"`
	ContentBlocks   []Block   `json:"content_blocks"`
	Images          []Image   `json:"images"`
	Links           []Link    `json:"links"`
	PlainText       string    `json:"plain_text"`
	ChunkInfo       ChunkInfo `json:"chunk_info"`
	FilePath        string    `json:"file_path,omitempty"`
}

// Selectors are the boilerplate and content-location selector sets. They
// are data, not code: deployments tune them through configuration.
type Selectors struct {
	Nav     []string
	Footer  []string
	Content []string
}

// DefaultSelectors returns the selector sets tuned for WordPress-style
// markup but broadly applicable.
func DefaultSelectors() Selectors {
	return Selectors{
		Nav: []string{
			"nav", "header", ".nav", ".navbar", ".navigation", "#nav", "#navbar",
			".menu", "#menu", ".header", "#header", ".site-header", "#site-header",
			".main-navigation", "#main-navigation", ".primary-menu", "#primary-menu",
		},
		Footer: []string{
			"footer", ".footer", "#footer", ".site-footer", "#site-footer",
			".bottom", "#bottom", ".site-info", "#site-info", ".copyright",
			"#copyright", ".widget-area", "#widget-area", ".sidebar", "#sidebar",
		},
		Content: []string{
			"article", ".post", "#post", ".post-content", "#post-content",
			".entry-content", "#entry-content", ".content", "#content",
			".page-content", "#page-content", "main", ".main", "#main",
		},
	}
}

func (s Selectors) withDefaults() Selectors {
	def := DefaultSelectors()
	if len(s.Nav) == 0 {
		s.Nav = def.Nav
	}
	if len(s.Footer) == 0 {
		s.Footer = def.Footer
	}
	if len(s.Content) == 0 {
		s.Content = def.Content
	}
	return s
}

// Extractor turns raw HTML into Page records.
type Extractor struct {
	sel Selectors
}

// New constructs an Extractor; empty selector sets fall back to defaults.
func New(sel Selectors) *Extractor {
	return &Extractor{sel: sel.withDefaults()}
}

// Extract builds the structured Page record for rawURL from html. Malformed
// markup never produces an error; the underlying parser repairs arbitrary
// real-world HTML.
func (e *Extractor) Extract(rawURL, html string) (*Page, error) {
	if html == "" {
		return nil, ErrNoContent
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	// Title and meta description are captured before any mutation.
	title := strippedText(doc.Find("title").First())
	if title == "" {
		title = "No Title"
	}
	metaDesc := strings.TrimSpace(doc.Find(`meta[name="description"]`).First().AttrOr("content", ""))

	doc.Find("script, style, meta, noscript, svg, iframe").Remove()
	removeAll(doc, e.sel.Nav)
	removeAll(doc, e.sel.Footer)

	main := e.mainContent(doc)

	page := &Page{
		URL:             rawURL,
		Title:           title,
		MetaDescription: metaDesc,
		Headings:        []Heading{},
		ContentBlocks:   []Block{},
		Images:          []Image{},
		Links:           []Link{},
	}

	main.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := strippedText(s)
		if text == "" {
			return
		}
		page.Headings = append(page.Headings, Heading{
			Level: headingLevel(goquery.NodeName(s)),
			Text:  text,
		})
	})

	main.Find("p, li, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		text := strippedText(s)
		if utf8.RuneCountInString(text) > minBlockLength {
			page.ContentBlocks = append(page.ContentBlocks, Block{
				Type: goquery.NodeName(s),
				Text: text,
			})
		}
	})

	main.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src := resolveRef(base, s.AttrOr("src", ""))
		if src == "" {
			return
		}
		page.Images = append(page.Images, Image{
			Src: src,
			Alt: strings.TrimSpace(s.AttrOr("alt", "")),
		})
	})

	main.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		text := strippedText(s)
		href := resolveRef(base, s.AttrOr("href", ""))
		if text == "" || href == "" {
			return
		}
		page.Links = append(page.Links, Link{Text: text, Href: href})
	})

	page.PlainText = buildPlainText(page)
	page.ChunkInfo = ChunkInfo{
		WordCount: len(strings.Fields(page.PlainText)),
		CharCount: utf8.RuneCountInString(page.PlainText),
	}
	return page, nil
}

// mainContent locates the node judged to contain the page's substantive
// text: first matching content-container selector (largest match wins),
// else the div with the most stripped text, else the body.
func (e *Extractor) mainContent(doc *goquery.Document) *goquery.Selection {
	for _, selector := range e.sel.Content {
		matches := doc.Find(selector)
		if matches.Length() > 0 {
			return largestByText(matches)
		}
	}
	// The largest-div fallback is a documented heuristic, not a guarantee:
	// it can latch onto a big unrelated block such as a data table.
	if divs := doc.Find("div"); divs.Length() > 0 {
		if best := largestByText(divs); textLen(best) > 0 {
			return best
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body.First()
	}
	return doc.Selection
}

func largestByText(matches *goquery.Selection) *goquery.Selection {
	best := matches.First()
	bestLen := textLen(best)
	matches.Each(func(_ int, s *goquery.Selection) {
		if l := textLen(s); l > bestLen {
			best, bestLen = s, l
		}
	})
	return best
}

func textLen(s *goquery.Selection) int {
	return utf8.RuneCountInString(strippedText(s))
}

func removeAll(doc *goquery.Document, selectors []string) {
	for _, selector := range selectors {
		doc.Find(selector).Remove()
	}
}

// strippedText collapses all whitespace runs in the selection's text to
// single spaces and trims the ends.
func strippedText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func headingLevel(nodeName string) int {
	if len(nodeName) == 2 && nodeName[0] == 'h' && nodeName[1] >= '1' && nodeName[1] <= '6' {
		return int(nodeName[1] - '0')
	}
	return 0
}

func resolveRef(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

// buildPlainText concatenates title, meta description, markdown-style
// headings, and block texts, separated by blank lines.
func buildPlainText(page *Page) string {
	parts := make([]string, 0, 2+len(page.Headings)+len(page.ContentBlocks))
	parts = append(parts, page.Title)
	if page.MetaDescription != "" {
		parts = append(parts, page.MetaDescription)
	}
	for _, h := range page.Headings {
		parts = append(parts, strings.Repeat("#", h.Level)+" "+h.Text)
	}
	for _, b := range page.ContentBlocks {
		parts = append(parts, b.Text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}
