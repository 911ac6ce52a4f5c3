package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Hrefs harvests every anchor href from the raw, unstripped document so the
// frontier sees links living in navigation and footers too. The values are
// returned as written; resolution and validation are the frontier's job.
func Hrefs(html string) []string {
	if html == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href := strings.TrimSpace(s.AttrOr("href", "")); href != "" {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}
