package extract

import (
	"bytes"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"spiderbot/pkg/parse"
)

// Links finds all hyperlink candidates in an HTML body and resolves them to
// absolute normalized URLs relative to base. The result is deduplicated and
// fragment-free. Extraction failures degrade to an empty set: a page that
// cannot be parsed simply yields no links, never a crawl failure
func Links(body []byte, base *url.URL, log *logrus.Entry) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Warnf("Parsing HTML from '%s' failed, no links extracted: %v", base, err)
		return nil
	}

	found := make(map[string]struct{})
	var links []string

	doc.Find("a[href]").Each(func(_ int, element *goquery.Selection) {
		href, exists := element.Attr("href")
		if !exists || href == "" {
			return
		}

		// Resolve relative to the page URL
		linkURL, parseErr := base.Parse(href)
		if parseErr != nil {
			log.Debugf("Skipping invalid link href '%s': %v", href, parseErr)
			return
		}
		if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
			return // mailto:, tel:, javascript:, ...
		}

		normalized := parse.NormalizeURL(linkURL)
		if normalized == "" {
			return
		}
		if _, dup := found[normalized]; dup {
			return
		}
		found[normalized] = struct{}{}
		links = append(links, normalized)
	})

	return links
}
