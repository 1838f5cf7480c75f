package zlib

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var pagesTotalRe = regexp.MustCompile(`pagesTotal:\s*(\d+)`)

// resultsPage is one parsed search results page
type resultsPage struct {
	entries []*CatalogEntry
	// pagesTotal is -1 when the page carries no pager metadata
	pagesTotal int
	notFound   bool
}

// ParseListFragment parses the HTML of one result row into a CatalogEntry.
// Relative links are resolved against mirror.
func ParseListFragment(fragment, mirror string) (*CatalogEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return parseListItem(doc.Selection, mirror)
}

func parseListItem(row *goquery.Selection, mirror string) (*CatalogEntry, error) {
	entry := &CatalogEntry{}

	if cover := row.Find("div.itemCoverWrapper").First(); cover.Length() > 0 {
		entry.ID, _ = cover.Attr("data-book_id")
		entry.ISBN, _ = cover.Attr("data-isbn")
		if href, ok := cover.Find("a").First().Attr("href"); ok {
			entry.URL = absURL(mirror, href)
		}
		if src, ok := cover.Find("img").First().Attr("data-src"); ok {
			entry.Cover = absURL(mirror, src)
		}
	}

	title := row.Find("h3[itemprop=name]").First()
	if title.Length() == 0 {
		return nil, fmt.Errorf("%w: entry has no title", ErrParse)
	}
	entry.Name = cleanText(title.Text())
	if entry.URL == "" {
		if href, ok := title.Find("a").First().Attr("href"); ok {
			entry.URL = absURL(mirror, href)
		}
	}

	if pub := row.Find("a[title=Publisher]").First(); pub.Length() > 0 {
		entry.Publisher = cleanText(pub.Text())
		if href, ok := pub.Attr("href"); ok {
			entry.PublisherURL = absURL(mirror, href)
		}
	}

	row.Find("div.authors a").Each(func(_ int, a *goquery.Selection) {
		author := Author{Name: cleanText(a.Text())}
		if href, ok := a.Attr("href"); ok {
			author.URL = absURL(mirror, href)
		}
		entry.Authors = append(entry.Authors, author)
	})

	entry.Year = propertyValue(row, "div.property_year")
	entry.Language = propertyValue(row, "div.property_language")
	entry.Extension, entry.Size = fileFacts(row.Find("div.property__file").First())

	if rating := row.Find("div.property_rating").First(); rating.Length() > 0 {
		entry.Rating = strings.Join(strings.Fields(rating.Text()), "")
	}

	return entry, nil
}

// parseResultsPage parses a full search results page
func parseResultsPage(html, mirror string, log *slog.Logger) (*resultsPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	box := doc.Find("#searchResultBox").First()
	if box.Length() == 0 {
		return nil, fmt.Errorf("%w: search results container not found", ErrParse)
	}

	page := &resultsPage{pagesTotal: pagesTotal(doc)}
	if box.Find("div.notFound").Length() > 0 {
		page.notFound = true
		page.entries = []*CatalogEntry{}
		return page, nil
	}

	rows := box.Find("div.resItemBox")
	if rows.Length() == 0 {
		return nil, fmt.Errorf("%w: results container has no entries", ErrParse)
	}

	page.entries = make([]*CatalogEntry, 0, rows.Length())
	var rowErr error
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if row.Find("div.itemCoverWrapper").Length() == 0 {
			log.Debug("skipping result row without cover block", "row", i)
			return true
		}
		entry, err := parseListItem(row, mirror)
		if err != nil {
			rowErr = fmt.Errorf("row %d: %w", i, err)
			return false
		}
		page.entries = append(page.entries, entry)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	return page, nil
}

func pagesTotal(doc *goquery.Document) int {
	total := -1
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, "var pagerOptions") {
			return true
		}
		if m := pagesTotalRe.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				total = n
			}
		}
		return false
	})
	return total
}

// parseDetail parses a book detail page into a Detail
func parseDetail(html, mirror string) (*Detail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	card := doc.Find("div.row.cardBooks").First()
	if card.Length() == 0 {
		return nil, fmt.Errorf("%w: detail container not found", ErrParse)
	}

	d := &Detail{ISBNs: map[string]string{}}

	if href, ok := card.Find("a.details-book-cover").First().Attr("href"); ok {
		d.Cover = absURL(mirror, href)
	}
	d.Title = cleanText(card.Find("h1[itemprop=name]").First().Text())
	if desc := doc.Find("#bookDescriptionBox").First(); desc.Length() > 0 {
		d.Description = strings.TrimSpace(desc.Text())
	}

	details := doc.Find("div.bookDetailsBox").First()
	d.Year = propertyValue(details, "div.property_year")
	d.Edition = propertyValue(details, "div.property_edition")
	d.Publisher = propertyValue(details, "div.property_publisher")
	d.Language = propertyValue(details, "div.property_language")

	details.Find("div.property_isbn").Each(func(_ int, prop *goquery.Selection) {
		label := strings.TrimSuffix(cleanText(prop.Find("div.property_label").Text()), ":")
		value := cleanText(prop.Find("div.property_value").Text())
		if label != "" && value != "" {
			d.ISBNs[label] = value
		}
	})

	if cat := details.Find("div.property_categories").First(); cat.Length() > 0 {
		d.Categories = cleanText(cat.Find("div.property_value").Text())
		if href, ok := cat.Find("a").First().Attr("href"); ok {
			d.CategoriesURL = absURL(mirror, href)
		}
	}

	d.Extension, d.Size = fileFacts(details.Find("div.property__file").First())

	if rating := doc.Find("div.book-rating").First(); rating.Length() > 0 {
		d.Rating = strings.Join(strings.Fields(rating.Text()), "")
	}

	href, ok := doc.Find("div.book-details-button a.dlButton").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil, fmt.Errorf("%w: download link not found", ErrParse)
	}
	d.DownloadURL = absURL(mirror, strings.TrimSpace(href))

	return d, nil
}

func propertyValue(scope *goquery.Selection, selector string) string {
	return cleanText(scope.Find(selector).First().Find("div.property_value").Text())
}

// fileFacts splits a "EPUB, 2.31 MB" block into extension and size
func fileFacts(prop *goquery.Selection) (ext, size string) {
	if prop.Length() == 0 {
		return "", ""
	}
	text := cleanText(prop.Find("div.property_value").Text())
	if text == "" {
		text = cleanText(prop.Text())
		text = strings.TrimSpace(strings.TrimPrefix(text, "File:"))
	}
	ext, size, _ = strings.Cut(text, ",")
	return strings.TrimSpace(ext), strings.TrimSpace(size)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// absURL resolves ref against the mirror base. The result is re-encoded,
// so author links containing spaces come back path-escaped.
func absURL(mirror, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return r.String()
	}
	base, err := url.Parse(mirror)
	if err != nil || base.Host == "" {
		return ref
	}
	return base.ResolveReference(r).String()
}
