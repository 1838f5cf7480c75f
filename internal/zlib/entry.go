package zlib

import "strings"

// Author is one credited author of a catalog entry
type Author struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// CatalogEntry is one book as listed on a search results page
type CatalogEntry struct {
	ID   string `json:"id,omitempty"`
	ISBN string `json:"isbn,omitempty"`

	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
	Cover string `json:"cover,omitempty"`

	Authors      []Author `json:"authors,omitempty"`
	Publisher    string   `json:"publisher,omitempty"`
	PublisherURL string   `json:"publisher_url,omitempty"`
	Year         string   `json:"year,omitempty"`
	Language     string   `json:"language,omitempty"`

	Extension string `json:"extension,omitempty"`
	Size      string `json:"size,omitempty"`
	Rating    string `json:"rating,omitempty"`

	// Detail is nil until FetchDetail succeeds
	Detail *Detail `json:"detail,omitempty"`
}

// Detail holds the fields only present on a book's detail page
type Detail struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Edition     string `json:"edition,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Year        string `json:"year,omitempty"`
	Language    string `json:"language,omitempty"`

	// ISBNs is keyed by the page's own label, e.g. "ISBN 13"
	ISBNs map[string]string `json:"isbns,omitempty"`

	Categories    string `json:"categories,omitempty"`
	CategoriesURL string `json:"categories_url,omitempty"`

	Extension   string `json:"extension,omitempty"`
	Size        string `json:"size,omitempty"`
	Rating      string `json:"rating,omitempty"`
	Cover       string `json:"cover,omitempty"`
	DownloadURL string `json:"download_url"`
}

// AuthorNames joins the author names for display
func (e *CatalogEntry) AuthorNames() string {
	names := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}
