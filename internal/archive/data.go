// Package archive implements C11: an optional local archival path for pages
// a successful direct-query fetch retrieved. Each archived page is extracted
// to its meaningful content, sanitized, converted to Markdown, and written
// out with a YAML frontmatter header recording where it came from.
package archive

import "time"

// Frontmatter is the YAML header written above every archived document's
// Markdown body.
type Frontmatter struct {
	SourceURL  string    `yaml:"source_url"`
	Journal    string    `yaml:"journal,omitempty"`
	FetchedAt  time.Time `yaml:"fetched_at"`
	HTTPStatus int       `yaml:"http_status"`
}

// Document is one archived page: its frontmatter plus the converted
// Markdown body.
type Document struct {
	Frontmatter Frontmatter
	Content     []byte
}

// WriteResult reports where an archived document was persisted.
type WriteResult struct {
	Path string
}
