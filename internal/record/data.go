// Package record implements C9: it turns a translation server's citation
// JSON into deduplicated, normalized bibliographic records serialized as
// either MARC21 or JSON.
package record

import (
	"encoding/json"
	"fmt"

	"github.com/ubtue/ztsharvest/pkg/failure"
)

// OutputFormat selects the serialization Synthesizer.Emit produces.
type OutputFormat int

const (
	FormatMARC21 OutputFormat = iota
	FormatJSON
)

// Citation is the shape of one element of a translation server's JSON
// citation array. Fields the server omits are left at their zero value;
// Synthesize fills in the ones spec.md §4.9 requires a default for.
type Citation struct {
	Title     string   `json:"title"`
	Creators  []string `json:"creators"`
	URL       string   `json:"url"`
	DOI       string   `json:"doi"`
	Abstract  string   `json:"abstract"`
	Date      string   `json:"date"`
	Language  string   `json:"language"`
	ISSN      string   `json:"issn"`
	License   string   `json:"license"`
	Keywords  []string `json:"keywords"`
	ItemType  string   `json:"itemType"`
	Publisher string   `json:"publicationTitle"`
}

// ParseCitations decodes a translation server's /web or /searchmultiple
// response body into its individual citation objects.
func ParseCitations(body []byte) ([]Citation, failure.ClassifiedError) {
	var citations []Citation
	if err := json.Unmarshal(body, &citations); err != nil {
		return nil, &RecordError{Message: fmt.Sprintf("malformed citation array: %v", err), Cause: ErrCauseMalformedCitation}
	}
	return citations, nil
}

// Record is the normalized, format-independent bibliographic record
// Synthesize builds from one Citation before a Writer serializes it.
type Record struct {
	ControlNumber string
	Title         string
	Creators      []string
	URL           string
	DOI           string
	Abstract      string
	Date          string
	Language      string
	ISSN          string
	License       string
	Keywords      []string
	KeywordField  string
	ItemType      string
	Publisher     string
	SSG           string
	PhysicalForm  string
	SuperiorPPN   string
	Volume        string
}

// Writer serializes a normalized Record into its on-disk form.
type Writer interface {
	Write(rec Record) ([]byte, failure.ClassifiedError)
}

// WriterFor returns the Writer for format.
func WriterFor(format OutputFormat) Writer {
	switch format {
	case FormatJSON:
		return JSONWriter{}
	default:
		return MARC21Writer{}
	}
}
