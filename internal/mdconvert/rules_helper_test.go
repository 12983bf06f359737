package mdconvert_test

import (
	"strings"
	"testing"

	"github.com/ubtue/ztsharvest/internal/mdconvert"
	"github.com/ubtue/ztsharvest/internal/metadata"
	"github.com/ubtue/ztsharvest/internal/sanitizer"
	"golang.org/x/net/html"
)

// fakeSink is a metadata.MetadataSink test double recording every RecordError call.
type fakeSink struct {
	errors []metadata.ErrorRecord
}

func (f *fakeSink) RecordFetch(journal string, evt metadata.FetchEvent)        {}
func (f *fakeSink) RecordArtifact(journal string, art metadata.ArtifactRecord) {}
func (f *fakeSink) RecordError(rec metadata.ErrorRecord) {
	f.errors = append(f.errors, rec)
}

// createTestRule builds a StrictConversionRule backed by a throwaway sink,
// for tests that only care about the conversion result.
func createTestRule() *mdconvert.StrictConversionRule {
	return mdconvert.NewRule(&fakeSink{})
}

// createSanitizedDoc wraps an HTML fragment's <body> content in a
// SanitizedHTMLDoc, mirroring what the real sanitizer hands Convert.
func createSanitizedDoc(t *testing.T, htmlContent string) sanitizer.SanitizedHTMLDoc {
	t.Helper()
	node := parseHTML(t, htmlContent)
	return sanitizer.NewSanitizedHTMLDocForTest(node, nil)
}

// parseHTML parses an HTML string and returns the body node.
func parseHTML(t *testing.T, htmlContent string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		t.Fatalf("failed to parse HTML: %v", err)
	}

	var body *html.Node
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	if body != nil {
		return body
	}
	return doc
}
