package sanitizer_test

import (
	"strings"

	"github.com/ubtue/ztsharvest/internal/metadata"
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

// mustFindNode parses raw as a full HTML document and returns the first
// element with the given tag, mirroring the content node extractor.Extract
// hands the sanitizer in production (a <main>/<article>/<body> subtree, not
// the whole document).
func mustFindNode(raw, tag string) *html.Node {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == tag {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}
