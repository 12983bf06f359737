package record

import (
	"testing"

	"github.com/ubtue/ztsharvest/pkg/failure"
)

func TestParseCitations_Valid(t *testing.T) {
	body := []byte(`[{"title":"A Study","creators":["Doe, Jane"],"issn":"1234-5678"}]`)
	citations, err := ParseCitations(body)
	if err != nil {
		t.Fatalf("ParseCitations returned error: %v", err)
	}
	if len(citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(citations))
	}
	if citations[0].Title != "A Study" {
		t.Errorf("Title = %q, want %q", citations[0].Title, "A Study")
	}
	if citations[0].ISSN != "1234-5678" {
		t.Errorf("ISSN = %q, want %q", citations[0].ISSN, "1234-5678")
	}
}

func TestParseCitations_Malformed(t *testing.T) {
	_, err := ParseCitations([]byte(`not json`))
	if err == nil {
		t.Fatal("expected error for malformed citation body")
	}
	if err.Severity() != failure.SeverityFatal {
		t.Errorf("malformed citation body should be fatal")
	}
}

func TestWriterFor(t *testing.T) {
	if _, ok := WriterFor(FormatJSON).(JSONWriter); !ok {
		t.Error("WriterFor(FormatJSON) did not return a JSONWriter")
	}
	if _, ok := WriterFor(FormatMARC21).(MARC21Writer); !ok {
		t.Error("WriterFor(FormatMARC21) did not return a MARC21Writer")
	}
}
