package record

import (
	"encoding/json"
	"testing"
)

func TestJSONWriter_RoundTrip(t *testing.T) {
	rec := Record{
		ControlNumber: "ZTS000000042",
		Title:         "A Study of Things",
		Creators:      []string{"Doe, Jane"},
		URL:           "https://example.org/article/1",
		ISSN:          "1234-5678",
		Language:      "eng",
	}

	out, err := JSONWriter{}.Write(rec)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	var decoded jsonRecord
	if jsonErr := json.Unmarshal(out, &decoded); jsonErr != nil {
		t.Fatalf("output is not valid JSON: %v", jsonErr)
	}
	if decoded.ControlNumber != rec.ControlNumber {
		t.Errorf("ControlNumber = %q, want %q", decoded.ControlNumber, rec.ControlNumber)
	}
	if decoded.Title != rec.Title {
		t.Errorf("Title = %q, want %q", decoded.Title, rec.Title)
	}
	if len(decoded.Creators) != 1 || decoded.Creators[0] != "Doe, Jane" {
		t.Errorf("Creators = %v, want [Doe, Jane]", decoded.Creators)
	}
}

func TestJSONWriter_OmitsEmptyOptionalFields(t *testing.T) {
	out, err := JSONWriter{}.Write(Record{ControlNumber: "ZTS000000001", Title: "Minimal", Language: "eng"})
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	var raw map[string]any
	if jsonErr := json.Unmarshal(out, &raw); jsonErr != nil {
		t.Fatalf("output is not valid JSON: %v", jsonErr)
	}
	if _, present := raw["doi"]; present {
		t.Error("empty DOI should be omitted")
	}
	if _, present := raw["creators"]; present {
		t.Error("empty creators should be omitted")
	}
}
