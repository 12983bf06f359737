package record

import (
	"encoding/json"

	"github.com/ubtue/ztsharvest/pkg/failure"
)

// jsonRecord is Record's wire shape for FormatJSON output: the control
// number is included since JSON output has no directory/field-length
// framing to carry it implicitly the way MARC21 does.
type jsonRecord struct {
	ControlNumber string   `json:"controlNumber"`
	Title         string   `json:"title"`
	Creators      []string `json:"creators,omitempty"`
	URL           string   `json:"url,omitempty"`
	DOI           string   `json:"doi,omitempty"`
	Abstract      string   `json:"abstract,omitempty"`
	Date          string   `json:"date,omitempty"`
	Language      string   `json:"language"`
	ISSN          string   `json:"issn,omitempty"`
	License       string   `json:"license,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	ItemType      string   `json:"itemType,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	SSG           string   `json:"ssg,omitempty"`
	PhysicalForm  string   `json:"physicalForm,omitempty"`
	SuperiorPPN   string   `json:"superiorPPN,omitempty"`
	Volume        string   `json:"volume,omitempty"`
}

// JSONWriter serializes a Record as a single JSON object.
type JSONWriter struct{}

func (JSONWriter) Write(rec Record) ([]byte, failure.ClassifiedError) {
	out, err := json.Marshal(jsonRecord{
		ControlNumber: rec.ControlNumber,
		Title:         rec.Title,
		Creators:      rec.Creators,
		URL:           rec.URL,
		DOI:           rec.DOI,
		Abstract:      rec.Abstract,
		Date:          rec.Date,
		Language:      rec.Language,
		ISSN:          rec.ISSN,
		License:       rec.License,
		Keywords:      rec.Keywords,
		ItemType:      rec.ItemType,
		Publisher:     rec.Publisher,
		SSG:           rec.SSG,
		PhysicalForm:  rec.PhysicalForm,
		SuperiorPPN:   rec.SuperiorPPN,
		Volume:        rec.Volume,
	})
	if err != nil {
		return nil, &RecordError{Message: err.Error(), Cause: ErrCauseMalformedCitation}
	}
	return out, nil
}
