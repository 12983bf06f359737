package record

import (
	"fmt"
	"strings"

	"github.com/ubtue/ztsharvest/pkg/failure"
)

// MARC21 structural bytes, per the format's ISO 2709 framing.
const (
	subfieldDelim = 0x1F
	fieldTerm     = 0x1E
	recordTerm    = 0x1D
	leaderLength  = 24
	directoryEntryLength = 12
)

// marcField is one data field (tag + indicators + subfields) or control
// field (tag + raw value, no indicators/subfields) pending assembly into
// a record's field area.
type marcField struct {
	tag        string
	indicator1 byte
	indicator2 byte
	subfields  []marcSubfield
	control    string // non-empty for a control field (001-009); subfields unused
}

type marcSubfield struct {
	code  byte
	value string
}

func controlField(tag, value string) marcField {
	return marcField{tag: tag, control: value}
}

func dataField(tag string, ind1, ind2 byte, subfields ...marcSubfield) marcField {
	return marcField{tag: tag, indicator1: ind1, indicator2: ind2, subfields: subfields}
}

func sf(code byte, value string) marcSubfield {
	return marcSubfield{code: code, value: value}
}

// encode renders field's field-area bytes (the part the directory's
// length/offset pair points at), not including its own tag.
func (f marcField) encode() []byte {
	if f.control != "" {
		return append([]byte(f.control), fieldTerm)
	}
	var b []byte
	b = append(b, f.indicator1, f.indicator2)
	for _, s := range f.subfields {
		b = append(b, subfieldDelim, s.code)
		b = append(b, []byte(s.value)...)
	}
	b = append(b, fieldTerm)
	return b
}

// MARC21Writer assembles a Record into binary MARC21, field by field, per
// spec.md §4.9's field table: 001 control number, 022 ISSN, 100/700
// creators, 245 title, 362 date, 520 abstract, 542 license, an
// ISSN-configurable keyword field (default 653), item-type-dependent
// 773/936, and 856 for URL/DOI.
type MARC21Writer struct{}

func (MARC21Writer) Write(rec Record) ([]byte, failure.ClassifiedError) {
	if rec.Title == "" {
		return nil, &RecordError{Message: "record has no title", Cause: ErrCauseMalformedCitation}
	}

	fields := []marcField{controlField("001", rec.ControlNumber)}

	if rec.ISSN != "" {
		fields = append(fields, dataField("022", ' ', ' ', sf('a', rec.ISSN)))
	}

	for i, creator := range rec.Creators {
		tag := "700"
		if i == 0 {
			tag = "100"
		}
		fields = append(fields, dataField(tag, '1', ' ', sf('a', creator)))
	}

	fields = append(fields, dataField("245", '0', '0', sf('a', rec.Title)))

	if rec.Date != "" {
		fields = append(fields, dataField("362", '0', ' ', sf('a', rec.Date)))
	}
	if rec.Abstract != "" {
		fields = append(fields, dataField("520", ' ', ' ', sf('a', rec.Abstract)))
	}
	if rec.License != "" {
		fields = append(fields, dataField("542", ' ', ' ', sf('l', rec.License)))
	}
	if len(rec.Keywords) > 0 {
		keywordTag := rec.KeywordField
		if keywordTag == "" {
			keywordTag = "653"
		}
		for _, kw := range rec.Keywords {
			fields = append(fields, dataField(keywordTag, ' ', '0', sf('a', kw)))
		}
	}

	switch rec.ItemType {
	case "journalArticle":
		fields = append(fields, dataField("773", '0', '8', sf('t', rec.Publisher), sf('g', rec.Volume)))
	case "magazineArticle":
		fields = append(fields, dataField("936", 'u', 'w', sf('d', rec.Publisher)))
	}

	if rec.SuperiorPPN != "" {
		fields = append(fields, dataField("773", '0', '8', sf('w', rec.SuperiorPPN)))
	}

	if rec.URL != "" {
		fields = append(fields, dataField("856", '4', '0', sf('u', rec.URL)))
	}
	if rec.DOI != "" {
		fields = append(fields, dataField("856", '4', '0', sf('u', "https://doi.org/"+rec.DOI)))
	}

	return assemble(fields), nil
}

// assemble lays out the leader, directory, and field area exactly as ISO
// 2709 requires: the directory's 12-byte entries give each field's tag,
// length, and starting offset into the field area, which itself follows
// the directory's own terminator.
func assemble(fields []marcField) []byte {
	var fieldArea []byte
	var directory strings.Builder
	offset := 0
	for _, f := range fields {
		encoded := f.encode()
		fmt.Fprintf(&directory, "%03s%04d%05d", f.tag, len(encoded), offset)
		fieldArea = append(fieldArea, encoded...)
		offset += len(encoded)
	}
	directory.WriteByte(fieldTerm)

	baseAddress := leaderLength + directory.Len()
	totalLength := baseAddress + len(fieldArea) + 1

	leader := fmt.Sprintf("%05dnam  22%05d   4500", totalLength, baseAddress)
	if len(leader) != leaderLength {
		// Defensive pad/truncate: the format above is fixed-width by
		// construction, but guards against a future field-format typo
		// corrupting every record's byte offsets.
		leader = (leader + strings.Repeat(" ", leaderLength))[:leaderLength]
	}

	out := make([]byte, 0, totalLength)
	out = append(out, []byte(leader)...)
	out = append(out, []byte(directory.String())...)
	out = append(out, fieldArea...)
	out = append(out, recordTerm)
	return out
}
