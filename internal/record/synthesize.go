package record

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ubtue/ztsharvest/internal/descriptor"
	"github.com/ubtue/ztsharvest/internal/maps"
	"github.com/ubtue/ztsharvest/internal/metadata"
	"github.com/ubtue/ztsharvest/pkg/failure"
)

// defaultLanguage is substituted when neither the citation nor an ISSN
// authority-map lookup yields a language code.
const defaultLanguage = "eng"

// defaultControlNumberPrefix matches the fixed-prefix, monotonic control
// numbers spec.md §4.9 describes.
const defaultControlNumberPrefix = "ZTS"

// Sink receives every successfully serialized, non-duplicate record.
type Sink interface {
	WriteRecord(journal string, encoded []byte) failure.ClassifiedError
}

// counters is the narrow slice of progress.Counters Synthesizer needs.
type counters interface {
	IncHarvested()
	IncPreviouslyDelivered()
}

// Synthesizer implements scheduler.RecordSink: it turns one translation
// DownloadResult into zero or more normalized, deduplicated, serialized
// records.
type Synthesizer struct {
	authorityMaps *maps.AuthorityMaps
	fingerprints  *FingerprintSet
	writer        Writer
	sink          Sink
	metadataSink  metadata.MetadataSink
	counters      counters

	nextControlNumber atomic.Uint64
	controlPrefix     string
}

// NewSynthesizer builds a Synthesizer. format selects MARC21 or JSON
// output; authorityMaps and fingerprints are typically shared across the
// whole harvest (one Load, one sidecar).
func NewSynthesizer(format OutputFormat, authorityMaps *maps.AuthorityMaps, fingerprints *FingerprintSet, sink Sink, metadataSink metadata.MetadataSink, counters counters) *Synthesizer {
	return &Synthesizer{
		authorityMaps: authorityMaps,
		fingerprints:  fingerprints,
		writer:        WriterFor(format),
		sink:          sink,
		metadataSink:  metadataSink,
		counters:      counters,
		controlPrefix: defaultControlNumberPrefix,
	}
}

// Emit implements scheduler.RecordSink. It parses result's body as a
// citation array, synthesizes and deduplicates a Record per citation, and
// hands every new one's serialized bytes to the Sink.
func (s *Synthesizer) Emit(result descriptor.DownloadResult) {
	journalName := ""
	var journal *descriptor.JournalDescriptor
	if result.Item.Journal != nil {
		journal = result.Item.Journal
		journalName = journal.Name
	}

	citations, err := ParseCitations(result.Body)
	if err != nil {
		s.metadataSink.RecordError(metadata.NewErrorRecord(
			"record", "Emit", causeOf(err), err.Error(), time.Now(),
			metadata.NewAttr(metadata.AttrJournal, journalName),
		))
		return
	}

	for _, citation := range citations {
		rec := s.synthesize(citation, journal)
		fingerprint := Fingerprint(rec)
		if s.fingerprints.CheckAndAdd(fingerprint) {
			s.counters.IncPreviouslyDelivered()
			continue
		}

		encoded, werr := s.writer.Write(rec)
		if werr != nil {
			s.metadataSink.RecordError(metadata.NewErrorRecord(
				"record", "Emit", causeOf(werr), werr.Error(), time.Now(),
				metadata.NewAttr(metadata.AttrJournal, journalName),
			))
			continue
		}

		s.counters.IncHarvested()
		if sinkErr := s.sink.WriteRecord(journalName, encoded); sinkErr != nil {
			s.metadataSink.RecordError(metadata.NewErrorRecord(
				"record", "Emit", causeOf(sinkErr), sinkErr.Error(), time.Now(),
				metadata.NewAttr(metadata.AttrJournal, journalName),
			))
		}
	}
}

// synthesize maps one Citation plus journal context into a normalized
// Record, filling defaults and ISSN-derived authority lookups per
// spec.md §4.9.
func (s *Synthesizer) synthesize(c Citation, journal *descriptor.JournalDescriptor) Record {
	issn := c.ISSN
	if issn == "" && journal != nil {
		issn = journal.ISSNPrint
		if issn == "" {
			issn = journal.ISSNOnline
		}
	}

	rec := Record{
		ControlNumber: s.allocateControlNumber(),
		Title:         c.Title,
		Creators:      c.Creators,
		URL:           c.URL,
		DOI:           c.DOI,
		Abstract:      c.Abstract,
		Date:          c.Date,
		Language:      c.Language,
		ISSN:          issn,
		License:       c.License,
		Keywords:      c.Keywords,
		ItemType:      c.ItemType,
		Publisher:     c.Publisher,
	}

	if rec.Language == "" {
		if lang, ok := maps.Lookup(s.authorityMaps.Language, issn); ok {
			rec.Language = lang
		} else {
			rec.Language = defaultLanguage
		}
	}
	if rec.License == "" {
		rec.License, _ = maps.Lookup(s.authorityMaps.License, issn)
	}
	rec.KeywordField, _ = maps.Lookup(s.authorityMaps.KeywordField, issn)
	rec.SSG, _ = maps.Lookup(s.authorityMaps.SSG, issn)
	rec.PhysicalForm, _ = maps.Lookup(s.authorityMaps.PhysicalForm, issn)
	rec.SuperiorPPN, _ = maps.Lookup(s.authorityMaps.SuperiorPPN, issn)
	rec.Volume, _ = maps.Lookup(s.authorityMaps.Volume, issn)

	return rec
}

func (s *Synthesizer) allocateControlNumber() string {
	n := s.nextControlNumber.Add(1)
	return fmt.Sprintf("%s%09d", s.controlPrefix, n)
}
