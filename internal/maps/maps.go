// Package maps loads the per-ISSN authority maps referenced from the
// map-directory configured globally: subject-collection (SSG) codes,
// the MARC field keywords are routed to, language, license, physical
// form, superior PPN, and volume. Each is a flat ISSN -> value table
// loaded from its own YAML file.
package maps

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ubtue/ztsharvest/pkg/failure"
	"gopkg.in/yaml.v3"
)

// AuthorityMaps bundles every ISSN-keyed lookup table C9 consults while
// assembling a record.
type AuthorityMaps struct {
	SSG          map[string]string
	KeywordField map[string]string
	Language     map[string]string
	License      map[string]string
	PhysicalForm map[string]string
	SuperiorPPN  map[string]string
	Volume       map[string]string
}

// MapError reports a malformed or unreadable map file. Per spec.md §7
// this is always a Fatal condition: a malformed map file aborts startup
// rather than running with a partially-loaded authority table.
type MapError struct {
	File    string
	Message string
}

func (e *MapError) Error() string {
	return fmt.Sprintf("map %s: %s", e.File, e.Message)
}

func (e *MapError) Severity() failure.Severity {
	return failure.SeverityFatal
}

var mapFiles = map[string]*func(*AuthorityMaps, map[string]string){
	"ssg.yaml":           fieldSetter(func(m *AuthorityMaps) *map[string]string { return &m.SSG }),
	"keyword_field.yaml": fieldSetter(func(m *AuthorityMaps) *map[string]string { return &m.KeywordField }),
	"language.yaml":      fieldSetter(func(m *AuthorityMaps) *map[string]string { return &m.Language }),
	"license.yaml":       fieldSetter(func(m *AuthorityMaps) *map[string]string { return &m.License }),
	"physical_form.yaml": fieldSetter(func(m *AuthorityMaps) *map[string]string { return &m.PhysicalForm }),
	"superior_ppn.yaml":  fieldSetter(func(m *AuthorityMaps) *map[string]string { return &m.SuperiorPPN }),
	"volume.yaml":        fieldSetter(func(m *AuthorityMaps) *map[string]string { return &m.Volume }),
}

func fieldSetter(sel func(*AuthorityMaps) *map[string]string) *func(*AuthorityMaps, map[string]string) {
	f := func(m *AuthorityMaps, loaded map[string]string) {
		*sel(m) = loaded
	}
	return &f
}

// Load reads every known map file out of dir. A missing file yields an
// empty table for that concern rather than an error, since not every
// deployment populates every map.
func Load(dir string) (*AuthorityMaps, failure.ClassifiedError) {
	result := &AuthorityMaps{
		SSG:          map[string]string{},
		KeywordField: map[string]string{},
		Language:     map[string]string{},
		License:      map[string]string{},
		PhysicalForm: map[string]string{},
		SuperiorPPN:  map[string]string{},
		Volume:       map[string]string{},
	}

	for filename, setter := range mapFiles {
		path := filepath.Join(dir, filename)
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &MapError{File: path, Message: err.Error()}
		}
		var table map[string]string
		if err := yaml.Unmarshal(content, &table); err != nil {
			return nil, &MapError{File: path, Message: err.Error()}
		}
		(*setter)(result, table)
	}

	return result, nil
}

// Lookup returns the value for issn in table, and whether it was found.
// Both the print and online ISSN of a JournalDescriptor are tried by
// callers; Lookup itself only knows about a single key.
func Lookup(table map[string]string, issn string) (string, bool) {
	v, ok := table[issn]
	return v, ok
}
