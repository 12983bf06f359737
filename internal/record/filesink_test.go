package record

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewFileSink_PicksExtensionByFormat(t *testing.T) {
	dir := t.TempDir()

	jsonSink, err := NewFileSink(dir, FormatJSON)
	if err != nil {
		t.Fatalf("NewFileSink(FormatJSON) returned error: %v", err)
	}
	if filepath.Ext(jsonSink.path) != ".json" {
		t.Errorf("json sink path = %q, want a .json file", jsonSink.path)
	}

	marcSink, err := NewFileSink(dir, FormatMARC21)
	if err != nil {
		t.Fatalf("NewFileSink(FormatMARC21) returned error: %v", err)
	}
	if filepath.Ext(marcSink.path) != ".mrc" {
		t.Errorf("marc sink path = %q, want a .mrc file", marcSink.path)
	}
}

func TestFileSink_WriteRecordAppends(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, FormatJSON)
	if err != nil {
		t.Fatalf("NewFileSink returned error: %v", err)
	}

	if werr := sink.WriteRecord("Example Journal", []byte("first\n")); werr != nil {
		t.Fatalf("WriteRecord returned error: %v", werr)
	}
	if werr := sink.WriteRecord("Example Journal", []byte("second\n")); werr != nil {
		t.Fatalf("WriteRecord returned error: %v", werr)
	}

	content, err := os.ReadFile(sink.path)
	if err != nil {
		t.Fatalf("reading output file: %v", err)
	}
	if string(content) != "first\nsecond\n" {
		t.Errorf("output file content = %q, want both records appended in order", string(content))
	}
}

func TestNewFileSink_CreatesOutputDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	if _, err := NewFileSink(dir, FormatJSON); err != nil {
		t.Fatalf("NewFileSink returned error: %v", err)
	}
	if _, statErr := os.Stat(dir); statErr != nil {
		t.Errorf("output directory was not created: %v", statErr)
	}
}
