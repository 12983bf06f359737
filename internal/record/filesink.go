package record

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ubtue/ztsharvest/pkg/failure"
)

// FileSink appends every serialized record to a single output file under
// outputDir, named after the active OutputFormat so MARC21 and JSON runs
// never collide.
type FileSink struct {
	path string
}

// NewFileSink creates outputDir if needed and returns a FileSink that
// appends to <outputDir>/records.mrc or records.json depending on format.
func NewFileSink(outputDir string, format OutputFormat) (*FileSink, failure.ClassifiedError) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, &RecordError{Message: err.Error(), Cause: ErrCauseSidecarIO}
	}
	name := "records.json"
	if format == FormatMARC21 {
		name = "records.mrc"
	}
	return &FileSink{path: filepath.Join(outputDir, name)}, nil
}

// WriteRecord implements Sink.
func (s *FileSink) WriteRecord(journal string, encoded []byte) failure.ClassifiedError {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return &RecordError{Message: fmt.Sprintf("opening %s: %v", s.path, err), Cause: ErrCauseSidecarIO}
	}
	defer f.Close()

	if _, err := f.Write(encoded); err != nil {
		return &RecordError{Message: fmt.Sprintf("writing %s: %v", s.path, err), Cause: ErrCauseSidecarIO}
	}
	return nil
}
