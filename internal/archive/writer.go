package archive

import (
	"bytes"
	"net/url"
	"path/filepath"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"github.com/ubtue/ztsharvest/internal/extractor"
	"github.com/ubtue/ztsharvest/internal/mdconvert"
	"github.com/ubtue/ztsharvest/internal/metadata"
	"github.com/ubtue/ztsharvest/internal/sanitizer"
	"github.com/ubtue/ztsharvest/pkg/failure"
	"github.com/ubtue/ztsharvest/pkg/fileutil"
	"github.com/ubtue/ztsharvest/pkg/hashutil"
	"gopkg.in/yaml.v3"
)

const archiveSubdir = "_archive"

// Writer turns a fetched page's raw HTML into an archived Markdown document:
// extract its meaningful content, sanitize the DOM, convert to Markdown,
// and persist it with a frontmatter header under outputDir/_archive.
type Writer struct {
	extractor    extractor.DomExtractor
	sanitizer    sanitizer.HtmlSanitizer
	converter    *mdconvert.StrictConversionRule
	metadataSink metadata.MetadataSink
	outputDir    string
	hashAlgo     hashutil.HashAlgo
}

// NewWriter builds a Writer that writes archived pages under outputDir.
func NewWriter(metadataSink metadata.MetadataSink, outputDir string, hashAlgo hashutil.HashAlgo) *Writer {
	return &Writer{
		extractor:    extractor.NewDomExtractor(metadataSink, extractor.DefaultExtractParam()),
		sanitizer:    sanitizer.NewHTMLSanitizer(metadataSink),
		converter:    mdconvert.NewRule(metadataSink),
		metadataSink: metadataSink,
		outputDir:    outputDir,
		hashAlgo:     hashAlgo,
	}
}

// Archive extracts, sanitizes, and converts body to Markdown, then writes
// the result to disk. Any stage failing is reported through metadataSink
// and its own ClassifiedError is returned unchanged: the page is simply
// skipped.
func (w *Writer) Archive(sourceURL url.URL, journal string, body []byte, httpStatus int, fetchedAt time.Time) (WriteResult, failure.ClassifiedError) {
	extraction, err := w.extractor.Extract(sourceURL, body)
	if err != nil {
		return WriteResult{}, w.wrap(journal, "archive", err)
	}

	sanitized, err := w.sanitizer.Sanitize(extraction.ContentNode)
	if err != nil {
		return WriteResult{}, w.wrap(journal, "archive", err)
	}

	converted, err := w.converter.Convert(sanitized)
	if err != nil {
		return WriteResult{}, w.wrap(journal, "archive", err)
	}

	if archiveErr := validateMarkdownStructure(converted.GetMarkdownContent()); archiveErr != nil {
		w.recordError(journal, archiveErr)
		return WriteResult{}, archiveErr
	}

	doc := Document{
		Frontmatter: Frontmatter{
			SourceURL:  sourceURL.String(),
			Journal:    journal,
			FetchedAt:  fetchedAt,
			HTTPStatus: httpStatus,
		},
		Content: converted.GetMarkdownContent(),
	}
	return w.write(journal, doc)
}

func (w *Writer) write(journal string, doc Document) (WriteResult, failure.ClassifiedError) {
	frontmatterYAML, yamlErr := yaml.Marshal(doc.Frontmatter)
	if yamlErr != nil {
		archiveErr := &ArchiveError{Message: yamlErr.Error(), Cause: ErrCauseContentRejected}
		w.recordError(journal, archiveErr)
		return WriteResult{}, archiveErr
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(frontmatterYAML)
	buf.WriteString("---\n\n")
	buf.Write(doc.Content)

	hash, hashErr := hashutil.HashBytes(buf.Bytes(), w.hashAlgo)
	if hashErr != nil {
		archiveErr := &ArchiveError{Message: hashErr.Error(), Cause: ErrCauseWriteFailure}
		w.recordError(journal, archiveErr)
		return WriteResult{}, archiveErr
	}
	if len(hash) > 16 {
		hash = hash[:16]
	}

	archiveDir := filepath.Join(w.outputDir, archiveSubdir)
	if err := fileutil.EnsureDir(archiveDir); err != nil {
		w.recordError(journal, err)
		return WriteResult{}, err
	}

	path := filepath.Join(archiveDir, hash+".md")
	if err := fileutil.TruncateAndWrite(path, buf.Bytes()); err != nil {
		w.recordError(journal, err)
		return WriteResult{}, err
	}

	w.metadataSink.RecordArtifact(journal, metadata.NewArtifactRecord(path))
	return WriteResult{Path: path}, nil
}

// wrap passes a stage's error through unchanged: the extractor, sanitizer
// and converter each record their own failure on metadataSink, so
// recording it here as well would count one failure twice.
func (w *Writer) wrap(journal, action string, err failure.ClassifiedError) failure.ClassifiedError {
	return err
}

// validateMarkdownStructure is a post-conversion sanity gate: html-to-markdown/v2
// can legitimately produce a non-empty but structurally vacant document (a
// handful of stray inline marks with no heading or paragraph) when the
// sanitized DOM was itself borderline. A paragraph counts only if it has
// plain text of its own, outside emphasis, links or code spans. It walks
// the AST rather than regexing the text, mirroring how the teacher's
// structural validator inspected converted Markdown.
func validateMarkdownStructure(content []byte) *ArchiveError {
	if len(bytes.TrimSpace(content)) == 0 {
		return &ArchiveError{Message: "converted markdown is empty", Cause: ErrCauseContentRejected}
	}

	doc := markdown.Parse(content, parser.New())

	hasStructure := false
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Heading, *ast.List, *ast.Table, *ast.CodeBlock:
			hasStructure = true
			return ast.Terminate
		case *ast.Paragraph:
			for _, child := range n.Children {
				if text, ok := child.(*ast.Text); ok && len(bytes.TrimSpace(text.Literal)) > 0 {
					hasStructure = true
					return ast.Terminate
				}
			}
			return ast.SkipChildren
		}
		return ast.GoToNext
	})

	if !hasStructure {
		return &ArchiveError{Message: "converted markdown has no heading, paragraph, list, table, or code block", Cause: ErrCauseContentRejected}
	}
	return nil
}

func (w *Writer) recordError(journal string, err failure.ClassifiedError) {
	cause := metadata.CauseStorageFailure
	if archiveErr, ok := err.(*ArchiveError); ok {
		cause = mapArchiveErrorToMetadataCause(archiveErr)
	}
	w.metadataSink.RecordError(metadata.NewErrorRecord("archive", "write", cause, err.Error(), time.Now(),
		metadata.NewAttr(metadata.AttrJournal, journal)))
}
