package extractor

import "golang.org/x/net/html"

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// ExtractParam tunes the Layer 3 heuristic scoring pass used when neither a
// semantic container nor a known documentation selector matches.
type ExtractParam struct {
	// LinkDensityThreshold rejects candidate nodes whose link text makes up
	// too large a share of their total text (navigation-like noise).
	LinkDensityThreshold float64
	// BodySpecificityBias requires a nested candidate to beat <body>'s own
	// score by this factor before it is preferred over the whole body.
	BodySpecificityBias float64
}

// DefaultExtractParam mirrors the thresholds used across the fixture corpus.
func DefaultExtractParam() ExtractParam {
	return ExtractParam{LinkDensityThreshold: 0.5, BodySpecificityBias: 1.2}
}
