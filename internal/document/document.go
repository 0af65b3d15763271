// Package document defines the data model shared by the aligner and the
// translation pipeline: extracted paragraphs, bounded segments, alignment
// records, and the work units the orchestrator processes.
//
// Extraction itself happens upstream; this package only consumes its output,
// ordered lists of page- and index-tagged text.
package document

// PageText is one page of extracted source text, paragraphs separated by
// blank lines.
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// SourceParagraph is a single source-document paragraph. Index is 0-based and
// sequential across the whole document.
type SourceParagraph struct {
	Index int    `json:"index"`
	Page  int    `json:"page"`
	Text  string `json:"text"`
}

// TargetParagraph is a single paragraph of the independently produced
// target-language rendering.
type TargetParagraph struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Segment is a bounded-length chunk of one page's text, the atomic unit of
// translation work when no alignment is performed. IDs are sequential from 0
// and a segment never spans pages.
type Segment struct {
	ID   int    `json:"id"`
	Page int    `json:"page"`
	Text string `json:"text"`
}

// AlignStatus classifies the terminal outcome for one source paragraph.
type AlignStatus string

const (
	StatusMatched AlignStatus = "matched"
	StatusSkip    AlignStatus = "skip"
	StatusMissing AlignStatus = "missing"
)

// Coverage classifies how many target paragraphs an alignment references.
type Coverage string

const (
	CoverageFull    Coverage = "full"
	CoverageOverlap Coverage = "overlap"
	CoverageMissing Coverage = "missing"
	CoverageSkip    Coverage = "skip"
)

// AlignmentRecord is the terminal alignment outcome for one source paragraph.
// TargetIndices is non-empty exactly when Status is StatusMatched; for
// multi-target matches TargetText holds the referenced paragraphs joined in
// ascending index order.
type AlignmentRecord struct {
	SourceIndex   int         `json:"source_index"`
	TargetIndices []int       `json:"target_indices"`
	Status        AlignStatus `json:"status"`
	Confidence    float64     `json:"confidence"`
	Coverage      Coverage    `json:"coverage"`
	Note          string      `json:"note,omitempty"`
	Page          int         `json:"page"`
	SourceText    string      `json:"source_text"`
	TargetText    string      `json:"target_text,omitempty"`
}

// Matched reports whether the record carries at least one target paragraph.
func (r AlignmentRecord) Matched() bool {
	return r.Status == StatusMatched && len(r.TargetIndices) > 0
}

// WorkUnit is one independent unit of pipeline work. Original is the source
// text; Reference carries an existing target rendering when the unit was
// produced from a matched alignment record, empty otherwise. Units share no
// data dependency.
type WorkUnit struct {
	ID        int
	Page      int
	Original  string
	Reference string
	Note      string
}

// UnitsFromSegments converts segments into work units for the plain
// translation pipeline.
func UnitsFromSegments(segments []Segment) []WorkUnit {
	units := make([]WorkUnit, 0, len(segments))
	for _, seg := range segments {
		units = append(units, WorkUnit{ID: seg.ID, Page: seg.Page, Original: seg.Text})
	}
	return units
}

// UnitsFromRecords converts alignment records into work units for the review
// pipeline. Unit ids reuse the source paragraph index so checkpoints stay
// stable across re-alignment runs.
func UnitsFromRecords(records []AlignmentRecord) []WorkUnit {
	units := make([]WorkUnit, 0, len(records))
	for _, rec := range records {
		units = append(units, WorkUnit{
			ID:        rec.SourceIndex,
			Page:      rec.Page,
			Original:  rec.SourceText,
			Reference: rec.TargetText,
			Note:      rec.Note,
		})
	}
	return units
}
