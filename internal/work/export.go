package work

import "time"

// ExportSchemaVersion is written in the header line of JSONL exports.
const ExportSchemaVersion = "1.0"

// ExportRecord is one line of a JSONL history export. The first line of a
// file is a header with AireachExport set and no record fields.
type ExportRecord struct {
	// Header detection field, true only for the header line
	AireachExport bool `json:"_aireach_export,omitempty"`

	// Header fields
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`
	RecordCount   int    `json:"record_count,omitempty"`

	// Record fields
	ID           string `json:"id,omitempty"`
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Excerpt      string `json:"excerpt,omitempty"`
	AnalysisText string `json:"analysis_text,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// NewExportHeader builds the header line for an export of n records.
func NewExportHeader(n int, now time.Time) *ExportRecord {
	return &ExportRecord{
		AireachExport: true,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    now.Unix(),
		RecordCount:   n,
	}
}

// RecordToExportRecord converts a Record for export. Timestamps are RFC 3339
// with nanoseconds so ordering survives the round trip through text.
func RecordToExportRecord(r *Record) *ExportRecord {
	return &ExportRecord{
		ID:           r.ID,
		Title:        r.Title,
		Author:       r.Author,
		Excerpt:      r.Excerpt,
		AnalysisText: r.AnalysisText,
		CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
