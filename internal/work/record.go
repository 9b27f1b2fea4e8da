package work

import "time"

// Placeholder values stored for records added by hand rather than analysed.
const (
	ManualExcerpt  = "Manually added"
	ManualAnalysis = "Not yet analyzed"
)

// Record is one persisted analysis. ID and CreatedAt are assigned by the
// history store at insertion; records are never updated afterwards.
type Record struct {
	// ID is a ULID assigned by the store
	ID string

	Title  string
	Author string

	// Excerpt is the text the identification ran on, or ManualExcerpt
	Excerpt string

	// AnalysisText is the model's analysis, a sentinel, or ManualAnalysis
	AnalysisText string

	// CreatedAt is the store clock reading at insertion
	CreatedAt time.Time
}

// Identity returns the record's title/author pair.
func (r *Record) Identity() Identity {
	return Identity{Title: r.Title, Author: r.Author}
}

// IsManual reports whether the record was added without an analysis.
func (r *Record) IsManual() bool {
	return r.Excerpt == ManualExcerpt && r.AnalysisText == ManualAnalysis
}
