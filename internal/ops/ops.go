// Package ops holds the history operations shared by the CLI and MCP hosts.
// Each operation takes an Input struct and returns an Output struct that is
// serialised as-is.
package ops

import (
	"context"
	"time"

	"github.com/hpungsan/aireach/internal/errors"
	"github.com/hpungsan/aireach/internal/history"
	"github.com/hpungsan/aireach/internal/work"
)

// Pagination limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// HistoryItem is the serialised form of a history record.
type HistoryItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Excerpt      string `json:"excerpt"`
	AnalysisText string `json:"analysis_text"`
	CreatedAt    string `json:"created_at"`
	Manual       bool   `json:"manual"`
}

// ItemFromRecord converts a record for output.
func ItemFromRecord(r *work.Record) HistoryItem {
	return HistoryItem{
		ID:           r.ID,
		Title:        r.Title,
		Author:       r.Author,
		Excerpt:      r.Excerpt,
		AnalysisText: r.AnalysisText,
		CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339Nano),
		Manual:       r.IsManual(),
	}
}

// ListInput contains parameters for the List operation.
type ListInput struct {
	Limit  int // 0 = DefaultListLimit
	Offset int
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []HistoryItem `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// List returns a page of history, newest first.
func List(ctx context.Context, store *history.Store, input ListInput) (*ListOutput, error) {
	if input.Limit < 0 {
		return nil, errors.NewInvalidRequest("limit must not be negative")
	}
	if input.Offset < 0 {
		return nil, errors.NewInvalidRequest("offset must not be negative")
	}

	limit := input.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	records, err := store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	total := len(records)
	start := min(input.Offset, total)
	end := min(start+limit, total)

	items := make([]HistoryItem, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, ItemFromRecord(&records[i]))
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  input.Offset,
			HasMore: end < total,
			Total:   total,
		},
	}, nil
}

// AddInput contains parameters for the Add operation.
type AddInput struct {
	Title  string
	Author string
}

// AddOutput contains the result of the Add operation.
type AddOutput struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

// Add records a work the user has read without analysing it.
func Add(ctx context.Context, store *history.Store, input AddInput) (*AddOutput, error) {
	rec, err := store.AppendManual(ctx, input.Title, input.Author)
	if err != nil {
		return nil, err
	}
	return &AddOutput{
		ID:        rec.ID,
		Title:     rec.Title,
		Author:    rec.Author,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Removed int `json:"removed"`
}

// Clear removes all history.
func Clear(ctx context.Context, store *history.Store) (*ClearOutput, error) {
	n, err := store.Clear(ctx)
	if err != nil {
		return nil, err
	}
	return &ClearOutput{Removed: n}, nil
}
