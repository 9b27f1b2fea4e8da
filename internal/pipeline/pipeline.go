// Package pipeline sequences model requests into the identify, analyze,
// recommend and shelf-scan use cases and owns their fallback policy.
//
// Model failures never become Go errors here: they travel as sentinel text
// ("ERROR: ...") or as the fallback identity. The only errors returned are
// cancellation before any work started and history read failures.
package pipeline

import (
	"context"
	"strings"

	"github.com/hpungsan/aireach/internal/errors"
	"github.com/hpungsan/aireach/internal/gemini"
	"github.com/hpungsan/aireach/internal/logging"
	"github.com/hpungsan/aireach/internal/work"
)

// MinRecommendEntries is the number of distinct history entries a
// recommendation needs.
const MinRecommendEntries = 2

// InsufficientData is returned by Recommend instead of calling the model.
const InsufficientData = "Not enough reading history for recommendations: add at least 2 books."

// Model sends prompts to the generative service.
type Model interface {
	SendText(ctx context.Context, prompt string) gemini.Result
	SendVision(ctx context.Context, prompt string, image []byte) gemini.Result
}

// Store is the part of the history store the pipeline uses.
type Store interface {
	Append(ctx context.Context, title, author, excerpt, analysisText string) (*work.Record, error)
	ListAll(ctx context.Context) ([]work.Record, error)
}

// Orchestrator runs the pipeline stages against one model and one store.
type Orchestrator struct {
	model Model
	store Store
}

// New creates an Orchestrator. Both collaborators are required.
func New(model Model, store Store) *Orchestrator {
	return &Orchestrator{model: model, store: store}
}

// Analysis is the outcome of an end-to-end analyze flow.
type Analysis struct {
	Identity work.Identity `json:"identity"`
	Excerpt  string        `json:"excerpt"`
	Text     string        `json:"analysis"`

	// Record is the persisted record, or nil when saving failed
	Record *work.Record `json:"-"`

	// Saved reports whether the analysis was persisted
	Saved bool `json:"saved"`
}

// ExtractTextFromImage transcribes the text in an image. The result is
// returned verbatim, sentinel included.
func (o *Orchestrator) ExtractTextFromImage(ctx context.Context, image []byte) string {
	return o.model.SendVision(ctx, transcribePrompt, image).String()
}

// IdentifyWork resolves which work an excerpt comes from.
func (o *Orchestrator) IdentifyWork(ctx context.Context, excerpt string) work.Identity {
	res := o.model.SendText(ctx, identifyPrompt(excerpt))
	return work.Resolve(res.String())
}

// Analyze writes a short critical analysis of an identified work.
func (o *Orchestrator) Analyze(ctx context.Context, id work.Identity, excerpt string) string {
	return o.model.SendText(ctx, analysisPrompt(id, excerpt)).String()
}

// Recommend asks for three works not in entries. With fewer than
// MinRecommendEntries distinct entries it returns InsufficientData without
// calling the model.
func (o *Orchestrator) Recommend(ctx context.Context, entries []string) string {
	distinct := distinctEntries(entries)
	if len(distinct) < MinRecommendEntries {
		return InsufficientData
	}
	return o.model.SendText(ctx, recommendPrompt(distinct)).String()
}

// AnalyzeShelf recommends a book from a bookshelf photo.
func (o *Orchestrator) AnalyzeShelf(ctx context.Context, image []byte) string {
	return o.model.SendVision(ctx, shelfPrompt, image).String()
}

// AnalyzeText identifies the work an excerpt comes from, analyses it and
// saves the result, strictly in that order. A save failure is logged and
// reported through Analysis.Saved; the analysis is still returned.
func (o *Orchestrator) AnalyzeText(ctx context.Context, excerpt string) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("analyze")
	}

	id := o.IdentifyWork(ctx, excerpt)
	text := o.Analyze(ctx, id, excerpt)

	result := &Analysis{Identity: id, Excerpt: excerpt, Text: text}

	rec, err := o.store.Append(ctx, id.Title, id.Author, excerpt, text)
	if err != nil {
		logging.Error().
			Err(err).
			Str("title", id.Title).
			Str("author", id.Author).
			Msg("history append failed; analysis not saved")
		return result, nil
	}

	result.Record = rec
	result.Saved = true
	return result, nil
}

// AnalyzeImage transcribes an image and runs AnalyzeText on the transcript.
// A failed transcription is passed on as the excerpt unchanged; it resolves
// to the fallback identity downstream.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, image []byte) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("analyze")
	}

	excerpt := o.ExtractTextFromImage(ctx, image)
	return o.AnalyzeText(ctx, excerpt)
}

// RecommendFromHistory builds "Title (Author)" entries from the store and
// calls Recommend.
func (o *Orchestrator) RecommendFromHistory(ctx context.Context) (string, error) {
	records, err := o.store.ListAll(ctx)
	if err != nil {
		return "", err
	}

	entries := make([]string, 0, len(records))
	for i := range records {
		entries = append(entries, records[i].Identity().Label())
	}
	return o.Recommend(ctx, entries), nil
}

// distinctEntries drops blank and repeated entries, keeping the first-seen
// spelling of each. Entries differing only in case or spacing are repeats.
func distinctEntries(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		key := work.NormalizeLabel(e)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(e))
	}
	return out
}
