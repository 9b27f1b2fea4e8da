package mcp

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/aireach/internal/config"
	"github.com/hpungsan/aireach/internal/errors"
	"github.com/hpungsan/aireach/internal/history"
	"github.com/hpungsan/aireach/internal/ops"
	"github.com/hpungsan/aireach/internal/pipeline"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	orch    *pipeline.Orchestrator
	store   *history.Store
	cfg     *config.Config
	baseDir string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		orch:    deps.Orchestrator,
		store:   deps.Store,
		cfg:     deps.Config,
		baseDir: deps.BaseDir,
	}
}

// Request types for each tool

// ImageRequest is the argument shape of image-only tools.
type ImageRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// TextRequest is the argument shape of text-only tools.
type TextRequest struct {
	Text string `json:"text"`
}

// AnalyzeRequest represents the arguments for work_analyze.
type AnalyzeRequest struct {
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// RecommendRequest represents the arguments for work_recommend.
type RecommendRequest struct {
	Entries []string `json:"entries,omitempty"`
}

// HistoryListRequest represents the arguments for history_list.
type HistoryListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// HistoryAddRequest represents the arguments for history_add.
type HistoryAddRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// HistoryClearRequest represents the arguments for history_clear.
type HistoryClearRequest struct {
	Confirm bool `json:"confirm"`
}

// HistoryExportRequest represents the arguments for history_export.
type HistoryExportRequest struct {
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Response types

// TextResponse carries a transcription.
type TextResponse struct {
	Text string `json:"text"`
}

// IdentifyResponse carries a resolved identity.
type IdentifyResponse struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Resolved bool   `json:"resolved"`
}

// AnalyzeResponse carries the outcome of work_analyze.
type AnalyzeResponse struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Excerpt  string `json:"excerpt"`
	Analysis string `json:"analysis"`
	Saved    bool   `json:"saved"`
	ID       string `json:"id,omitempty"`
}

// RecommendResponse carries a recommendation.
type RecommendResponse struct {
	Recommendation string `json:"recommendation"`
}

// Handler implementations

// HandleExtractText handles the work_extract_text tool call.
func (h *Handlers) HandleExtractText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	image, err := decodeImage(input.ImageBase64)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(TextResponse{Text: h.orch.ExtractTextFromImage(ctx, image)})
}

// HandleIdentify handles the work_identify tool call.
func (h *Handlers) HandleIdentify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Text) == "" {
		return errorResult(errors.NewInvalidRequest("text is required")), nil
	}

	id := h.orch.IdentifyWork(ctx, input.Text)
	return successResult(IdentifyResponse{Title: id.Title, Author: id.Author, Resolved: !id.IsFallback()})
}

// HandleAnalyze handles the work_analyze tool call.
func (h *Handlers) HandleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnalyzeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	hasText := strings.TrimSpace(input.Text) != ""
	hasImage := strings.TrimSpace(input.ImageBase64) != ""
	if hasText == hasImage {
		return errorResult(errors.NewInvalidRequest("provide exactly one of text or image_base64")), nil
	}

	var result *pipeline.Analysis
	if hasImage {
		image, err := decodeImage(input.ImageBase64)
		if err != nil {
			return errorResult(err), nil
		}
		result, err = h.orch.AnalyzeImage(ctx, image)
		if err != nil {
			return errorResult(err), nil
		}
	} else {
		result, err = h.orch.AnalyzeText(ctx, input.Text)
		if err != nil {
			return errorResult(err), nil
		}
	}

	resp := AnalyzeResponse{
		Title:    result.Identity.Title,
		Author:   result.Identity.Author,
		Excerpt:  result.Excerpt,
		Analysis: result.Text,
		Saved:    result.Saved,
	}
	if result.Record != nil {
		resp.ID = result.Record.ID
	}
	return successResult(resp)
}

// HandleRecommend handles the work_recommend tool call.
func (h *Handlers) HandleRecommend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecommendRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if len(input.Entries) > 0 {
		return successResult(RecommendResponse{Recommendation: h.orch.Recommend(ctx, input.Entries)})
	}

	text, err := h.orch.RecommendFromHistory(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(RecommendResponse{Recommendation: text})
}

// HandleShelf handles the shelf_analyze tool call.
func (h *Handlers) HandleShelf(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	image, err := decodeImage(input.ImageBase64)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(RecommendResponse{Recommendation: h.orch.AnalyzeShelf(ctx, image)})
}

// HandleHistoryList handles the history_list tool call.
func (h *Handlers) HandleHistoryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.store, ops.ListInput{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistoryAdd handles the history_add tool call.
func (h *Handlers) HandleHistoryAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Add(ctx, h.store, ops.AddInput{Title: input.Title, Author: input.Author})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistoryClear handles the history_clear tool call.
func (h *Handlers) HandleHistoryClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryClearRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if !input.Confirm {
		return errorResult(errors.NewInvalidRequest("confirm must be true to clear history")), nil
	}

	result, err := ops.Clear(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistoryExport handles the history_export tool call.
func (h *Handlers) HandleHistoryExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.store, h.cfg, h.baseDir, ops.ExportInput{
		Path:   input.Path,
		Format: input.Format,
		Name:   input.Name,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if appErr, ok := err.(*errors.AppError); ok {
		errorObj := map[string]any{
			"code":    appErr.Code,
			"message": appErr.Message,
			"status":  appErr.Status,
		}
		// Details may carry file paths or driver errors
		if appErr.Code != errors.ErrInternal && appErr.Details != nil {
			errorObj["details"] = appErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
