package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hpungsan/aireach/internal/config"
	"github.com/hpungsan/aireach/internal/db"
	"github.com/hpungsan/aireach/internal/gemini"
	"github.com/hpungsan/aireach/internal/history"
	"github.com/hpungsan/aireach/internal/mcp"
	"github.com/hpungsan/aireach/internal/ops"
	"github.com/hpungsan/aireach/internal/pipeline"
	"github.com/hpungsan/aireach/internal/secrets"
)

// setupTestDeps wires the CLI against a temporary database and a model
// endpoint that answers from completions in order, then 503.
func setupTestDeps(t *testing.T, completions ...string) (*mcp.Deps, *atomic.Int32) {
	t.Helper()

	baseDir := t.TempDir()
	database, err := db.Init(baseDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		n := int(calls.Add(1)) - 1
		if n >= len(completions) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := json.Marshal(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": completions[n]}}}},
			},
		})
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	store := history.New(database, history.Options{})
	client := gemini.New(secrets.Static("test-key"), gemini.Config{BaseURL: srv.URL})

	return &mcp.Deps{
		Orchestrator: pipeline.New(client, store),
		Store:        store,
		Config:       cfg,
		BaseDir:      baseDir,
	}, &calls
}

// runCLI runs the app with args and returns what it wrote to stdout.
func runCLI(t *testing.T, deps *mcp.Deps, args ...string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w

	runErr := newCLIApp(deps).Run(append([]string{"aireach"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), runErr
}

// withStdin replaces stdin with a pipe carrying content for the rest of the test.
func withStdin(t *testing.T, content string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	go func() {
		_, _ = w.WriteString(content)
		w.Close()
	}()

	oldStdin := os.Stdin
	os.Stdin = r
	t.Cleanup(func() {
		os.Stdin = oldStdin
		r.Close()
	})
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.jpg")
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0}, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

// TestCLIHistoryAddList tests the history add and list commands.
func TestCLIHistoryAddList(t *testing.T) {
	deps, calls := setupTestDeps(t)

	out, err := runCLI(t, deps, "history", "add", "--title=Emma", "--author=Jane Austen")
	if err != nil {
		t.Fatalf("history add failed: %v", err)
	}
	var added ops.AddOutput
	if err := json.Unmarshal([]byte(out), &added); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if added.ID == "" || added.Title != "Emma" {
		t.Errorf("added = %+v", added)
	}

	if _, err := runCLI(t, deps, "history", "add", "--title=Persuasion", "--author=Jane Austen"); err != nil {
		t.Fatalf("history add failed: %v", err)
	}

	out, err = runCLI(t, deps, "history", "list")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	var listed ops.ListOutput
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(listed.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(listed.Items))
	}
	if listed.Items[0].Title != "Persuasion" {
		t.Errorf("Items[0].Title = %q, want newest first", listed.Items[0].Title)
	}
	if listed.Items[1].Excerpt != "Manually added" || listed.Items[1].AnalysisText != "Not yet analyzed" {
		t.Errorf("manual record = %+v", listed.Items[1])
	}

	if calls.Load() != 0 {
		t.Errorf("history commands called the model %d times", calls.Load())
	}
}

// TestCLIHistoryClear tests that clear needs confirmation.
func TestCLIHistoryClear(t *testing.T) {
	deps, _ := setupTestDeps(t)
	ctx := context.Background()

	if _, err := deps.Store.AppendManual(ctx, "Emma", "Jane Austen"); err != nil {
		t.Fatalf("AppendManual failed: %v", err)
	}

	if _, err := runCLI(t, deps, "history", "clear"); err == nil {
		t.Fatal("expected error without --yes, got nil")
	}
	if records, _ := deps.Store.ListAll(ctx); len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}

	out, err := runCLI(t, deps, "history", "clear", "--yes")
	if err != nil {
		t.Fatalf("history clear failed: %v", err)
	}
	var cleared ops.ClearOutput
	if err := json.Unmarshal([]byte(out), &cleared); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if cleared.Removed != 1 {
		t.Errorf("Removed = %d, want 1", cleared.Removed)
	}
}

// TestCLIHistoryExport tests the export command.
func TestCLIHistoryExport(t *testing.T) {
	deps, _ := setupTestDeps(t)

	if _, err := deps.Store.AppendManual(context.Background(), "Emma", "Jane Austen"); err != nil {
		t.Fatalf("AppendManual failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "history.html")
	out, err := runCLI(t, deps, "history", "export", "--path="+path)
	if err != nil {
		t.Fatalf("history export failed: %v", err)
	}
	var exported ops.ExportOutput
	if err := json.Unmarshal([]byte(out), &exported); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if exported.Count != 1 || exported.Format != ops.FormatHTML {
		t.Errorf("exported = %+v", exported)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "Emma") {
		t.Errorf("export missing record")
	}
}

// TestCLIIdentify tests identify reading from stdin.
func TestCLIIdentify(t *testing.T) {
	deps, _ := setupTestDeps(t, `{"title": "Moby-Dick", "author": "Herman Melville"}`)
	withStdin(t, "Call me Ishmael.\n")

	out, err := runCLI(t, deps, "identify")
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	var output mcp.IdentifyResponse
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Title != "Moby-Dick" || output.Author != "Herman Melville" || !output.Resolved {
		t.Errorf("output = %+v", output)
	}
}

// TestCLIAnalyze tests analyze from stdin and from an image.
func TestCLIAnalyze(t *testing.T) {
	t.Run("stdin", func(t *testing.T) {
		deps, _ := setupTestDeps(t, `{"title": "Emma", "author": "Jane Austen"}`, "A comedy of manners.")
		withStdin(t, "Emma Woodhouse, handsome, clever, and rich.")

		out, err := runCLI(t, deps, "analyze")
		if err != nil {
			t.Fatalf("analyze failed: %v", err)
		}
		var output mcp.AnalyzeResponse
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Title != "Emma" || output.Analysis != "A comedy of manners." || !output.Saved {
			t.Errorf("output = %+v", output)
		}

		records, _ := deps.Store.ListAll(context.Background())
		if len(records) != 1 || records[0].Excerpt != "Emma Woodhouse, handsome, clever, and rich." {
			t.Errorf("records = %+v", records)
		}
	})

	t.Run("image", func(t *testing.T) {
		deps, calls := setupTestDeps(t, "Call me Ishmael.", `{"title": "Moby-Dick", "author": "Herman Melville"}`, "Obsession at sea.")

		out, err := runCLI(t, deps, "analyze", "--image="+writeImage(t))
		if err != nil {
			t.Fatalf("analyze failed: %v", err)
		}
		var output mcp.AnalyzeResponse
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Excerpt != "Call me Ishmael." || output.Title != "Moby-Dick" {
			t.Errorf("output = %+v", output)
		}
		if calls.Load() != 3 {
			t.Errorf("model calls = %d, want 3", calls.Load())
		}
	})
}

// TestCLIRecommend tests recommend from arguments and from history.
func TestCLIRecommend(t *testing.T) {
	deps, calls := setupTestDeps(t, "Dune - Frank Herbert")

	out, err := runCLI(t, deps, "recommend")
	if err != nil {
		t.Fatalf("recommend failed: %v", err)
	}
	var output mcp.RecommendResponse
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Recommendation != pipeline.InsufficientData {
		t.Errorf("Recommendation = %q, want insufficient-data message", output.Recommendation)
	}
	if calls.Load() != 0 {
		t.Errorf("model called with empty history")
	}

	out, err = runCLI(t, deps, "recommend", "Emma (Jane Austen)", "Moby-Dick (Herman Melville)")
	if err != nil {
		t.Fatalf("recommend failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Recommendation != "Dune - Frank Herbert" {
		t.Errorf("Recommendation = %q", output.Recommendation)
	}
}

// TestCLIOCRAndShelf tests the image commands.
func TestCLIOCRAndShelf(t *testing.T) {
	deps, _ := setupTestDeps(t, "It was a dark and stormy night.", "Try Jane Eyre.")
	image := writeImage(t)

	out, err := runCLI(t, deps, "ocr", "--image="+image)
	if err != nil {
		t.Fatalf("ocr failed: %v", err)
	}
	var text mcp.TextResponse
	if err := json.Unmarshal([]byte(out), &text); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if text.Text != "It was a dark and stormy night." {
		t.Errorf("Text = %q", text.Text)
	}

	out, err = runCLI(t, deps, "shelf", "--image="+image)
	if err != nil {
		t.Fatalf("shelf failed: %v", err)
	}
	var rec mcp.RecommendResponse
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if rec.Recommendation != "Try Jane Eyre." {
		t.Errorf("Recommendation = %q", rec.Recommendation)
	}

	// Service down: the sentinel is output, not an error
	out, err = runCLI(t, deps, "ocr", "--image="+image)
	if err != nil {
		t.Fatalf("ocr failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &text); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if !strings.HasPrefix(text.Text, gemini.SentinelPrefix) {
		t.Errorf("Text = %q, want sentinel", text.Text)
	}
}

// TestCLIErrorHandling tests error handling in CLI commands.
func TestCLIErrorHandling(t *testing.T) {
	deps, _ := setupTestDeps(t)

	t.Run("ocr missing file returns error", func(t *testing.T) {
		_, err := runCLI(t, deps, "ocr", "--image="+filepath.Join(t.TempDir(), "missing.jpg"))
		if err == nil || !strings.Contains(err.Error(), "FILE_NOT_FOUND") {
			t.Errorf("expected FILE_NOT_FOUND, got %v", err)
		}
	})

	t.Run("history add without author returns error", func(t *testing.T) {
		_, err := runCLI(t, deps, "history", "add", "--title=Emma")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})

	t.Run("negative limit returns error", func(t *testing.T) {
		if _, err := runCLI(t, deps, "history", "list", "--limit=-1"); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("export traversal returns error", func(t *testing.T) {
		if _, err := runCLI(t, deps, "history", "export", "--path=../x.jsonl"); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("identify with empty stdin returns error", func(t *testing.T) {
		withStdin(t, "   ")
		if _, err := runCLI(t, deps, "identify"); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"aireach"}, expected: false},
		{name: "analyze command", args: []string{"aireach", "analyze"}, expected: true},
		{name: "history command", args: []string{"aireach", "history", "list"}, expected: true},
		{name: "help flag", args: []string{"aireach", "--help"}, expected: true},
		{name: "version flag", args: []string{"aireach", "--version"}, expected: true},
		{name: "short help flag", args: []string{"aireach", "-h"}, expected: true},
		{name: "short version flag", args: []string{"aireach", "-v"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"aireach", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"aireach"}, expected: false},
		{name: "help flag", args: []string{"aireach", "--help"}, expected: true},
		{name: "short help flag", args: []string{"aireach", "-h"}, expected: true},
		{name: "version flag", args: []string{"aireach", "--version"}, expected: true},
		{name: "short version flag", args: []string{"aireach", "-v"}, expected: true},
		{name: "help subcommand", args: []string{"aireach", "help"}, expected: true},
		{name: "analyze command is not help", args: []string{"aireach", "analyze"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestReadStdinWithLimit tests the readStdin function respects size limits.
func TestReadStdinWithLimit(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		withStdin(t, "small content")

		result, err := readStdin(1000)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "small content" {
			t.Errorf("expected %q, got %q", "small content", result)
		}
	})

	t.Run("exceeds limit", func(t *testing.T) {
		withStdin(t, strings.Repeat("x", 100))

		if _, err := readStdin(50); err == nil {
			t.Error("expected error for content exceeding limit, got nil")
		}
	})
}

// TestReadImage tests image loading.
func TestReadImage(t *testing.T) {
	if _, err := readImage(""); err == nil {
		t.Error("expected error for empty path")
	}

	empty := filepath.Join(t.TempDir(), "empty.jpg")
	if err := os.WriteFile(empty, nil, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := readImage(empty); err == nil {
		t.Error("expected error for empty image")
	}

	data, err := readImage(writeImage(t))
	if err != nil {
		t.Fatalf("readImage() error = %v", err)
	}
	if len(data) != 4 {
		t.Errorf("len(data) = %d, want 4", len(data))
	}
}
