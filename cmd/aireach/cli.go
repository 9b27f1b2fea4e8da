package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/aireach/internal/errors"
	"github.com/hpungsan/aireach/internal/mcp"
	"github.com/hpungsan/aireach/internal/ops"
	"github.com/hpungsan/aireach/internal/pipeline"
)

// Input size limits
const (
	maxStdinBytes = 1 << 20  // 1MB of excerpt text
	maxImageBytes = 20 << 20 // 20MB per image
)

// newCLIApp creates the CLI application with all commands. deps may be nil
// when only help or version output is needed.
func newCLIApp(deps *mcp.Deps) *cli.App {
	app := &cli.App{
		Name:    "aireach",
		Usage:   "Identify, analyze and recommend literary works",
		Version: Version,
		Commands: []*cli.Command{
			ocrCmd(deps),
			identifyCmd(deps),
			analyzeCmd(deps),
			recommendCmd(deps),
			shelfCmd(deps),
			historyCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func imageFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{Name: "image", Aliases: []string{"i"}, Required: required, Usage: "Path to a JPEG image"}
}

// ocrCmd creates the ocr command.
func ocrCmd(deps *mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "ocr",
		Usage: "Transcribe the text in a photographed page",
		Flags: []cli.Flag{imageFlag(true)},
		Action: func(c *cli.Context) error {
			image, err := readImage(c.String("image"))
			if err != nil {
				return outputError(err)
			}

			text := deps.Orchestrator.ExtractTextFromImage(c.Context, image)
			return outputJSON(mcp.TextResponse{Text: text})
		},
	}
}

// identifyCmd creates the identify command.
func identifyCmd(deps *mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "identify",
		Usage: "Identify the work an excerpt comes from (reads the excerpt from stdin)",
		Action: func(c *cli.Context) error {
			excerpt, err := requireStdin()
			if err != nil {
				return outputError(err)
			}

			id := deps.Orchestrator.IdentifyWork(c.Context, excerpt)
			return outputJSON(mcp.IdentifyResponse{Title: id.Title, Author: id.Author, Resolved: !id.IsFallback()})
		},
	}
}

// analyzeCmd creates the analyze command.
func analyzeCmd(deps *mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Identify and analyze an excerpt and save it to history (reads stdin unless --image is set)",
		Flags: []cli.Flag{imageFlag(false)},
		Action: func(c *cli.Context) error {
			var (
				result *pipeline.Analysis
				err    error
			)

			if path := c.String("image"); path != "" {
				image, rerr := readImage(path)
				if rerr != nil {
					return outputError(rerr)
				}
				result, err = deps.Orchestrator.AnalyzeImage(c.Context, image)
			} else {
				excerpt, rerr := requireStdin()
				if rerr != nil {
					return outputError(rerr)
				}
				result, err = deps.Orchestrator.AnalyzeText(c.Context, excerpt)
			}
			if err != nil {
				return outputError(err)
			}

			output := mcp.AnalyzeResponse{
				Title:    result.Identity.Title,
				Author:   result.Identity.Author,
				Excerpt:  result.Excerpt,
				Analysis: result.Text,
				Saved:    result.Saved,
			}
			if result.Record != nil {
				output.ID = result.Record.ID
			}
			return outputJSON(output)
		},
	}
}

// recommendCmd creates the recommend command.
func recommendCmd(deps *mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:      "recommend",
		Usage:     "Recommend three unread works from history, or from the given entries",
		ArgsUsage: "[\"Title (Author)\"...]",
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				text := deps.Orchestrator.Recommend(c.Context, c.Args().Slice())
				return outputJSON(mcp.RecommendResponse{Recommendation: text})
			}

			text, err := deps.Orchestrator.RecommendFromHistory(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(mcp.RecommendResponse{Recommendation: text})
		},
	}
}

// shelfCmd creates the shelf command.
func shelfCmd(deps *mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "shelf",
		Usage: "Recommend a book from a photo of a bookshelf",
		Flags: []cli.Flag{imageFlag(true)},
		Action: func(c *cli.Context) error {
			image, err := readImage(c.String("image"))
			if err != nil {
				return outputError(err)
			}

			text := deps.Orchestrator.AnalyzeShelf(c.Context, image)
			return outputJSON(mcp.RecommendResponse{Recommendation: text})
		},
	}
}

// historyCmd creates the history command and its subcommands.
func historyCmd(deps *mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Manage saved analyses",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved analyses, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Page size"},
					&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Records to skip"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.List(c.Context, deps.Store, ops.ListInput{
						Limit:  c.Int("limit"),
						Offset: c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "add",
				Usage: "Record a work as read without analysing it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Work title"},
					&cli.StringFlag{Name: "author", Aliases: []string{"a"}, Usage: "Work author"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.Add(c.Context, deps.Store, ops.AddInput{
						Title:  c.String("title"),
						Author: c.String("author"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "clear",
				Usage: "Delete all saved analyses",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm deletion"},
				},
				Action: func(c *cli.Context) error {
					if !c.Bool("yes") {
						return outputError(errors.NewInvalidRequest("pass --yes to clear history"))
					}
					output, err := ops.Clear(c.Context, deps.Store)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "export",
				Usage: "Export history to a JSONL or HTML file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output path (.jsonl or .html)"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: jsonl|html"},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "File name prefix for the default path"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.Export(c.Context, deps.Store, deps.Config, deps.BaseDir, ops.ExportInput{
						Path:   c.String("path"),
						Format: c.String("format"),
						Name:   c.String("name"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if appErr, ok := err.(*errors.AppError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// requireStdin reads a non-empty excerpt from piped stdin.
func requireStdin() (string, error) {
	if !stdinHasData() {
		return "", errors.NewInvalidRequest("excerpt must be piped via stdin")
	}
	text, err := readStdin(maxStdinBytes)
	if err != nil {
		return "", errors.NewInvalidRequest(err.Error())
	}
	if text == "" {
		return "", errors.NewInvalidRequest("excerpt is required")
	}
	return text, nil
}

// readImage loads an image file, enforcing maxImageBytes.
func readImage(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.NewInvalidRequest("--image is required")
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if len(data) > maxImageBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("image exceeds %d bytes", maxImageBytes))
	}
	if len(data) == 0 {
		return nil, errors.NewInvalidRequest("image is empty")
	}
	return data, nil
}
