package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hpungsan/aireach/internal/config"
	"github.com/hpungsan/aireach/internal/errors"
	"github.com/hpungsan/aireach/internal/history"
	"github.com/hpungsan/aireach/internal/work"
)

// ExportFormat selects the export file format.
type ExportFormat string

const (
	FormatJSONL ExportFormat = "jsonl"
	FormatHTML  ExportFormat = "html"
)

func formatForExt(ext string) (ExportFormat, bool) {
	switch strings.ToLower(ext) {
	case ".jsonl":
		return FormatJSONL, true
	case ".html":
		return FormatHTML, true
	default:
		return "", false
	}
}

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path   string // optional, default: <baseDir>/exports/<name>-<timestamp>.<format>
	Format string // optional, inferred from Path, default jsonl
	Name   string // optional file name prefix for the default path
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string       `json:"path"`
	Format     ExportFormat `json:"format"`
	Count      int          `json:"count"`
	ExportedAt int64        `json:"exported_at"`
}

// Export writes the whole history to a JSONL or HTML file. The file is
// written to a temporary name and renamed into place, so an existing file
// survives a failed export.
func Export(ctx context.Context, store *history.Store, cfg *config.Config, baseDir string, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	format, err := resolveFormat(input)
	if err != nil {
		return nil, err
	}

	exportPath := input.Path
	if exportPath == "" {
		exportPath = defaultExportPath(baseDir, input.Name, format, now)
	}

	// Default paths are validated too
	if err := ValidatePath(exportPath, baseDir, cfg); err != nil {
		return nil, err
	}

	var count int
	err = writeAtomic(exportPath, func(w io.Writer) error {
		var err error
		switch format {
		case FormatHTML:
			count, err = writeHTML(ctx, w, store, now)
		default:
			count, err = writeJSONL(ctx, w, store, now)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       exportPath,
		Format:     format,
		Count:      count,
		ExportedAt: now.Unix(),
	}, nil
}

func resolveFormat(input ExportInput) (ExportFormat, error) {
	var fromPath ExportFormat
	if input.Path != "" {
		f, ok := formatForExt(filepath.Ext(input.Path))
		if !ok {
			return "", errors.NewInvalidRequest("path must have a .jsonl or .html extension")
		}
		fromPath = f
	}

	requested := ExportFormat(strings.ToLower(strings.TrimSpace(input.Format)))
	switch requested {
	case "":
		if fromPath != "" {
			return fromPath, nil
		}
		return FormatJSONL, nil
	case FormatJSONL, FormatHTML:
		if fromPath != "" && fromPath != requested {
			return "", errors.NewInvalidRequest(fmt.Sprintf("format %q does not match path extension", requested))
		}
		return requested, nil
	default:
		return "", errors.NewInvalidRequest(fmt.Sprintf("unsupported format %q (want jsonl or html)", input.Format))
	}
}

// defaultExportPath builds <baseDir>/exports/<name>-<timestamp>.<format>.
func defaultExportPath(baseDir, name string, format ExportFormat, now time.Time) string {
	prefix := "history"
	if strings.TrimSpace(name) != "" {
		prefix = SanitizeForFilename(strings.TrimSpace(name))
	}
	filename := fmt.Sprintf("%s-%s.%s", prefix, now.Format("2006-01-02T150405"), format)
	return filepath.Join(ExportsDir(baseDir), filename)
}

// writeJSONL writes a header line followed by one record per line.
func writeJSONL(ctx context.Context, w io.Writer, store *history.Store, now time.Time) (int, error) {
	enc := json.NewEncoder(w)

	// The record count is not known until streaming finishes, so the header
	// carries schema and timestamp only.
	if err := enc.Encode(work.NewExportHeader(0, now)); err != nil {
		return 0, errors.NewInternal(err)
	}

	return store.Export(ctx, func(r *work.Record) error {
		if err := ctx.Err(); err != nil {
			return errors.NewCancelled("export")
		}
		if err := enc.Encode(work.RecordToExportRecord(r)); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
}

// writeAtomic writes through fn into a temp file next to path and renames it
// into place on success.
func writeAtomic(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	buf := bufio.NewWriter(file)
	if err := fn(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before rename (required on Windows)
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows os.Rename fails if the destination exists; fail rather than
	// delete-then-rename and risk losing the original.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}
