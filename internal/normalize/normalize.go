// Package normalize turns raw feedback exports into typed feedback records.
package normalize

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/kepler/internal/feedback"
)

// Format is the encoding of a raw feedback export.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts the usual spellings of a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv", "tsv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Error reports a batch that could not be read or decoded. Callers decide
// whether to abort or skip the file.
type Error struct {
	Kind   feedback.Kind
	Format Format
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s (%s): %v", e.Kind, e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Normalize decodes raw into records of a single kind. Record ids have the form
// {sourceID}-{kind}-{index}, where index is the position of the candidate in the
// source, so the same batch always yields the same ids.
func Normalize(raw []byte, format Format, kind feedback.Kind, sourceID string) ([]feedback.Record, error) {
	return normalizeAt(raw, format, kind, sourceID, time.Now().UTC())
}

// NormalizeReader is Normalize over a stream.
func NormalizeReader(r io.Reader, format Format, kind feedback.Kind, sourceID string) ([]feedback.Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Kind: kind, Format: format, Err: fmt.Errorf("read: %w", err)}
	}
	return Normalize(raw, format, kind, sourceID)
}

// NormalizeInto decodes raw and appends the records to in.
func NormalizeInto(in *feedback.Input, raw []byte, format Format, kind feedback.Kind, sourceID string) (int, error) {
	records, err := Normalize(raw, format, kind, sourceID)
	if err != nil {
		return 0, err
	}
	in.Add(records...)
	return len(records), nil
}

func normalizeAt(raw []byte, format Format, kind feedback.Kind, sourceID string, now time.Time) ([]feedback.Record, error) {
	build, ok := builders[kind]
	if !ok {
		return nil, &Error{Kind: kind, Format: format, Err: fmt.Errorf("unknown kind")}
	}

	var (
		rows []row
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = decodeCSV(raw)
	case FormatJSON:
		rows, err = decodeJSON(raw)
	case FormatYAML:
		rows, err = decodeYAML(raw)
	default:
		err = fmt.Errorf("unsupported format")
	}
	if err != nil {
		return nil, &Error{Kind: kind, Format: format, Err: err}
	}

	ts := now.Format(time.RFC3339)
	var records []feedback.Record
	for i, r := range rows {
		if r == nil {
			continue
		}
		id := fmt.Sprintf("%s-%s-%d", sourceID, kind, i)
		if rec, ok := build(r, id, ts); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}
